package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"github.com/violabg/dev-quiz-battle-sub000/internal/app"
	"github.com/violabg/dev-quiz-battle-sub000/internal/domain"
	"github.com/violabg/dev-quiz-battle-sub000/internal/generate"
	"github.com/violabg/dev-quiz-battle-sub000/internal/infra/postgres"
	pgmigrations "github.com/violabg/dev-quiz-battle-sub000/internal/infra/postgres/migrations"
	infraredis "github.com/violabg/dev-quiz-battle-sub000/internal/infra/redis"
)

func TestTwoPlayerGameEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	generator := generate.NewStaticGenerator(map[string]generate.Payload{
		"javascript:easy": {
			QuestionText:       "Which keyword declares a block-scoped constant?",
			Options:            []string{"let", "const", "var", "static"},
			CorrectAnswerIndex: 1,
			Explanation:        "const bindings cannot be reassigned.",
		},
	})
	service := app.NewGameService(
		postgres.NewGameStore(pool),
		infraredis.NewLanguageLeaderboard(redisClient),
		infraredis.NewRecentQuestionLog(redisClient, 5*time.Hour),
		generator,
	)

	game, err := service.CreateGame(ctx, "alice", 2, 60)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if len(game.Code) != 6 {
		t.Fatalf("unexpected code %q", game.Code)
	}

	if _, err := service.JoinGame(ctx, game.Code, "bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := service.StartGame(ctx, game.ID, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Turn 0: alice picks the question, answers wrong; bob wins the race.
	question, err := service.CreateQuestion(ctx, game.ID, "alice", "javascript", "easy")
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, question.ID, "alice", game.ID, 0, 1000, 60000); err != nil {
		t.Fatalf("alice submit: %v", err)
	}
	result, err := service.SubmitAnswer(ctx, question.ID, "bob", game.ID, 1, 2000, 60000)
	if err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	if !result.WasWinningAnswer {
		t.Fatalf("expected bob to win, got %+v", result)
	}
	if want := domain.Score(2000, 60000); result.ScoreEarned != want {
		t.Fatalf("expected score %v, got %v", want, result.ScoreEarned)
	}

	snap, err := service.Snapshot(ctx, game.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Question == nil || snap.Question.EndedAt == nil {
		t.Fatalf("winning answer must close the question")
	}
	for _, p := range snap.Players {
		switch p.PlayerID {
		case "bob":
			if p.Score != result.ScoreEarned {
				t.Fatalf("bob at %v, expected %v", p.Score, result.ScoreEarned)
			}
		case "alice":
			if p.Score != 0 {
				t.Fatalf("alice must be unchanged, got %v", p.Score)
			}
		}
	}

	if _, err := service.AdvanceTurn(ctx, game.ID, 0); err != nil {
		t.Fatalf("advance to bob: %v", err)
	}

	// Turn 1: bob's question closes unanswered; the round completes.
	second, err := service.CreateQuestion(ctx, game.ID, "bob", "javascript", "easy")
	if err != nil {
		t.Fatalf("bob create question: %v", err)
	}
	if err := service.EndQuestion(ctx, second.ID); err != nil {
		t.Fatalf("end second question: %v", err)
	}
	final, err := service.AdvanceTurn(ctx, game.ID, 1)
	if err != nil {
		t.Fatalf("final advance: %v", err)
	}
	if final.Status != domain.GameCompleted {
		t.Fatalf("expected completed game, got %s", final.Status)
	}

	top, err := service.Leaderboard(ctx, "javascript", 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(top) != 1 || top[0].PlayerID != "bob" || top[0].Score != result.ScoreEarned {
		t.Fatalf("expected bob on the javascript board, got %+v", top)
	}

	// The generated text is logged for dedup across games.
	recent, err := infraredis.NewRecentQuestionLog(redisClient, 5*time.Hour).
		Recent(ctx, "javascript", "easy", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) == 0 {
		t.Fatalf("expected recent question texts logged")
	}
}

func TestConcurrentAnswersSingleWinnerOnPostgres(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := postgres.NewGameStore(pool)
	now := time.Now()
	game := domain.Game{
		ID: uuid.NewString(), Code: "RACE42", HostID: "p0",
		Status: domain.GameActive, MaxPlayers: 8, TimeLimit: 60,
		CreatedAt: now, UpdatedAt: now,
	}
	host := domain.GamePlayer{ID: uuid.NewString(), GameID: game.ID, PlayerID: "p0", IsActive: true, JoinedAt: now}
	if err := store.CreateGame(ctx, &game, &host); err != nil {
		t.Fatalf("create game: %v", err)
	}
	question := domain.Question{
		ID: uuid.NewString(), GameID: game.ID, CreatedBy: "p0",
		Language: "go", Difficulty: "easy",
		Text: "racing", Options: []string{"a", "b"}, CorrectIndex: 1,
		StartedAt: now,
	}
	if err := store.InsertQuestion(ctx, &question); err != nil {
		t.Fatalf("insert question: %v", err)
	}

	const contenders = 8
	wins := make(chan bool, contenders)
	errs := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		go func() {
			won, err := store.EndQuestion(ctx, question.ID, time.Now(), uuid.NewString())
			wins <- won
			errs <- err
		}()
	}
	winners := 0
	for i := 0; i < contenders; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("end question: %v", err)
		}
		if <-wins {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestConcurrentJoinsGetDistinctSeatsOnPostgres(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := postgres.NewGameStore(pool)
	now := time.Now()
	game := domain.Game{
		ID: uuid.NewString(), Code: "SEATS1", HostID: "host",
		Status: domain.GameWaiting, MaxPlayers: 8, TimeLimit: 60,
		CreatedAt: now, UpdatedAt: now,
	}
	host := domain.GamePlayer{ID: uuid.NewString(), GameID: game.ID, PlayerID: "host", IsActive: true, JoinedAt: now}
	if err := store.CreateGame(ctx, &game, &host); err != nil {
		t.Fatalf("create game: %v", err)
	}

	const joiners = 7
	start := make(chan struct{})
	var wg sync.WaitGroup
	joinErrs := make([]error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			p := domain.GamePlayer{
				ID:       uuid.NewString(),
				GameID:   game.ID,
				PlayerID: fmt.Sprintf("p%d", i),
				IsActive: true,
				JoinedAt: time.Now(),
			}
			joinErrs[i] = store.AddPlayer(ctx, &p)
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range joinErrs {
		if err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}

	players, err := store.Players(ctx, game.ID)
	if err != nil {
		t.Fatalf("players: %v", err)
	}
	if len(players) != joiners+1 {
		t.Fatalf("expected %d seats, got %d", joiners+1, len(players))
	}
	seen := make(map[int]string)
	for _, p := range players {
		if holder, dup := seen[p.TurnOrder]; dup {
			t.Fatalf("players %s and %s share turn order %d", holder, p.PlayerID, p.TurnOrder)
		}
		seen[p.TurnOrder] = p.PlayerID
	}
	for order := 0; order <= joiners; order++ {
		if _, ok := seen[order]; !ok {
			t.Fatalf("turn order %d unassigned", order)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "battle", "POSTGRES_PASSWORD": "battlepass", "POSTGRES_DB": "battledb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://battle:battlepass@%s:%s/battledb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
