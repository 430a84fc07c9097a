package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/violabg/dev-quiz-battle-sub000/internal/app"
	"github.com/violabg/dev-quiz-battle-sub000/internal/config"
	"github.com/violabg/dev-quiz-battle-sub000/internal/generate"
	"github.com/violabg/dev-quiz-battle-sub000/internal/infra/memory"
	infrapg "github.com/violabg/dev-quiz-battle-sub000/internal/infra/postgres"
	infraredis "github.com/violabg/dev-quiz-battle-sub000/internal/infra/redis"
	transport "github.com/violabg/dev-quiz-battle-sub000/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz battle server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var store app.GameStore = memory.NewGameStore()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		store = infrapg.NewGameStore(pool)
	}

	recentWindow := config.Duration(cfg.Questions.RecentWindow, 5*time.Hour)
	var leaderboard app.LanguageLeaderboard = memory.NewLanguageLeaderboard()
	var recent app.RecentQuestionLog = memory.NewRecentQuestionLog()
	if redisClient != nil {
		leaderboard = infraredis.NewLanguageLeaderboard(redisClient)
		recent = infraredis.NewRecentQuestionLog(redisClient, recentWindow)
	}

	var generator generate.Generator = generate.NewStaticGenerator(sampleQuestions())
	if cfg.Generator.URL != "" {
		timeout := config.Duration(cfg.Generator.Timeout, 30*time.Second)
		generator = generate.NewHTTPGenerator(cfg.Generator.URL, timeout)
	}

	service := app.NewGameService(store, leaderboard, recent, generator)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/games", wsHandler.CreateGame)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting dev-quiz-battle on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions provides canned content so the server runs without a
// generation service; swap in the HTTP generator via config in production.
func sampleQuestions() map[string]generate.Payload {
	return map[string]generate.Payload{
		"javascript:easy": {
			QuestionText: "What does typeof null evaluate to?",
			Options:      []string{"\"null\"", "\"object\"", "\"undefined\"", "\"number\""},
			CorrectAnswerIndex: 1,
			Explanation:        "A long-standing quirk: typeof null is \"object\".",
		},
		"go:easy": {
			QuestionText: "What is the zero value of a slice?",
			Options:      []string{"an empty slice", "nil", "a slice of length 1", "it has no zero value"},
			CorrectAnswerIndex: 1,
			Explanation:        "Uninitialized slices are nil; len and cap are 0.",
		},
	}
}
