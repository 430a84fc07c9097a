package app

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/violabg/dev-quiz-battle-sub000/internal/domain"
	"github.com/violabg/dev-quiz-battle-sub000/internal/generate"
)

const (
	codeAttempts      = 10
	generateAttempts  = 3
	minPlayers        = 2
	recentQuestionAge = 5 * time.Hour
)

// GameService contains the game-state engine use cases: session operations,
// question lifecycle, answer resolution and turn sequencing.
type GameService struct {
	store       GameStore
	leaderboard LanguageLeaderboard
	recent      RecentQuestionLog
	generator   generate.Generator
	sf          singleflight.Group
	rnd         *rand.Rand
	now         func() time.Time
	backoff     time.Duration
}

// Option tweaks service construction (clock and backoff injection for tests).
type Option func(*GameService)

func WithClock(now func() time.Time) Option {
	return func(s *GameService) { s.now = now }
}

func WithBackoff(d time.Duration) Option {
	return func(s *GameService) { s.backoff = d }
}

func NewGameService(store GameStore, leaderboard LanguageLeaderboard, recent RecentQuestionLog, generator generate.Generator, opts ...Option) *GameService {
	s := &GameService{
		store:       store,
		leaderboard: leaderboard,
		recent:      recent,
		generator:   generator,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
		backoff:     time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateGame allocates a collision-free code, creates the game in the lobby
// and seats the host at turn order 0.
func (s *GameService) CreateGame(ctx context.Context, hostID string, maxPlayers, timeLimitSeconds int) (domain.Game, error) {
	if maxPlayers < minPlayers || timeLimitSeconds <= 0 {
		return domain.Game{}, domain.ErrInvalidGameConfig
	}

	code, err := s.allocateCode(ctx)
	if err != nil {
		return domain.Game{}, err
	}

	now := s.now()
	game := domain.Game{
		ID:         uuid.NewString(),
		Code:       code,
		HostID:     hostID,
		Status:     domain.GameWaiting,
		MaxPlayers: maxPlayers,
		TimeLimit:  timeLimitSeconds,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	host := domain.GamePlayer{
		ID:       uuid.NewString(),
		GameID:   game.ID,
		PlayerID: hostID,
		IsActive: true,
		JoinedAt: now,
	}
	if err := s.store.CreateGame(ctx, &game, &host); err != nil {
		return domain.Game{}, err
	}
	return game, nil
}

func (s *GameService) allocateCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := domain.NewCode(s.rnd)
		used, err := s.store.CodeInUse(ctx, code)
		if err != nil {
			return "", err
		}
		if !used {
			return code, nil
		}
	}
	return "", domain.ErrCodeGenerationExhausted
}

// JoinGame seats a player in a waiting game. The store assigns the turn
// order and enforces capacity, so concurrent joins cannot share a seat. A
// player who already holds a seat gets it back (reactivated if needed).
func (s *GameService) JoinGame(ctx context.Context, code, playerID string) (domain.GamePlayer, error) {
	game, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return domain.GamePlayer{}, err
	}

	players, err := s.store.Players(ctx, game.ID)
	if err != nil {
		return domain.GamePlayer{}, err
	}
	for _, p := range players {
		if p.PlayerID == playerID {
			if !p.IsActive {
				if err := s.store.SetPlayerActive(ctx, game.ID, playerID, true); err != nil {
					return domain.GamePlayer{}, err
				}
				p.IsActive = true
			}
			return p, nil
		}
	}

	if game.Status != domain.GameWaiting {
		return domain.GamePlayer{}, domain.ErrGameAlreadyStarted
	}
	if len(players) >= game.MaxPlayers {
		return domain.GamePlayer{}, domain.ErrGameFull
	}

	player := domain.GamePlayer{
		ID:       uuid.NewString(),
		GameID:   game.ID,
		PlayerID: playerID,
		IsActive: true,
		JoinedAt: s.now(),
	}
	if err := s.store.AddPlayer(ctx, &player); err != nil {
		return domain.GamePlayer{}, err
	}
	return player, nil
}

// StartGame moves a waiting game to active. Host only; needs at least two
// seated players.
func (s *GameService) StartGame(ctx context.Context, gameID, playerID string) error {
	game, err := s.store.GameByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game.HostID != playerID {
		return domain.ErrNotHost
	}
	if game.Status != domain.GameWaiting {
		return domain.ErrGameAlreadyStarted
	}
	players, err := s.store.Players(ctx, gameID)
	if err != nil {
		return err
	}
	if len(players) < minPlayers {
		return domain.ErrNotEnoughPlayers
	}
	_, err = s.store.SetGameStatus(ctx, gameID, domain.GameWaiting, domain.GameActive)
	return err
}

// AdvanceTurn moves play to the next seat. The turns-completed counter makes
// round completion an O(1) check: once every player has had a turn and the
// index wraps to 0, the same write completes the game. A stale advance (the
// turn already moved) converges silently.
func (s *GameService) AdvanceTurn(ctx context.Context, gameID string, currentTurn int) (domain.Game, error) {
	game, err := s.store.GameByID(ctx, gameID)
	if err != nil {
		return domain.Game{}, err
	}
	if game.Status == domain.GameCompleted {
		return game, nil
	}

	players, err := s.store.Players(ctx, gameID)
	if err != nil {
		return domain.Game{}, err
	}
	if len(players) == 0 {
		return domain.Game{}, domain.ErrPlayerNotFound
	}

	nextTurn := (currentTurn + 1) % len(players)
	turnsCompleted := game.TurnsCompleted + 1
	complete := turnsCompleted >= len(players) && nextTurn == 0
	return s.store.UpdateTurn(ctx, gameID, currentTurn, nextTurn, turnsCompleted, complete)
}

// LeaveGame removes a player. The host leaving completes the game and then
// deletes it; the delete event is the terminal signal to every subscriber.
// Anyone else is just marked inactive.
func (s *GameService) LeaveGame(ctx context.Context, gameID, playerID string) error {
	game, err := s.store.GameByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game.HostID == playerID {
		if _, err := s.store.SetGameStatus(ctx, gameID, game.Status, domain.GameCompleted); err != nil {
			return err
		}
		return s.store.DeleteGame(ctx, gameID)
	}
	return s.store.SetPlayerActive(ctx, gameID, playerID, false)
}

// GameByCode resolves a game from its short code.
func (s *GameService) GameByCode(ctx context.Context, code string) (domain.Game, error) {
	return s.store.GameByCode(ctx, code)
}

// Snapshot assembles the authoritative view session machines re-derive from.
func (s *GameService) Snapshot(ctx context.Context, gameID string) (Snapshot, error) {
	game, err := s.store.GameByID(ctx, gameID)
	if err != nil {
		return Snapshot{}, err
	}
	players, err := s.store.Players(ctx, gameID)
	if err != nil {
		return Snapshot{}, err
	}
	question, err := s.store.LatestQuestion(ctx, gameID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Game: game, Players: players, Question: question}
	if question != nil {
		answers, err := s.store.Answers(ctx, question.ID)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Answers = answers
	}
	return snap, nil
}

// Subscribe exposes the store's change feed for one game. The caller must
// invoke the returned cancel function to avoid leaks.
func (s *GameService) Subscribe(ctx context.Context, gameID string) (<-chan domain.Event, func(), error) {
	if _, err := s.store.GameByID(ctx, gameID); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.store.Subscribe(gameID)
	return ch, cancel, nil
}

// Leaderboard returns the top n per-language cumulative scores.
func (s *GameService) Leaderboard(ctx context.Context, language string, n int) ([]domain.LanguageScore, error) {
	return s.leaderboard.Top(ctx, language, n)
}
