package app

import (
	"context"
	"time"

	"github.com/violabg/dev-quiz-battle-sub000/internal/domain"
)

// GameStore is the authoritative home of game state. Implementations must
// guarantee atomic single-row conditional writes: EndQuestion, SetGameStatus
// and UpdateTurn are the serialization points every safety property rests on.
type GameStore interface {
	// CreateGame inserts the game and its host seat in one step.
	CreateGame(ctx context.Context, game *domain.Game, host *domain.GamePlayer) error
	GameByID(ctx context.Context, id string) (domain.Game, error)
	GameByCode(ctx context.Context, code string) (domain.Game, error)
	CodeInUse(ctx context.Context, code string) (bool, error)
	// SetGameStatus transitions status from -> to and reports whether this
	// call performed the transition.
	SetGameStatus(ctx context.Context, gameID string, from, to domain.GameStatus) (bool, error)
	// UpdateTurn advances the turn only if the game is active and its
	// current turn still equals expectTurn; a stale advance is a no-op and
	// returns the already-advanced row. When complete is set the same write
	// also marks the game completed.
	UpdateTurn(ctx context.Context, gameID string, expectTurn, nextTurn, turnsCompleted int, complete bool) (domain.Game, error)
	DeleteGame(ctx context.Context, gameID string) error

	// AddPlayer seats a player, assigning the next turn order atomically and
	// writing it back to player. Seat assignment and the capacity check live
	// here, not in the caller: two concurrent joins must never share a seat
	// or overshoot MaxPlayers. A full game fails with domain.ErrGameFull.
	AddPlayer(ctx context.Context, player *domain.GamePlayer) error
	Players(ctx context.Context, gameID string) ([]domain.GamePlayer, error)
	SetPlayerActive(ctx context.Context, gameID, playerID string, active bool) error
	AddPlayerScore(ctx context.Context, gameID, playerID string, delta float64) error

	InsertQuestion(ctx context.Context, question *domain.Question) error
	QuestionByID(ctx context.Context, id string) (domain.Question, error)
	// OpenQuestion returns the game's open question, or nil when none is open.
	OpenQuestion(ctx context.Context, gameID string) (*domain.Question, error)
	// LatestQuestion returns the open question if any, else the most
	// recently ended one, else nil.
	LatestQuestion(ctx context.Context, gameID string) (*domain.Question, error)
	// EndQuestion sets EndedAt only if still unset and reports whether this
	// call performed the transition. Redundant calls are no-ops. A non-empty
	// winnerAnswerID records which answer closed the question; a timeout
	// close passes "".
	EndQuestion(ctx context.Context, questionID string, at time.Time, winnerAnswerID string) (bool, error)

	// InsertAnswer records a submission; a second answer for the same
	// (question, player) fails with domain.ErrDuplicateAnswer.
	InsertAnswer(ctx context.Context, answer *domain.Answer) error
	Answers(ctx context.Context, questionID string) ([]domain.Answer, error)

	// Subscribe registers for change events scoped to one game. The caller
	// must invoke the cancel function to avoid leaks.
	Subscribe(gameID string) (<-chan domain.Event, func())
}

// LanguageLeaderboard accumulates winning-answer scores per language.
type LanguageLeaderboard interface {
	IncrScore(ctx context.Context, playerID, language string, delta float64) error
	Top(ctx context.Context, language string, n int) ([]domain.LanguageScore, error)
}

// RecentQuestionLog remembers recently generated question texts per
// language+difficulty so the generator can avoid repeats.
type RecentQuestionLog interface {
	Add(ctx context.Context, language, difficulty, text string, at time.Time) error
	Recent(ctx context.Context, language, difficulty string, since time.Time) ([]string, error)
}

// Snapshot is the authoritative view a session state machine re-derives its
// local state from. Players are ordered by turn order; Question is the open
// question or the most recently ended one.
type Snapshot struct {
	Game     domain.Game         `json:"game"`
	Players  []domain.GamePlayer `json:"players"`
	Question *domain.Question    `json:"question,omitempty"`
	Answers  []domain.Answer     `json:"answers,omitempty"`
}
