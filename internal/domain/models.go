package domain

import "time"

// GameStatus is the lifecycle phase of a game. Transitions are monotonic:
// waiting -> active -> completed, never backwards.
type GameStatus string

const (
	GameWaiting   GameStatus = "waiting"
	GameActive    GameStatus = "active"
	GameCompleted GameStatus = "completed"
)

// Game is one playthrough from lobby to completion, identified by a short code.
type Game struct {
	ID         string     `json:"id"`
	Code       string     `json:"code"`
	HostID     string     `json:"hostId"`
	Status     GameStatus `json:"status"`
	MaxPlayers int        `json:"maxPlayers"`
	// CurrentTurn indexes into the players ordered by TurnOrder. Only
	// meaningful while the game is active.
	CurrentTurn int `json:"currentTurn"`
	// TurnsCompleted counts finished turns since game start. Round
	// completion is derived from it instead of rescanning questions.
	TurnsCompleted int       `json:"turnsCompleted"`
	TimeLimit      int       `json:"timeLimit"` // seconds per question
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// GamePlayer is a player's seat in one game. TurnOrder is assigned at join
// time and never changes; Score never decreases.
type GamePlayer struct {
	ID        string    `json:"id"`
	GameID    string    `json:"gameId"`
	PlayerID  string    `json:"playerId"`
	Score     float64   `json:"score"`
	TurnOrder int       `json:"turnOrder"`
	IsActive  bool      `json:"isActive"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Question is a generated multiple-choice question. EndedAt is nil while the
// question is open; at most one question per game is open at a time, and the
// nil -> non-nil transition happens exactly once.
type Question struct {
	ID           string     `json:"id"`
	GameID       string     `json:"gameId"`
	CreatedBy    string     `json:"createdBy"`
	Language     string     `json:"language"`
	Difficulty   string     `json:"difficulty"`
	Text         string     `json:"text"`
	CodeSample   string     `json:"codeSample,omitempty"`
	Options      []string   `json:"options"`
	CorrectIndex int        `json:"correctIndex"`
	Explanation  string     `json:"explanation,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	// WinnerAnswerID is the answer that won the open->ended transition.
	// Empty for a timeout close or while the question is still open.
	WinnerAnswerID string `json:"winnerAnswerId,omitempty"`
}

// Open reports whether the question is still accepting answers.
func (q Question) Open() bool {
	return q.EndedAt == nil
}

// Answer records one player's submission, right or wrong. At most one answer
// exists per (question, player). ScoreEarned is what the answer was worth at
// the player's latency; only the winning answer's value is applied to
// aggregates.
type Answer struct {
	ID             string    `json:"id"`
	QuestionID     string    `json:"questionId"`
	PlayerID       string    `json:"playerId"`
	SelectedOption int       `json:"selectedOption"`
	IsCorrect      bool      `json:"isCorrect"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	ScoreEarned    float64   `json:"scoreEarned"`
	AnsweredAt     time.Time `json:"answeredAt"`
}

// LanguageScore is one row of the per-language cumulative leaderboard.
type LanguageScore struct {
	PlayerID string  `json:"playerId"`
	Language string  `json:"language"`
	Score    float64 `json:"score"`
}
