package domain

import "errors"

var (
	// ErrGameNotFound is returned when a game id or code does not resolve.
	ErrGameNotFound = errors.New("game not found")
	// ErrGameAlreadyStarted is returned when joining a game that left the lobby.
	ErrGameAlreadyStarted = errors.New("game already started")
	// ErrGameFull is returned when a game has reached its player limit.
	ErrGameFull = errors.New("game is full")
	// ErrGameCompleted is returned for mutations against a finished game.
	ErrGameCompleted = errors.New("game already completed")
	// ErrNotEnoughPlayers is returned when starting a game with fewer than two players.
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	// ErrNotHost is returned when a non-host attempts a host-only operation.
	ErrNotHost = errors.New("only the host may do this")
	// ErrNotPlayersTurn is returned when a player acts outside their turn.
	ErrNotPlayersTurn = errors.New("not this player's turn")
	// ErrPlayerNotFound is returned when a player is not part of the game.
	ErrPlayerNotFound = errors.New("player not found in game")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionAlreadyEnded is returned for answers against an ended question.
	ErrQuestionAlreadyEnded = errors.New("question already ended")
	// ErrQuestionStillOpen is returned when creating a question while one is open.
	ErrQuestionStillOpen = errors.New("another question is still open")
	// ErrDuplicateAnswer is returned on a second answer from the same player.
	ErrDuplicateAnswer = errors.New("player already answered this question")
	// ErrInvalidQuestionData is returned when generated content fails validation.
	ErrInvalidQuestionData = errors.New("invalid question data")
	// ErrQuestionGenerationFailed is returned after generation retries are exhausted.
	ErrQuestionGenerationFailed = errors.New("question generation failed")
	// ErrInvalidGameConfig is returned for out-of-range game settings.
	ErrInvalidGameConfig = errors.New("invalid game configuration")
	// ErrCodeGenerationExhausted is returned when no free game code was found.
	ErrCodeGenerationExhausted = errors.New("game code generation exhausted")
)
