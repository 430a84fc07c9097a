package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/violabg/dev-quiz-battle-sub000/internal/domain"
	"github.com/violabg/dev-quiz-battle-sub000/internal/generate"
)

// CreateQuestion generates and opens a question for the current-turn player.
// Recent question texts for the same language+difficulty are passed to the
// generator as a de-duplication hint. Concurrent creations for the same game
// collapse into one generation; nothing is persisted when generation fails.
// A first question also moves a waiting game to active.
func (s *GameService) CreateQuestion(ctx context.Context, gameID, playerID, language, difficulty string) (domain.Question, error) {
	game, err := s.store.GameByID(ctx, gameID)
	if err != nil {
		return domain.Question{}, err
	}
	if game.Status == domain.GameCompleted {
		return domain.Question{}, domain.ErrGameCompleted
	}

	players, err := s.store.Players(ctx, gameID)
	if err != nil {
		return domain.Question{}, err
	}
	if err := requireTurn(game, players, playerID); err != nil {
		return domain.Question{}, err
	}

	open, err := s.store.OpenQuestion(ctx, gameID)
	if err != nil {
		return domain.Question{}, err
	}
	if open != nil {
		return domain.Question{}, domain.ErrQuestionStillOpen
	}

	result, err, _ := s.sf.Do(gameID, func() (interface{}, error) {
		// Re-check: the flight that won the singleflight may have opened one.
		open, err := s.store.OpenQuestion(ctx, gameID)
		if err != nil {
			return nil, err
		}
		if open != nil {
			return *open, nil
		}
		return s.generateAndInsert(ctx, game, playerID, language, difficulty)
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (s *GameService) generateAndInsert(ctx context.Context, game domain.Game, playerID, language, difficulty string) (domain.Question, error) {
	since := s.now().Add(-recentQuestionAge)
	previous, err := s.recent.Recent(ctx, language, difficulty, since)
	if err != nil {
		// The hint is best-effort; generation proceeds without it.
		log.Printf("recent question lookup failed: %v", err)
		previous = nil
	}

	payload, err := s.generateWithRetry(ctx, generate.Request{
		Language:              language,
		Difficulty:            difficulty,
		PreviousQuestionTexts: previous,
	})
	if err != nil {
		return domain.Question{}, err
	}

	if len(payload.Options) < 2 || payload.CorrectAnswerIndex < 0 || payload.CorrectAnswerIndex >= len(payload.Options) {
		return domain.Question{}, domain.ErrInvalidQuestionData
	}

	startedAt := payload.StartedAt
	if startedAt.IsZero() {
		startedAt = s.now()
	}
	question := domain.Question{
		ID:           uuid.NewString(),
		GameID:       game.ID,
		CreatedBy:    playerID,
		Language:     language,
		Difficulty:   difficulty,
		Text:         payload.QuestionText,
		CodeSample:   payload.CodeSample,
		Options:      payload.Options,
		CorrectIndex: payload.CorrectAnswerIndex,
		Explanation:  payload.Explanation,
		StartedAt:    startedAt,
	}
	if err := s.store.InsertQuestion(ctx, &question); err != nil {
		return domain.Question{}, err
	}

	if err := s.recent.Add(ctx, language, difficulty, question.Text, startedAt); err != nil {
		log.Printf("recent question log failed: %v", err)
	}

	if game.Status == domain.GameWaiting {
		if _, err := s.store.SetGameStatus(ctx, game.ID, domain.GameWaiting, domain.GameActive); err != nil {
			return domain.Question{}, err
		}
	}
	return question, nil
}

func (s *GameService) generateWithRetry(ctx context.Context, req generate.Request) (generate.Payload, error) {
	var lastErr error
	for attempt := 1; attempt <= generateAttempts; attempt++ {
		payload, err := s.generator.Generate(ctx, req)
		if err == nil {
			return payload, nil
		}
		lastErr = err
		if attempt == generateAttempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * s.backoff):
		case <-ctx.Done():
			return generate.Payload{}, ctx.Err()
		}
	}
	return generate.Payload{}, fmt.Errorf("%w: %v", domain.ErrQuestionGenerationFailed, lastErr)
}

// EndQuestion closes a question if still open. Idempotent: redundant calls
// (every client runs its own countdown) converge to one transition.
func (s *GameService) EndQuestion(ctx context.Context, questionID string) error {
	_, err := s.store.EndQuestion(ctx, questionID, s.now(), "")
	return err
}

// CurrentQuestion returns the open question if one exists, else the most
// recently ended one (so clients can still render the explanation), else nil.
func (s *GameService) CurrentQuestion(ctx context.Context, gameID string) (*domain.Question, error) {
	return s.store.LatestQuestion(ctx, gameID)
}

// requireTurn checks that playerID holds the seat the game's current turn
// indexes. Players are ordered by turn order.
func requireTurn(game domain.Game, players []domain.GamePlayer, playerID string) error {
	if len(players) == 0 {
		return domain.ErrPlayerNotFound
	}
	seat := game.CurrentTurn % len(players)
	for _, p := range players {
		if p.TurnOrder == seat {
			if p.PlayerID != playerID {
				return domain.ErrNotPlayersTurn
			}
			return nil
		}
	}
	return domain.ErrPlayerNotFound
}
