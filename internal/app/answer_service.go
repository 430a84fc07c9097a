package app

import (
	"context"

	"github.com/google/uuid"

	"github.com/violabg/dev-quiz-battle-sub000/internal/domain"
)

// AnswerResult is the outcome of one submission. ScoreEarned is what the
// answer was worth at the player's latency; it reached the aggregates only if
// WasWinningAnswer is set.
type AnswerResult struct {
	AnswerID         string  `json:"answerId"`
	WasWinningAnswer bool    `json:"wasWinningAnswer"`
	ScoreEarned      float64 `json:"scoreEarned"`
}

// SubmitAnswer records a submission and resolves the winner race. Every
// submission is recorded, right or wrong; a correct one then contends for the
// question's single atomic open->ended transition. Of N concurrent correct
// submissions exactly one wins that transition, and only the winner's score
// is applied to the per-game score and the per-language leaderboard.
func (s *GameService) SubmitAnswer(ctx context.Context, questionID, playerID, gameID string, selectedOption int, responseTimeMs, timeLimitMs int64) (AnswerResult, error) {
	question, err := s.store.QuestionByID(ctx, questionID)
	if err != nil {
		return AnswerResult{}, err
	}
	if !question.Open() {
		return AnswerResult{}, domain.ErrQuestionAlreadyEnded
	}

	correct := selectedOption >= 0 &&
		selectedOption < len(question.Options) &&
		selectedOption == question.CorrectIndex

	var earned float64
	if correct {
		earned = domain.Score(responseTimeMs, timeLimitMs)
	}

	answer := domain.Answer{
		ID:             uuid.NewString(),
		QuestionID:     questionID,
		PlayerID:       playerID,
		SelectedOption: selectedOption,
		IsCorrect:      correct,
		ResponseTimeMs: responseTimeMs,
		ScoreEarned:    earned,
		AnsweredAt:     s.now(),
	}
	if err := s.store.InsertAnswer(ctx, &answer); err != nil {
		return AnswerResult{}, err
	}

	result := AnswerResult{AnswerID: answer.ID, ScoreEarned: earned}
	if !correct {
		return result, nil
	}

	won, err := s.store.EndQuestion(ctx, questionID, s.now(), answer.ID)
	if err != nil {
		return AnswerResult{}, err
	}
	if !won {
		// Lost the race: the answer stays recorded with its would-be score,
		// but nothing is applied to aggregates.
		return result, nil
	}

	if err := s.store.AddPlayerScore(ctx, gameID, playerID, earned); err != nil {
		return AnswerResult{}, err
	}
	if err := s.leaderboard.IncrScore(ctx, playerID, question.Language, earned); err != nil {
		return AnswerResult{}, err
	}
	result.WasWinningAnswer = true
	return result, nil
}
