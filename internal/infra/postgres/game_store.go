package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/violabg/dev-quiz-battle-sub000/internal/app"
	"github.com/violabg/dev-quiz-battle-sub000/internal/domain"
)

// GameStore is the Postgres implementation of app.GameStore. The conditional
// writes the engine depends on are single-statement UPDATEs guarded by WHERE
// clauses (ended_at IS NULL, status = $from, current_turn = $expect), so the
// check-then-act window of a read-then-patch store does not exist here.
// Duplicate answers are a unique index, not application logic.
//
// Notes:
//   - Rows are the shared truth; change events are fanned out through an
//     in-process hub. For true multi-instance fan-out you'd pair this with
//     LISTEN/NOTIFY or a pub/sub projector.
type GameStore struct {
	pool *pgxpool.Pool
	hub  *app.EventHub
}

func NewGameStore(pool *pgxpool.Pool) *GameStore {
	return &GameStore{pool: pool, hub: app.NewEventHub()}
}

func (s *GameStore) CreateGame(ctx context.Context, game *domain.Game, host *domain.GamePlayer) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create game: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO games (id, code, host_id, status, max_players, current_turn, turns_completed, time_limit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		game.ID, game.Code, game.HostID, game.Status, game.MaxPlayers,
		game.CurrentTurn, game.TurnsCompleted, game.TimeLimit, game.CreatedAt, game.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO game_players (id, game_id, player_id, score, turn_order, is_active, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		host.ID, host.GameID, host.PlayerID, host.Score, host.TurnOrder, host.IsActive, host.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert host: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create game: %w", err)
	}

	s.hub.Publish(domain.Event{Type: domain.EventInsert, Entity: domain.EntityGame, GameID: game.ID, New: *game})
	return nil
}

const gameColumns = `id, code, host_id, status, max_players, current_turn, turns_completed, time_limit, created_at, updated_at`

func (s *GameStore) GameByID(ctx context.Context, id string) (domain.Game, error) {
	return s.scanGame(s.pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id=$1`, id))
}

func (s *GameStore) GameByCode(ctx context.Context, code string) (domain.Game, error) {
	return s.scanGame(s.pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE code=$1`, code))
}

func (s *GameStore) scanGame(row pgx.Row) (domain.Game, error) {
	var g domain.Game
	err := row.Scan(&g.ID, &g.Code, &g.HostID, &g.Status, &g.MaxPlayers,
		&g.CurrentTurn, &g.TurnsCompleted, &g.TimeLimit, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Game{}, domain.ErrGameNotFound
	}
	if err != nil {
		return domain.Game{}, fmt.Errorf("scan game: %w", err)
	}
	return g, nil
}

func (s *GameStore) CodeInUse(ctx context.Context, code string) (bool, error) {
	var used bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE code=$1)`, code).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("check code: %w", err)
	}
	return used, nil
}

func (s *GameStore) SetGameStatus(ctx context.Context, gameID string, from, to domain.GameStatus) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE games SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`,
		gameID, from, to)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the game is gone or the transition already happened.
		if _, err := s.GameByID(ctx, gameID); err != nil {
			return false, err
		}
		return false, nil
	}

	game, err := s.GameByID(ctx, gameID)
	if err == nil {
		s.hub.Publish(domain.Event{Type: domain.EventUpdate, Entity: domain.EntityGame, GameID: gameID, New: game})
	}
	return true, nil
}

func (s *GameStore) UpdateTurn(ctx context.Context, gameID string, expectTurn, nextTurn, turnsCompleted int, complete bool) (domain.Game, error) {
	status := domain.GameActive
	if complete {
		status = domain.GameCompleted
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE games SET current_turn=$3, turns_completed=$4, status=$5, updated_at=now()
		WHERE id=$1 AND current_turn=$2 AND status='active'
		RETURNING `+gameColumns,
		gameID, expectTurn, nextTurn, turnsCompleted, status)
	game, err := s.scanGame(row)
	if errors.Is(err, domain.ErrGameNotFound) {
		// Stale advance; converge on whatever the row says now.
		return s.GameByID(ctx, gameID)
	}
	if err != nil {
		return domain.Game{}, err
	}

	s.hub.Publish(domain.Event{Type: domain.EventUpdate, Entity: domain.EntityGame, GameID: gameID, New: game})
	return game, nil
}

func (s *GameStore) DeleteGame(ctx context.Context, gameID string) error {
	game, err := s.GameByID(ctx, gameID)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM games WHERE id=$1`, gameID); err != nil {
		return fmt.Errorf("delete game: %w", err)
	}

	s.hub.Publish(domain.Event{Type: domain.EventDelete, Entity: domain.EntityGame, GameID: gameID, Old: game})
	return nil
}

const seatAttempts = 5

// AddPlayer computes the seat inside the INSERT itself; the UNIQUE
// (game_id, turn_order) index turns a concurrent join into a silent conflict
// that is retried with a fresh count, so two joins can never share a seat.
// The capacity guard rides in the same statement.
func (s *GameStore) AddPlayer(ctx context.Context, player *domain.GamePlayer) error {
	for attempt := 0; attempt < seatAttempts; attempt++ {
		row := s.pool.QueryRow(ctx, `
			INSERT INTO game_players (id, game_id, player_id, score, turn_order, is_active, joined_at)
			SELECT $1, g.id, $3, $4, (SELECT count(*) FROM game_players WHERE game_id=g.id), $5, $6
			FROM games g
			WHERE g.id=$2 AND (SELECT count(*) FROM game_players WHERE game_id=g.id) < g.max_players
			ON CONFLICT (game_id, turn_order) DO NOTHING
			RETURNING turn_order`,
			player.ID, player.GameID, player.PlayerID, player.Score, player.IsActive, player.JoinedAt)
		err := row.Scan(&player.TurnOrder)
		if errors.Is(err, pgx.ErrNoRows) {
			// Missing game, full game, or a lost seat race.
			game, err := s.GameByID(ctx, player.GameID)
			if err != nil {
				return err
			}
			var seated int
			if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM game_players WHERE game_id=$1`, player.GameID).Scan(&seated); err != nil {
				return fmt.Errorf("count players: %w", err)
			}
			if seated >= game.MaxPlayers {
				return domain.ErrGameFull
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("insert player: %w", err)
		}

		s.hub.Publish(domain.Event{Type: domain.EventInsert, Entity: domain.EntityPlayer, GameID: player.GameID, New: *player})
		return nil
	}
	return fmt.Errorf("insert player: seat contention on game %s", player.GameID)
}

func (s *GameStore) Players(ctx context.Context, gameID string) ([]domain.GamePlayer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, game_id, player_id, score, turn_order, is_active, joined_at
		FROM game_players WHERE game_id=$1 ORDER BY turn_order`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	var players []domain.GamePlayer
	for rows.Next() {
		var p domain.GamePlayer
		if err := rows.Scan(&p.ID, &p.GameID, &p.PlayerID, &p.Score, &p.TurnOrder, &p.IsActive, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate players: %w", err)
	}
	if players == nil {
		if _, err := s.GameByID(ctx, gameID); err != nil {
			return nil, err
		}
	}
	return players, nil
}

func (s *GameStore) SetPlayerActive(ctx context.Context, gameID, playerID string, active bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_players SET is_active=$3 WHERE game_id=$1 AND player_id=$2`,
		gameID, playerID, active)
	if err != nil {
		return fmt.Errorf("update player active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPlayerNotFound
	}

	s.hub.Publish(domain.Event{Type: domain.EventUpdate, Entity: domain.EntityPlayer, GameID: gameID})
	return nil
}

func (s *GameStore) AddPlayerScore(ctx context.Context, gameID, playerID string, delta float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_players SET score = score + $3 WHERE game_id=$1 AND player_id=$2`,
		gameID, playerID, delta)
	if err != nil {
		return fmt.Errorf("update player score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPlayerNotFound
	}

	s.hub.Publish(domain.Event{Type: domain.EventUpdate, Entity: domain.EntityPlayer, GameID: gameID})
	return nil
}

const questionColumns = `id, game_id, created_by, language, difficulty, question_text, code_sample, options, correct_index, explanation, started_at, ended_at, winner_answer_id`

func (s *GameStore) InsertQuestion(ctx context.Context, question *domain.Question) error {
	options, err := json.Marshal(question.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO questions (id, game_id, created_by, language, difficulty, question_text, code_sample, options, correct_index, explanation, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		question.ID, question.GameID, question.CreatedBy, question.Language, question.Difficulty,
		question.Text, question.CodeSample, options, question.CorrectIndex, question.Explanation,
		question.StartedAt, question.EndedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	s.hub.Publish(domain.Event{Type: domain.EventInsert, Entity: domain.EntityQuestion, GameID: question.GameID, New: *question})
	return nil
}

func (s *GameStore) QuestionByID(ctx context.Context, id string) (domain.Question, error) {
	return s.scanQuestion(s.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=$1`, id))
}

func (s *GameStore) OpenQuestion(ctx context.Context, gameID string) (*domain.Question, error) {
	q, err := s.scanQuestion(s.pool.QueryRow(ctx, `
		SELECT `+questionColumns+` FROM questions WHERE game_id=$1 AND ended_at IS NULL`, gameID))
	if errors.Is(err, domain.ErrQuestionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *GameStore) LatestQuestion(ctx context.Context, gameID string) (*domain.Question, error) {
	q, err := s.scanQuestion(s.pool.QueryRow(ctx, `
		SELECT `+questionColumns+` FROM questions WHERE game_id=$1
		ORDER BY (ended_at IS NULL) DESC, ended_at DESC LIMIT 1`, gameID))
	if errors.Is(err, domain.ErrQuestionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *GameStore) scanQuestion(row pgx.Row) (domain.Question, error) {
	var q domain.Question
	var options []byte
	var winner *string
	err := row.Scan(&q.ID, &q.GameID, &q.CreatedBy, &q.Language, &q.Difficulty,
		&q.Text, &q.CodeSample, &options, &q.CorrectIndex, &q.Explanation,
		&q.StartedAt, &q.EndedAt, &winner)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("scan question: %w", err)
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal options: %w", err)
	}
	if winner != nil {
		q.WinnerAnswerID = *winner
	}
	return q, nil
}

func (s *GameStore) EndQuestion(ctx context.Context, questionID string, at time.Time, winnerAnswerID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE questions SET ended_at=$2, winner_answer_id=NULLIF($3, '')
		WHERE id=$1 AND ended_at IS NULL`,
		questionID, at, winnerAnswerID)
	if err != nil {
		return false, fmt.Errorf("end question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already ended, or no such question.
		if _, err := s.QuestionByID(ctx, questionID); err != nil {
			return false, err
		}
		return false, nil
	}

	question, err := s.QuestionByID(ctx, questionID)
	if err == nil {
		s.hub.Publish(domain.Event{Type: domain.EventUpdate, Entity: domain.EntityQuestion, GameID: question.GameID, New: question})
	}
	return true, nil
}

func (s *GameStore) InsertAnswer(ctx context.Context, answer *domain.Answer) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO answers (id, question_id, player_id, selected_option, is_correct, response_time_ms, score_earned, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (question_id, player_id) DO NOTHING`,
		answer.ID, answer.QuestionID, answer.PlayerID, answer.SelectedOption,
		answer.IsCorrect, answer.ResponseTimeMs, answer.ScoreEarned, answer.AnsweredAt)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateAnswer
	}

	question, err := s.QuestionByID(ctx, answer.QuestionID)
	if err == nil {
		s.hub.Publish(domain.Event{Type: domain.EventInsert, Entity: domain.EntityAnswer, GameID: question.GameID, New: *answer})
	}
	return nil
}

func (s *GameStore) Answers(ctx context.Context, questionID string) ([]domain.Answer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, question_id, player_id, selected_option, is_correct, response_time_ms, score_earned, answered_at
		FROM answers WHERE question_id=$1 ORDER BY answered_at`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var answers []domain.Answer
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.PlayerID, &a.SelectedOption,
			&a.IsCorrect, &a.ResponseTimeMs, &a.ScoreEarned, &a.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return answers, nil
}

func (s *GameStore) Subscribe(gameID string) (<-chan domain.Event, func()) {
	return s.hub.Subscribe(gameID)
}
