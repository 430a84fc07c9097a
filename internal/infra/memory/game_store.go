package memory

import (
	"context"
	"sync"
	"time"

	"github.com/violabg/dev-quiz-battle-sub000/internal/app"
	"github.com/violabg/dev-quiz-battle-sub000/internal/domain"
)

// GameStore is the in-memory implementation of app.GameStore. One mutex
// guards all tables, so every conditional write (end question, status
// transition, turn advance) is atomic, and duplicate answers are caught by a
// composite-key map rather than a read-then-insert.
type GameStore struct {
	hub *app.EventHub

	mu        sync.RWMutex
	games     map[string]*domain.Game
	codes     map[string]string // code -> game ID
	players   map[string][]*domain.GamePlayer
	questions map[string]*domain.Question
	byGame    map[string][]string // game ID -> question IDs, insert order
	answers   map[string][]*domain.Answer
	answered  map[string]struct{} // question ID + "/" + player ID
}

func NewGameStore() *GameStore {
	return &GameStore{
		hub:       app.NewEventHub(),
		games:     make(map[string]*domain.Game),
		codes:     make(map[string]string),
		players:   make(map[string][]*domain.GamePlayer),
		questions: make(map[string]*domain.Question),
		byGame:    make(map[string][]string),
		answers:   make(map[string][]*domain.Answer),
		answered:  make(map[string]struct{}),
	}
}

func (s *GameStore) CreateGame(_ context.Context, game *domain.Game, host *domain.GamePlayer) error {
	s.mu.Lock()
	g := *game
	h := *host
	s.games[g.ID] = &g
	s.codes[g.Code] = g.ID
	s.players[g.ID] = []*domain.GamePlayer{&h}
	s.mu.Unlock()

	s.hub.Publish(domain.Event{Type: domain.EventInsert, Entity: domain.EntityGame, GameID: g.ID, New: g})
	return nil
}

func (s *GameStore) GameByID(_ context.Context, id string) (domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[id]
	if !ok {
		return domain.Game{}, domain.ErrGameNotFound
	}
	return *game, nil
}

func (s *GameStore) GameByCode(_ context.Context, code string) (domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return domain.Game{}, domain.ErrGameNotFound
	}
	return *s.games[id], nil
}

func (s *GameStore) CodeInUse(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.codes[code]
	return ok, nil
}

func (s *GameStore) SetGameStatus(_ context.Context, gameID string, from, to domain.GameStatus) (bool, error) {
	s.mu.Lock()
	game, ok := s.games[gameID]
	if !ok {
		s.mu.Unlock()
		return false, domain.ErrGameNotFound
	}
	if game.Status != from {
		s.mu.Unlock()
		return false, nil
	}
	old := *game
	game.Status = to
	game.UpdatedAt = time.Now()
	updated := *game
	s.mu.Unlock()

	s.hub.Publish(domain.Event{Type: domain.EventUpdate, Entity: domain.EntityGame, GameID: gameID, New: updated, Old: old})
	return true, nil
}

func (s *GameStore) UpdateTurn(_ context.Context, gameID string, expectTurn, nextTurn, turnsCompleted int, complete bool) (domain.Game, error) {
	s.mu.Lock()
	game, ok := s.games[gameID]
	if !ok {
		s.mu.Unlock()
		return domain.Game{}, domain.ErrGameNotFound
	}
	if game.Status != domain.GameActive || game.CurrentTurn != expectTurn {
		// Stale advance; the turn already moved. Converge on current state.
		current := *game
		s.mu.Unlock()
		return current, nil
	}
	old := *game
	game.CurrentTurn = nextTurn
	game.TurnsCompleted = turnsCompleted
	if complete {
		game.Status = domain.GameCompleted
	}
	game.UpdatedAt = time.Now()
	updated := *game
	s.mu.Unlock()

	s.hub.Publish(domain.Event{Type: domain.EventUpdate, Entity: domain.EntityGame, GameID: gameID, New: updated, Old: old})
	return updated, nil
}

func (s *GameStore) DeleteGame(_ context.Context, gameID string) error {
	s.mu.Lock()
	game, ok := s.games[gameID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrGameNotFound
	}
	old := *game
	delete(s.games, gameID)
	delete(s.codes, old.Code)
	delete(s.players, gameID)
	for _, qid := range s.byGame[gameID] {
		for _, a := range s.answers[qid] {
			delete(s.answered, answeredKey(qid, a.PlayerID))
		}
		delete(s.answers, qid)
		delete(s.questions, qid)
	}
	delete(s.byGame, gameID)
	s.mu.Unlock()

	s.hub.Publish(domain.Event{Type: domain.EventDelete, Entity: domain.EntityGame, GameID: gameID, Old: old})
	return nil
}

// AddPlayer assigns the seat under the store mutex: the count, the capacity
// check and the insert are one critical section, so concurrent joins can
// neither share a turn order nor overshoot MaxPlayers.
func (s *GameStore) AddPlayer(_ context.Context, player *domain.GamePlayer) error {
	s.mu.Lock()
	game, ok := s.games[player.GameID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrGameNotFound
	}
	seats := s.players[player.GameID]
	if len(seats) >= game.MaxPlayers {
		s.mu.Unlock()
		return domain.ErrGameFull
	}
	player.TurnOrder = len(seats)
	p := *player
	s.players[p.GameID] = append(seats, &p)
	s.mu.Unlock()

	s.hub.Publish(domain.Event{Type: domain.EventInsert, Entity: domain.EntityPlayer, GameID: p.GameID, New: p})
	return nil
}

func (s *GameStore) Players(_ context.Context, gameID string) ([]domain.GamePlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.games[gameID]; !ok {
		return nil, domain.ErrGameNotFound
	}
	seats := s.players[gameID]
	out := make([]domain.GamePlayer, len(seats))
	for i, p := range seats {
		out[i] = *p
	}
	// Seats are appended in join order, which is turn order.
	return out, nil
}

func (s *GameStore) SetPlayerActive(_ context.Context, gameID, playerID string, active bool) error {
	s.mu.Lock()
	player := s.findPlayerLocked(gameID, playerID)
	if player == nil {
		s.mu.Unlock()
		return domain.ErrPlayerNotFound
	}
	old := *player
	player.IsActive = active
	updated := *player
	s.mu.Unlock()

	s.hub.Publish(domain.Event{Type: domain.EventUpdate, Entity: domain.EntityPlayer, GameID: gameID, New: updated, Old: old})
	return nil
}

func (s *GameStore) AddPlayerScore(_ context.Context, gameID, playerID string, delta float64) error {
	s.mu.Lock()
	player := s.findPlayerLocked(gameID, playerID)
	if player == nil {
		s.mu.Unlock()
		return domain.ErrPlayerNotFound
	}
	old := *player
	player.Score += delta
	updated := *player
	s.mu.Unlock()

	s.hub.Publish(domain.Event{Type: domain.EventUpdate, Entity: domain.EntityPlayer, GameID: gameID, New: updated, Old: old})
	return nil
}

func (s *GameStore) findPlayerLocked(gameID, playerID string) *domain.GamePlayer {
	for _, p := range s.players[gameID] {
		if p.PlayerID == playerID {
			return p
		}
	}
	return nil
}

func (s *GameStore) InsertQuestion(_ context.Context, question *domain.Question) error {
	s.mu.Lock()
	if _, ok := s.games[question.GameID]; !ok {
		s.mu.Unlock()
		return domain.ErrGameNotFound
	}
	q := *question
	s.questions[q.ID] = &q
	s.byGame[q.GameID] = append(s.byGame[q.GameID], q.ID)
	s.mu.Unlock()

	s.hub.Publish(domain.Event{Type: domain.EventInsert, Entity: domain.EntityQuestion, GameID: q.GameID, New: q})
	return nil
}

func (s *GameStore) QuestionByID(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	question, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return cloneQuestion(question), nil
}

func (s *GameStore) OpenQuestion(_ context.Context, gameID string) (*domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, qid := range s.byGame[gameID] {
		if q := s.questions[qid]; q.EndedAt == nil {
			out := cloneQuestion(q)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *GameStore) LatestQuestion(_ context.Context, gameID string) (*domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.Question
	for _, qid := range s.byGame[gameID] {
		q := s.questions[qid]
		if q.EndedAt == nil {
			out := cloneQuestion(q)
			return &out, nil
		}
		if latest == nil || q.EndedAt.After(*latest.EndedAt) {
			latest = q
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := cloneQuestion(latest)
	return &out, nil
}

func (s *GameStore) EndQuestion(_ context.Context, questionID string, at time.Time, winnerAnswerID string) (bool, error) {
	s.mu.Lock()
	question, ok := s.questions[questionID]
	if !ok {
		s.mu.Unlock()
		return false, domain.ErrQuestionNotFound
	}
	if question.EndedAt != nil {
		s.mu.Unlock()
		return false, nil
	}
	old := cloneQuestion(question)
	ended := at
	question.EndedAt = &ended
	question.WinnerAnswerID = winnerAnswerID
	updated := cloneQuestion(question)
	s.mu.Unlock()

	s.hub.Publish(domain.Event{Type: domain.EventUpdate, Entity: domain.EntityQuestion, GameID: updated.GameID, New: updated, Old: old})
	return true, nil
}

func (s *GameStore) InsertAnswer(_ context.Context, answer *domain.Answer) error {
	s.mu.Lock()
	question, ok := s.questions[answer.QuestionID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrQuestionNotFound
	}
	key := answeredKey(answer.QuestionID, answer.PlayerID)
	if _, dup := s.answered[key]; dup {
		s.mu.Unlock()
		return domain.ErrDuplicateAnswer
	}
	s.answered[key] = struct{}{}
	a := *answer
	s.answers[a.QuestionID] = append(s.answers[a.QuestionID], &a)
	gameID := question.GameID
	s.mu.Unlock()

	s.hub.Publish(domain.Event{Type: domain.EventInsert, Entity: domain.EntityAnswer, GameID: gameID, New: a})
	return nil
}

func (s *GameStore) Answers(_ context.Context, questionID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.questions[questionID]; !ok {
		return nil, domain.ErrQuestionNotFound
	}
	list := s.answers[questionID]
	out := make([]domain.Answer, len(list))
	for i, a := range list {
		out[i] = *a
	}
	return out, nil
}

func (s *GameStore) Subscribe(gameID string) (<-chan domain.Event, func()) {
	return s.hub.Subscribe(gameID)
}

func answeredKey(questionID, playerID string) string {
	return questionID + "/" + playerID
}

func cloneQuestion(q *domain.Question) domain.Question {
	out := *q
	out.Options = append([]string(nil), q.Options...)
	if q.EndedAt != nil {
		ended := *q.EndedAt
		out.EndedAt = &ended
	}
	return out
}
