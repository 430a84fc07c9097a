package session

import (
	"time"

	"github.com/violabg/dev-quiz-battle-sub000/internal/app"
	"github.com/violabg/dev-quiz-battle-sub000/internal/domain"
)

// Phase is the top-level client-observed state of a game session.
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseActive    Phase = "active"
	PhaseCompleted Phase = "completed"
	// Terminal states.
	PhaseLeft   Phase = "left"
	PhaseClosed Phase = "closed" // game row deleted
	PhaseError  Phase = "error"  // unrecoverable load failure
)

// Stage is the turn-local sub-state while a game is active.
type Stage string

const (
	StageQuestionSelection Stage = "questionSelection"
	StageQuestionActive    Stage = "questionActive"
	StageShowingResults    Stage = "showingResults"
)

// View is what one client renders. It is derived entirely from the latest
// authoritative snapshot; the machine holds nothing the store doesn't.
type View struct {
	Phase    Phase               `json:"phase"`
	Stage    Stage               `json:"stage,omitempty"`
	Game     domain.Game         `json:"game"`
	Players  []domain.GamePlayer `json:"players"`
	Question *domain.Question    `json:"question,omitempty"`
	Answers  []domain.Answer     `json:"answers,omitempty"`
	WinnerID string              `json:"winnerId,omitempty"`
	// Deadline is when the local countdown for the open question fires.
	// Zero when no question is open.
	Deadline time.Time `json:"deadline,omitempty"`
}

// Machine re-derives a client's view from store snapshots. One instance per
// connected client, seeded by the local user's ID.
type Machine struct {
	userID   string
	prevTurn int
	seeded   bool
	view     View
}

func NewMachine(userID string) *Machine {
	return &Machine{userID: userID}
}

// UserID returns the local user this machine computes views for.
func (m *Machine) UserID() string {
	return m.userID
}

// View returns the last computed view.
func (m *Machine) View() View {
	return m.view
}

// Apply folds a fresh snapshot into the machine and returns the new view.
// A turn change resets all turn-local state; everything else is recomputed
// from the snapshot, so stale or duplicated events are harmless.
func (m *Machine) Apply(snap app.Snapshot) View {
	if m.seeded && snap.Game.CurrentTurn != m.prevTurn {
		m.view.Question = nil
		m.view.Answers = nil
		m.view.WinnerID = ""
		m.view.Deadline = time.Time{}
	}
	m.prevTurn = snap.Game.CurrentTurn
	m.seeded = true

	view := View{
		Game:    snap.Game,
		Players: snap.Players,
	}
	switch snap.Game.Status {
	case domain.GameWaiting:
		view.Phase = PhaseLobby
	case domain.GameCompleted:
		view.Phase = PhaseCompleted
	default:
		view.Phase = PhaseActive
	}

	if view.Phase == PhaseActive {
		switch {
		case snap.Question == nil:
			view.Stage = StageQuestionSelection
		case snap.Question.Open():
			view.Stage = StageQuestionActive
			view.Question = snap.Question
			view.Answers = snap.Answers
			view.Deadline = snap.Question.StartedAt.Add(time.Duration(snap.Game.TimeLimit) * time.Second)
		default:
			view.Stage = StageShowingResults
			view.Question = snap.Question
			view.Answers = snap.Answers
			view.WinnerID = winner(snap.Question, snap.Answers)
		}
	} else if view.Phase == PhaseCompleted && snap.Question != nil {
		view.Question = snap.Question
		view.Answers = snap.Answers
		view.WinnerID = winner(snap.Question, snap.Answers)
	}

	m.view = view
	return view
}

// Close moves the machine to its terminal closed phase (game deleted).
func (m *Machine) Close() View {
	m.view.Phase = PhaseClosed
	m.view.Stage = ""
	m.view.Deadline = time.Time{}
	return m.view
}

// Leave moves the machine to its terminal left phase.
func (m *Machine) Leave() View {
	m.view.Phase = PhaseLeft
	m.view.Stage = ""
	m.view.Deadline = time.Time{}
	return m.view
}

// Fail moves the machine to the error phase; clients offer a retry from here.
func (m *Machine) Fail() View {
	m.view.Phase = PhaseError
	m.view.Stage = ""
	m.view.Deadline = time.Time{}
	return m.view
}

// winner is the player whose answer closed the question. The question
// records which answer won the open->ended race; under concurrency that need
// not be the earliest-recorded correct answer, so the marker is
// authoritative. Snapshots written before the marker existed fall back to
// the earliest correct answer.
func winner(question *domain.Question, answers []domain.Answer) string {
	if question != nil && question.WinnerAnswerID != "" {
		for _, a := range answers {
			if a.ID == question.WinnerAnswerID {
				return a.PlayerID
			}
		}
	}
	var winnerID string
	var at time.Time
	for _, a := range answers {
		if !a.IsCorrect {
			continue
		}
		if winnerID == "" || a.AnsweredAt.Before(at) {
			winnerID = a.PlayerID
			at = a.AnsweredAt
		}
	}
	return winnerID
}
