package session

import "github.com/violabg/dev-quiz-battle-sub000/internal/domain"

// Transition guards. All are computed against the latest view, never against
// client-local state.

// IsHost reports whether the local user hosts the game.
func (m *Machine) IsHost() bool {
	return m.view.Game.HostID == m.userID
}

// IsCurrentPlayersTurn reports whether the local user holds the current turn.
func (m *Machine) IsCurrentPlayersTurn() bool {
	return m.turnHolder(m.view.Game.CurrentTurn) == m.userID
}

// IsNextPlayersTurn reports whether the local user is up next.
func (m *Machine) IsNextPlayersTurn() bool {
	if len(m.view.Players) == 0 {
		return false
	}
	next := (m.view.Game.CurrentTurn + 1) % len(m.view.Players)
	return m.turnHolder(next) == m.userID
}

// CanStartGame reports whether the local user may start the game: host, in
// the lobby, with between two and max players seated.
func (m *Machine) CanStartGame() bool {
	return m.IsHost() &&
		m.view.Game.Status == domain.GameWaiting &&
		len(m.view.Players) >= 2 &&
		len(m.view.Players) <= m.view.Game.MaxPlayers
}

// AllPlayersAnswered reports whether every seated player answered the
// current question.
func (m *Machine) AllPlayersAnswered() bool {
	if m.view.Question == nil || len(m.view.Players) == 0 {
		return false
	}
	return len(m.view.Answers) >= len(m.view.Players)
}

// HasCorrectAnswer reports whether any recorded answer is correct.
func (m *Machine) HasCorrectAnswer() bool {
	for _, a := range m.view.Answers {
		if a.IsCorrect {
			return true
		}
	}
	return false
}

// HasAnswered reports whether the local user already answered the current
// question.
func (m *Machine) HasAnswered() bool {
	for _, a := range m.view.Answers {
		if a.PlayerID == m.userID {
			return true
		}
	}
	return false
}

func (m *Machine) turnHolder(seat int) string {
	if len(m.view.Players) == 0 {
		return ""
	}
	seat %= len(m.view.Players)
	for _, p := range m.view.Players {
		if p.TurnOrder == seat {
			return p.PlayerID
		}
	}
	return ""
}
