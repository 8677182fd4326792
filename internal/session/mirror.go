package session

import "cardmesh/internal/domain"

// Mirror is a non-host peer's copy of the game. It only ever holds the latest snapshot
// the host addressed to it.
type Mirror struct {
	current domain.Snapshot
	has     bool
	// frozen is set once the host is gone; later snapshots cannot exist.
	frozen bool
}

// Apply replaces the mirrored state with s. Snapshots that are not newer than the
// current one are ignored. Apply reports whether s was taken.
func (m *Mirror) Apply(s domain.Snapshot) bool {
	if m.frozen {
		return false
	}
	if m.has && s.Seq <= m.current.Seq {
		return false
	}
	m.current = s
	m.has = true
	return true
}

// Current returns the mirrored snapshot and whether one has been received.
func (m *Mirror) Current() (domain.Snapshot, bool) {
	return m.current, m.has
}

// EndHostLost forces the mirror into the ended state after the host went away. A game
// that had already ended keeps its outcome.
func (m *Mirror) EndHostLost() domain.Snapshot {
	m.frozen = true
	if m.current.Status != domain.StatusEnded {
		m.current.Status = domain.StatusEnded
		m.current.EndType = domain.EndTypeHostDisconnected
		m.current.Winner = domain.NoParticipant
		m.current.CurrentTurn = domain.NoParticipant
	}
	if !m.has {
		m.current.Roster = nil
		m.has = true
	}
	return m.current
}
