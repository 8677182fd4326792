package domain

// Status represents the lifecycle stage of a session's game.
type Status string

const (
	// StatusLobby is the pre-game state where participants can join.
	StatusLobby Status = "lobby"
	// StatusPlaying is the active game state where cards are played.
	StatusPlaying Status = "playing"
	// StatusEnded is terminal; no further actions are accepted.
	StatusEnded Status = "ended"
)

// EndType explains why a game reached StatusEnded.
type EndType string

const (
	EndTypeNone                EndType = ""
	EndTypeWin                 EndType = "win"
	EndTypeInsufficientPlayers EndType = "insufficient_players"
	// EndTypeHostDisconnected is only ever set locally by a mirror that lost the host.
	EndTypeHostDisconnected EndType = "host_disconnected"
)

// ConnectionState tracks a roster member's link.
type ConnectionState string

const (
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
	Disconnected ConnectionState = "disconnected"
)

// ParticipantID identifies a member for the lifetime of a session. IDs are never reused
// and their order defines turn order.
type ParticipantID int

// NoParticipant stands in for "no participant", e.g. CurrentTurn outside of play.
const NoParticipant ParticipantID = -1

// HostParticipantID is the id the host assigns itself at boot.
const HostParticipantID ParticipantID = 0

// Member is one roster entry.
type Member struct {
	ID          ParticipantID   `json:"id"`
	PeerID      string          `json:"peer_id"`
	DisplayName string          `json:"display_name"`
	Connection  ConnectionState `json:"connection"`
	IsHost      bool            `json:"is_host"`
}

// Roster is the ordered membership record. Entries are never removed, only marked
// Disconnected, so indices stay stable for turn order.
type Roster []Member

// Get returns the member with the given id.
func (r Roster) Get(id ParticipantID) (Member, bool) {
	for _, m := range r {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// ByPeer returns the member bound to a link identity.
func (r Roster) ByPeer(peerID string) (Member, bool) {
	for _, m := range r {
		if m.PeerID == peerID {
			return m, true
		}
	}
	return Member{}, false
}

// IndexOf returns the roster position of id or -1.
func (r Roster) IndexOf(id ParticipantID) int {
	for i, m := range r {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// ConnectedCount returns how many members currently have a live link.
func (r Roster) ConnectedCount() int {
	n := 0
	for _, m := range r {
		if m.Connection == Connected {
			n++
		}
	}
	return n
}

// Host returns the single host entry.
func (r Roster) Host() (Member, bool) {
	for _, m := range r {
		if m.IsHost {
			return m, true
		}
	}
	return Member{}, false
}

// Clone returns an independent copy.
func (r Roster) Clone() Roster {
	if r == nil {
		return nil
	}
	return append(Roster(nil), r...)
}

// SetConnection updates a member's connection state and reports whether it was found.
func (r Roster) SetConnection(id ParticipantID, state ConnectionState) bool {
	for i := range r {
		if r[i].ID == id {
			r[i].Connection = state
			return true
		}
	}
	return false
}
