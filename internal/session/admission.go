package session

import (
	"cardmesh/internal/domain"
)

// Decision is the outcome of one admission request.
type Decision struct {
	Admitted      bool
	Reason        string
	ParticipantID domain.ParticipantID
	// Rejoin is set when the peer already had a roster entry.
	Rejoin bool
}

// Admit evaluates the admission rules for peerID against game. It does not mutate game,
// so the same roster and joiner always yield the same decision.
//
// Rules, first match wins: a newcomer after the lobby is refused as already started; a
// newcomer to a full roster is refused as full; everyone else is admitted, known peers
// back onto their own participant id.
func Admit(game *domain.Game, peerID string, maxPlayers int) Decision {
	member, known := game.Roster.ByPeer(peerID)
	switch {
	case game.Status != domain.StatusLobby && !known:
		return Decision{Reason: ReasonAlreadyStarted, ParticipantID: domain.NoParticipant}
	case !known && len(game.Roster) >= maxPlayers:
		return Decision{Reason: ReasonFull, ParticipantID: domain.NoParticipant}
	case known:
		return Decision{Admitted: true, ParticipantID: member.ID, Rejoin: true}
	default:
		return Decision{Admitted: true, ParticipantID: game.NextParticipantID}
	}
}

// applyAdmission returns a copy of game with the admitted peer connected in the roster.
func applyAdmission(game *domain.Game, peerID, displayName string, d Decision) *domain.Game {
	next := game.Clone()
	if d.Rejoin {
		next.Roster.SetConnection(d.ParticipantID, domain.Connected)
		return next
	}
	next.Roster = append(next.Roster, domain.Member{
		ID:          d.ParticipantID,
		PeerID:      peerID,
		DisplayName: displayName,
		Connection:  domain.Connected,
	})
	next.NextParticipantID = d.ParticipantID + 1
	return next
}
