package bot

import (
	"cardmesh/internal/domain"
)

// Move represents the decision made by the AI.
type Move struct {
	Draw   bool
	CardID int
	// Color is declared when CardID is a wild.
	Color domain.Color
}

// Action converts the move into the intent submitted to the host.
func (m Move) Action() domain.Action {
	if m.Draw {
		return domain.Action{Kind: domain.ActionDraw}
	}
	return domain.Action{Kind: domain.ActionPlay, CardID: m.CardID, Color: m.Color}
}

// Brain is the interface that all bot strategies must implement. It only ever sees the
// snapshot addressed to its own participant.
type Brain interface {
	CalculateMove(view domain.Snapshot) (Move, error)
}
