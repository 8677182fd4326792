package bot

import (
	"cardmesh/internal/domain"
)

// Agent represents an autonomous player sitting behind a session.
type Agent struct {
	ID       domain.ParticipantID
	Name     string
	Strategy Brain
}

// Play asks the agent for its move. ok is false when it is not the agent's turn.
func (a *Agent) Play(view domain.Snapshot) (action domain.Action, ok bool, err error) {
	if view.Status != domain.StatusPlaying || view.CurrentTurn != a.ID {
		return domain.Action{}, false, nil
	}
	move, err := a.Strategy.CalculateMove(view)
	if err != nil {
		return domain.Action{Kind: domain.ActionDraw}, true, err
	}
	return move.Action(), true, nil
}
