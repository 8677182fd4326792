package ports

import "cardmesh/internal/domain"

// RuleEngine validates and applies game actions. The host's state machine delegates all
// card-game rules to it and only enforces turn ownership and lifecycle itself.
type RuleEngine interface {
	// Validate returns the state that results from participant taking action, or an
	// error describing why the action is illegal. The input game must not be mutated.
	Validate(game *domain.Game, participant domain.ParticipantID, action domain.Action) (*domain.Game, error)

	// TurnOrderNext returns the participant whose turn follows the current one.
	TurnOrderNext(game *domain.Game) domain.ParticipantID
}
