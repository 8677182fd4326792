package domain

// ActionKind is the vocabulary of intents a participant can submit.
type ActionKind string

const (
	// ActionStart moves the game from lobby to playing. Host only.
	ActionStart ActionKind = "start"
	// ActionPlay discards CardID from the actor's hand.
	ActionPlay ActionKind = "play"
	// ActionDraw draws one card and ends the actor's turn.
	ActionDraw ActionKind = "draw"
	// ActionReady is a non-turn signal acknowledged without a state change.
	ActionReady ActionKind = "ready"
)

// IsTurnAction reports whether the action may only be taken by the current turn holder.
func (k ActionKind) IsTurnAction() bool {
	return k == ActionPlay || k == ActionDraw
}

// Action is an intent submitted to the host.
type Action struct {
	Kind   ActionKind `json:"kind"`
	CardID int        `json:"card_id,omitempty"`
	// Color is the colour declared when playing a wild.
	Color Color `json:"color,omitempty"`
}

// ActionRecord describes the last applied action, stamped into snapshots so peers can
// tell what produced a transition.
type ActionRecord struct {
	Actor ParticipantID `json:"actor"`
	Kind  ActionKind    `json:"kind"`
	Card  *Card         `json:"card,omitempty"`
	Drawn int           `json:"drawn,omitempty"`
}

const (
	// DefaultHandSize is dealt to every connected participant on start.
	DefaultHandSize = 7
	// Direction values for turn order.
	Clockwise        = 1
	CounterClockwise = -1
)
