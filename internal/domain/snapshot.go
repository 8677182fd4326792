package domain

// Snapshot is the unit the host broadcasts after every applied change. All fields are
// taken at one logical instant identified by Seq.
type Snapshot struct {
	Seq         uint64                `json:"seq"`
	Status      Status                `json:"status"`
	EndType     EndType               `json:"end_type,omitempty"`
	Winner      ParticipantID         `json:"winner"`
	Roster      Roster                `json:"roster"`
	DiscardPile []Card                `json:"discard_pile"`
	CardCounts  map[ParticipantID]int `json:"card_counts"`
	CurrentTurn ParticipantID         `json:"current_turn"`
	ActiveColor Color                 `json:"active_color,omitempty"`
	Direction   int                   `json:"direction"`
	LastAction  *ActionRecord         `json:"last_action,omitempty"`

	// Recipient and Hand are private to the peer the snapshot was addressed to.
	Recipient ParticipantID `json:"recipient"`
	Hand      []Card        `json:"hand,omitempty"`
}

// TopCard returns the last discarded card.
func (s Snapshot) TopCard() (Card, bool) {
	return TopOf(s.DiscardPile)
}
