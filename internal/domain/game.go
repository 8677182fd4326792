package domain

// Game holds the authoritative state of a session. Only the host owns one.
type Game struct {
	Seq     uint64
	Status  Status
	EndType EndType
	Winner  ParticipantID

	Roster            Roster
	NextParticipantID ParticipantID

	Hands       map[ParticipantID][]Card
	DrawPile    []Card
	DiscardPile []Card
	// Recycled counts the cards at the bottom of DiscardPile that were already shuffled
	// back into DrawPile. The pile itself only ever grows.
	Recycled    int
	ActiveColor Color
	Direction   int
	CurrentTurn ParticipantID

	LastAction *ActionRecord
}

// NewGame boots a lobby with the host as its sole member.
func NewGame(hostPeerID, hostName string) *Game {
	return &Game{
		Status: StatusLobby,
		Winner: NoParticipant,
		Roster: Roster{{
			ID:          HostParticipantID,
			PeerID:      hostPeerID,
			DisplayName: hostName,
			Connection:  Connected,
			IsHost:      true,
		}},
		NextParticipantID: HostParticipantID + 1,
		Hands:             map[ParticipantID][]Card{},
		Direction:         Clockwise,
		CurrentTurn:       NoParticipant,
	}
}

// Clone returns a deep copy so rule engines can build a new state without touching the
// current one.
func (g *Game) Clone() *Game {
	out := *g
	out.Roster = g.Roster.Clone()
	out.Hands = make(map[ParticipantID][]Card, len(g.Hands))
	for id, hand := range g.Hands {
		out.Hands[id] = append([]Card(nil), hand...)
	}
	out.DrawPile = append([]Card(nil), g.DrawPile...)
	out.DiscardPile = append([]Card(nil), g.DiscardPile...)
	if g.LastAction != nil {
		rec := *g.LastAction
		if rec.Card != nil {
			card := *rec.Card
			rec.Card = &card
		}
		out.LastAction = &rec
	}
	return &out
}

// TopCard returns the last discarded card.
func (g *Game) TopCard() (Card, bool) {
	return TopOf(g.DiscardPile)
}

// CardCounts returns the hand size of every participant that holds a hand.
func (g *Game) CardCounts() map[ParticipantID]int {
	counts := make(map[ParticipantID]int, len(g.Hands))
	for id, hand := range g.Hands {
		counts[id] = len(hand)
	}
	return counts
}

// End moves the game to its terminal status.
func (g *Game) End(endType EndType, winner ParticipantID) {
	g.Status = StatusEnded
	g.EndType = endType
	g.Winner = winner
	g.CurrentTurn = NoParticipant
}

// SnapshotFor projects the game for one recipient: counts for everyone, cards only for
// the recipient's own hand.
func (g *Game) SnapshotFor(recipient ParticipantID) Snapshot {
	s := Snapshot{
		Seq:         g.Seq,
		Status:      g.Status,
		EndType:     g.EndType,
		Winner:      g.Winner,
		Roster:      g.Roster.Clone(),
		DiscardPile: append([]Card(nil), g.DiscardPile...),
		CardCounts:  g.CardCounts(),
		CurrentTurn: g.CurrentTurn,
		ActiveColor: g.ActiveColor,
		Direction:   g.Direction,
		Recipient:   recipient,
	}
	if g.LastAction != nil {
		rec := *g.LastAction
		s.LastAction = &rec
	}
	if hand, ok := g.Hands[recipient]; ok {
		s.Hand = append([]Card{}, hand...)
	}
	return s
}
