package bot

import (
	"errors"

	"cardmesh/internal/domain"
)

var ErrNoTopCard = errors.New("discard pile is empty")

// StandardBot plays the first legal number or action card and keeps wilds for when
// nothing else matches.
type StandardBot struct{}

func (b *StandardBot) CalculateMove(view domain.Snapshot) (Move, error) {
	top, ok := view.TopCard()
	if !ok {
		return Move{}, ErrNoTopCard
	}
	playable := domain.PlayableCards(view.Hand, top, view.ActiveColor)
	if len(playable) == 0 {
		return Move{Draw: true}, nil
	}

	for _, c := range playable {
		if !c.IsWild() {
			return Move{CardID: c.ID}, nil
		}
	}
	return wildMove(view.Hand, playable[0]), nil
}

// AggressiveBot prefers whatever hurts the next player most: draw penalties, then skips
// and reverses, then numbers.
type AggressiveBot struct{}

func (b *AggressiveBot) CalculateMove(view domain.Snapshot) (Move, error) {
	top, ok := view.TopCard()
	if !ok {
		return Move{}, ErrNoTopCard
	}
	playable := domain.PlayableCards(view.Hand, top, view.ActiveColor)
	if len(playable) == 0 {
		return Move{Draw: true}, nil
	}

	best := playable[0]
	for _, c := range playable[1:] {
		if threat(c) > threat(best) {
			best = c
		}
	}
	if best.IsWild() {
		return wildMove(view.Hand, best), nil
	}
	return Move{CardID: best.ID}, nil
}

func threat(c domain.Card) int {
	switch {
	case domain.DrawPenalty(c) > 0:
		return 10 + domain.DrawPenalty(c)
	case domain.SkipsNext(c), c.Value == domain.ValueReverse:
		return 5
	default:
		return 0
	}
}

// wildMove plays card and declares the colour the rest of the hand holds most of.
func wildMove(hand []domain.Card, card domain.Card) Move {
	rest := domain.RemoveCard(hand, card.ID)
	return Move{CardID: card.ID, Color: domain.MostHeldColor(rest)}
}
