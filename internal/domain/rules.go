package domain

// CanPlayOn reports whether card may be discarded onto top given the colour currently
// in force (which differs from top.Color after a wild).
func CanPlayOn(card, top Card, activeColor Color) bool {
	if card.IsWild() {
		return true
	}
	if card.Color == activeColor {
		return true
	}
	return !top.IsWild() && card.Value == top.Value
}

// PlayableCards returns the subset of hand that may be discarded.
func PlayableCards(hand []Card, top Card, activeColor Color) []Card {
	var out []Card
	for _, c := range hand {
		if CanPlayOn(c, top, activeColor) {
			out = append(out, c)
		}
	}
	return out
}

// DrawPenalty returns how many cards the next player draws after card is played.
func DrawPenalty(card Card) int {
	switch card.Value {
	case ValueDrawTwo:
		return 2
	case ValueWildDrawFour:
		return 4
	default:
		return 0
	}
}

// SkipsNext reports whether playing card forfeits the next player's turn.
func SkipsNext(card Card) bool {
	return card.Value == ValueSkip || DrawPenalty(card) > 0
}
