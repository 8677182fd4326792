package domain

// TopOf returns the last card of a pile.
func TopOf(pile []Card) (Card, bool) {
	if len(pile) == 0 {
		return Card{}, false
	}
	return pile[len(pile)-1], true
}

// FindCard returns the card with the given id from a hand.
func FindCard(hand []Card, id int) (Card, bool) {
	for _, c := range hand {
		if c.ID == id {
			return c, true
		}
	}
	return Card{}, false
}

// RemoveCard removes the card with the given id and returns the updated hand.
func RemoveCard(hand []Card, id int) []Card {
	updated := make([]Card, 0, len(hand))
	for _, c := range hand {
		if c.ID == id {
			continue
		}
		updated = append(updated, c)
	}
	return updated
}

// MostHeldColor returns the non-wild colour the hand holds most of, defaulting to red.
func MostHeldColor(hand []Card) Color {
	counts := map[Color]int{}
	for _, c := range hand {
		if !c.IsWild() {
			counts[c.Color]++
		}
	}
	best := ColorRed
	for _, c := range PlayableColors {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
