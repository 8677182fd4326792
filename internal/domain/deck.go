package domain

import (
	"fmt"
	"math/rand"
	"strings"
)

// Color is a card colour. Wild cards carry ColorWild until played.
type Color string

const (
	ColorRed    Color = "Red"
	ColorYellow Color = "Yellow"
	ColorGreen  Color = "Green"
	ColorBlue   Color = "Blue"
	ColorWild   Color = "Wild"
)

// PlayableColors lists the four colours a wild can be declared as.
var PlayableColors = []Color{ColorRed, ColorYellow, ColorGreen, ColorBlue}

// ParseColor accepts a colour name in any case.
func ParseColor(s string) (Color, bool) {
	for _, c := range PlayableColors {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// Value is the face of a card: 0..9 or one of the action faces.
type Value int

const (
	ValueSkip Value = iota + 10
	ValueReverse
	ValueDrawTwo
	ValueWild
	ValueWildDrawFour
)

func (v Value) String() string {
	switch v {
	case ValueSkip:
		return "Skip"
	case ValueReverse:
		return "Reverse"
	case ValueDrawTwo:
		return "DrawTwo"
	case ValueWild:
		return ""
	case ValueWildDrawFour:
		return "DrawFour"
	default:
		return fmt.Sprint(int(v))
	}
}

// Card is a single physical card. ID is unique within a deck.
type Card struct {
	ID    int   `json:"id"`
	Color Color `json:"color"`
	Value Value `json:"value"`
}

// String renders the card as Red-5, Blue-Skip, Wild or Wild-DrawFour.
func (c Card) String() string {
	if c.Value == ValueWild {
		return string(ColorWild)
	}
	return string(c.Color) + "-" + c.Value.String()
}

// IsWild reports whether the card lets the player declare a colour.
func (c Card) IsWild() bool {
	return c.Value == ValueWild || c.Value == ValueWildDrawFour
}

// SoundClass groups cards by the audio cue a presentation layer plays for them.
func (c Card) SoundClass() string {
	switch c.Value {
	case ValueSkip:
		return "skip"
	case ValueReverse:
		return "reverse"
	case ValueDrawTwo:
		return "draw"
	case ValueWild, ValueWildDrawFour:
		return "wild"
	default:
		return "number"
	}
}

// DeckSize is the number of cards produced by NewDeck.
const DeckSize = 108

// NewDeck returns an ordered 108-card deck: per colour one 0, two of each 1..9, Skip,
// Reverse and DrawTwo; plus four Wild and four Wild-DrawFour.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	id := 0
	add := func(c Color, v Value) {
		deck = append(deck, Card{ID: id, Color: c, Value: v})
		id++
	}
	for _, c := range PlayableColors {
		add(c, 0)
		for v := Value(1); v <= ValueDrawTwo; v++ {
			add(c, v)
			add(c, v)
		}
	}
	for i := 0; i < 4; i++ {
		add(ColorWild, ValueWild)
		add(ColorWild, ValueWildDrawFour)
	}
	return deck
}

// ShuffleDeck returns a shuffled copy of the given deck.
func ShuffleDeck(deck []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
