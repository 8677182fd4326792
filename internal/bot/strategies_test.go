package bot

import (
	"testing"

	"cardmesh/internal/domain"
)

func card(id int, c domain.Color, v domain.Value) domain.Card {
	return domain.Card{ID: id, Color: c, Value: v}
}

func TestStandardBot_CalculateMove(t *testing.T) {
	top := card(1, domain.ColorRed, 5)
	tests := []struct {
		name string
		hand []domain.Card
		want Move
	}{
		{
			name: "plays first matching colour",
			hand: []domain.Card{card(2, domain.ColorBlue, 3), card(3, domain.ColorRed, 9)},
			want: Move{CardID: 3},
		},
		{
			name: "plays matching value",
			hand: []domain.Card{card(4, domain.ColorGreen, 5)},
			want: Move{CardID: 4},
		},
		{
			name: "keeps wild when a number fits",
			hand: []domain.Card{card(100, domain.ColorWild, domain.ValueWild), card(5, domain.ColorRed, 1)},
			want: Move{CardID: 5},
		},
		{
			name: "wild declares most held colour",
			hand: []domain.Card{
				card(100, domain.ColorWild, domain.ValueWild),
				card(6, domain.ColorBlue, 1),
				card(7, domain.ColorBlue, 2),
				card(8, domain.ColorGreen, 3),
			},
			want: Move{CardID: 100, Color: domain.ColorBlue},
		},
		{
			name: "draws when nothing fits",
			hand: []domain.Card{card(9, domain.ColorBlue, 1)},
			want: Move{Draw: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := domain.Snapshot{DiscardPile: []domain.Card{top}, ActiveColor: domain.ColorRed, Hand: tt.hand}
			got, err := (&StandardBot{}).CalculateMove(view)
			if err != nil {
				t.Fatalf("CalculateMove: %v", err)
			}
			if got != tt.want {
				t.Fatalf("move = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAggressiveBot_PrefersPenalties(t *testing.T) {
	view := domain.Snapshot{
		DiscardPile: []domain.Card{card(1, domain.ColorRed, 5)},
		ActiveColor: domain.ColorRed,
		Hand: []domain.Card{
			card(2, domain.ColorRed, 7),
			card(3, domain.ColorRed, domain.ValueSkip),
			card(4, domain.ColorRed, domain.ValueDrawTwo),
			card(104, domain.ColorWild, domain.ValueWildDrawFour),
			card(5, domain.ColorYellow, 2),
		},
	}
	got, err := (&AggressiveBot{}).CalculateMove(view)
	if err != nil {
		t.Fatalf("CalculateMove: %v", err)
	}
	if got.CardID != 104 || got.Color == "" {
		t.Fatalf("expected wild draw four with a colour, got %+v", got)
	}
}

func TestAgent_Play(t *testing.T) {
	agent := &Agent{ID: 2, Strategy: &StandardBot{}}
	view := domain.Snapshot{
		Status:      domain.StatusPlaying,
		CurrentTurn: 1,
		DiscardPile: []domain.Card{card(1, domain.ColorRed, 5)},
		ActiveColor: domain.ColorRed,
		Hand:        []domain.Card{card(2, domain.ColorRed, 7)},
	}

	if _, ok, _ := agent.Play(view); ok {
		t.Fatal("agent should wait for its turn")
	}

	view.CurrentTurn = 2
	action, ok, err := agent.Play(view)
	if err != nil || !ok {
		t.Fatalf("Play = %v, %v", ok, err)
	}
	if action.Kind != domain.ActionPlay || action.CardID != 2 {
		t.Fatalf("unexpected action %+v", action)
	}
}

func TestNewBrain(t *testing.T) {
	for _, name := range []string{"standard", "aggressive"} {
		level, err := ParseLevel(name)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", name, err)
		}
		if _, err := NewBrain(level); err != nil {
			t.Fatalf("NewBrain(%q): %v", name, err)
		}
	}
	if _, err := ParseLevel("god"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
