// Package feedback turns consecutive views of a session into advisory events for audio
// and visual cues. Nothing here is authoritative; consumers may drop events freely.
package feedback

import (
	"slices"

	"cardmesh/internal/domain"
)

// Kind names a feedback event.
type Kind string

const (
	KindYourTurn      Kind = "your_turn"
	KindCardDiscarded Kind = "card_discarded"
	KindCardDrawn     Kind = "card_drawn"
)

// Event is one derived cue.
type Event struct {
	Kind Kind

	// Card and SoundClass are set for KindCardDiscarded.
	Card       domain.Card
	SoundClass string

	// Participant and Count are set for KindCardDrawn.
	Participant domain.ParticipantID
	Count       int
}

// View is the slice of a snapshot feedback depends on, seen by participant Me.
type View struct {
	Status      domain.Status
	CurrentTurn domain.ParticipantID
	Me          domain.ParticipantID
	DiscardPile []domain.Card
	CardCounts  map[domain.ParticipantID]int
}

// ViewOf projects s for participant me.
func ViewOf(s domain.Snapshot, me domain.ParticipantID) View {
	return View{
		Status:      s.Status,
		CurrentTurn: s.CurrentTurn,
		Me:          me,
		DiscardPile: s.DiscardPile,
		CardCounts:  s.CardCounts,
	}
}

// Derive returns the events implied by the transition prev -> cur, ordered your_turn,
// card_discarded, then draws by participant id.
//
// Card ids are unique, so any play changes the top card's id. A hand that grows while
// the game stays in play therefore always means cards were drawn, whether by choice or
// as a penalty. Counts that appear with the deal are not draws.
func Derive(prev, cur View) []Event {
	var events []Event

	if cur.Status == domain.StatusPlaying && cur.CurrentTurn != prev.CurrentTurn && cur.CurrentTurn == cur.Me {
		events = append(events, Event{Kind: KindYourTurn})
	}

	prevTop, hadPrev := domain.TopOf(prev.DiscardPile)
	curTop, hasCur := domain.TopOf(cur.DiscardPile)
	if hadPrev && hasCur && curTop.ID != prevTop.ID {
		events = append(events, Event{Kind: KindCardDiscarded, Card: curTop, SoundClass: curTop.SoundClass()})
	}

	if prev.Status == domain.StatusPlaying && cur.Status == domain.StatusPlaying {
		ids := make([]domain.ParticipantID, 0, len(cur.CardCounts))
		for id := range cur.CardCounts {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			before, ok := prev.CardCounts[id]
			if !ok {
				continue
			}
			if delta := cur.CardCounts[id] - before; delta > 0 {
				events = append(events, Event{Kind: KindCardDrawn, Participant: id, Count: delta})
			}
		}
	}

	return events
}
