package wire

import (
	"errors"
	"testing"

	"cardmesh/internal/domain"
)

func TestDecode_KnownTypes(t *testing.T) {
	card := domain.Card{ID: 12, Color: domain.ColorBlue, Value: 5}
	tests := []struct {
		name  string
		msg   Message
		check func(t *testing.T, got Message)
	}{
		{
			name: "join request",
			msg:  JoinRequest{DisplayName: "alice"},
			check: func(t *testing.T, got Message) {
				if got.(JoinRequest).DisplayName != "alice" {
					t.Errorf("display name = %q", got.(JoinRequest).DisplayName)
				}
			},
		},
		{
			name: "join accepted keeps participant and hand",
			msg: JoinAccepted{ParticipantID: 3, Snapshot: domain.Snapshot{
				Seq: 4, Status: domain.StatusLobby, Recipient: 3, Hand: []domain.Card{card},
				CardCounts: map[domain.ParticipantID]int{3: 1},
			}},
			check: func(t *testing.T, got Message) {
				acc := got.(JoinAccepted)
				if acc.ParticipantID != 3 || acc.Snapshot.Seq != 4 {
					t.Errorf("unexpected accepted %+v", acc)
				}
				if len(acc.Snapshot.Hand) != 1 || acc.Snapshot.Hand[0] != card {
					t.Errorf("hand = %v", acc.Snapshot.Hand)
				}
				if acc.Snapshot.CardCounts[3] != 1 {
					t.Errorf("card counts = %v", acc.Snapshot.CardCounts)
				}
			},
		},
		{
			name: "snapshot",
			msg:  Snapshot{State: domain.Snapshot{Seq: 9, CurrentTurn: 2, DiscardPile: []domain.Card{card}}},
			check: func(t *testing.T, got Message) {
				s := got.(Snapshot).State
				top, ok := s.TopCard()
				if s.Seq != 9 || s.CurrentTurn != 2 || !ok || top != card {
					t.Errorf("unexpected snapshot %+v", s)
				}
			},
		},
		{
			name: "action request",
			msg:  ActionRequest{RequestID: "r1", Action: domain.Action{Kind: domain.ActionPlay, CardID: 99, Color: domain.ColorGreen}},
			check: func(t *testing.T, got Message) {
				req := got.(ActionRequest)
				if req.RequestID != "r1" || req.Action.CardID != 99 || req.Action.Color != domain.ColorGreen {
					t.Errorf("unexpected request %+v", req)
				}
			},
		},
		{
			name: "action result failure",
			msg:  ActionResult{RequestID: "r1", Code: "not_your_turn", Message: "wait"},
			check: func(t *testing.T, got Message) {
				res := got.(ActionResult)
				if res.OK || res.Code != "not_your_turn" {
					t.Errorf("unexpected result %+v", res)
				}
			},
		},
		{
			name: "join rejected",
			msg:  JoinRejected{Reason: "full"},
			check: func(t *testing.T, got Message) {
				if got.(JoinRejected).Reason != "full" {
					t.Errorf("reason = %q", got.(JoinRejected).Reason)
				}
			},
		},
		{
			name: "goodbye",
			msg:  Goodbye{Reason: "host closed"},
			check: func(t *testing.T, got Message) {
				if got.Type() != TypeGoodbye {
					t.Errorf("type = %s", got.Type())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.Type() != tt.msg.Type() {
				t.Fatalf("type = %s, want %s", got.Type(), tt.msg.Type())
			}
			tt.check(t, got)
		})
	}
}

func TestDecode_UnknownTag(t *testing.T) {
	_, err := Decode([]byte(`{"type":"chat","payload":{"text":"hi"}}`))
	if !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage, got %v", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "hello"},
		{"bad payload", `{"type":"snapshot","payload":{"state":"nope"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestDecode_EmptyPayload(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"goodbye"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := msg.(Goodbye); !ok {
		t.Fatalf("got %T, want Goodbye", msg)
	}
}

func TestEncode_Nil(t *testing.T) {
	if _, err := Encode(nil); err == nil {
		t.Fatal("expected error for nil message")
	}
}
