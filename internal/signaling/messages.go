package signaling

import (
	"encoding/json"
	"fmt"

	"cardmesh/internal/wire"

	"github.com/heroiclabs/nakama-common/rtapi"
)

// Message is an inbound signaling message: Offer, Answer, Candidate or PresenceChange.
type Message interface {
	isSignal()
}

// Offer asks the recipient for a descriptor to link to.
type Offer struct {
	From       string
	Nonce      string
	Descriptor wire.Descriptor
}

// Answer replies to the Offer with the same Nonce.
type Answer struct {
	From       string
	Nonce      string
	Descriptor wire.Descriptor
}

// Candidate is an additional address the sender can be reached on.
type Candidate struct {
	From string
	URL  string
}

// PresenceChange lists users that joined or left the relay match.
type PresenceChange struct {
	Joined []string
	Left   []string
}

func (Offer) isSignal()          {}
func (Answer) isSignal()         {}
func (Candidate) isSignal()      {}
func (PresenceChange) isSignal() {}

// decode turns relayed match data into a Message. Unknown op codes are an error.
func decode(md *rtapi.MatchData) (Message, error) {
	from := md.GetPresence().GetUserId()
	var p RelayPayload
	if err := json.Unmarshal(md.GetData(), &p); err != nil {
		return nil, fmt.Errorf("op %d from %s: %w", md.GetOpCode(), from, err)
	}

	switch md.GetOpCode() {
	case OpOffer:
		return Offer{From: from, Nonce: p.Nonce, Descriptor: deref(p.Descriptor)}, nil
	case OpAnswer:
		return Answer{From: from, Nonce: p.Nonce, Descriptor: deref(p.Descriptor)}, nil
	case OpCandidate:
		return Candidate{From: from, URL: p.URL}, nil
	default:
		return nil, fmt.Errorf("unknown op code %d from %s", md.GetOpCode(), from)
	}
}

func presenceChange(ev *rtapi.MatchPresenceEvent) PresenceChange {
	var pc PresenceChange
	for _, p := range ev.GetJoins() {
		pc.Joined = append(pc.Joined, p.GetUserId())
	}
	for _, p := range ev.GetLeaves() {
		pc.Left = append(pc.Left, p.GetUserId())
	}
	return pc
}

func deref(d *wire.Descriptor) wire.Descriptor {
	if d == nil {
		return wire.Descriptor{}
	}
	return *d
}
