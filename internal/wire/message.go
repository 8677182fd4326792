// Package wire defines the messages exchanged over direct peer links. Every frame is an
// envelope carrying a type tag and a payload; Decode rejects tags it does not know.
package wire

import (
	"cardmesh/internal/domain"
)

// Type is the discriminator carried by every envelope.
type Type string

const (
	TypeJoinRequest   Type = "join_request"
	TypeJoinAccepted  Type = "join_accepted"
	TypeJoinRejected  Type = "join_rejected"
	TypeSnapshot      Type = "snapshot"
	TypeActionRequest Type = "action_request"
	TypeActionResult  Type = "action_result"
	TypeGoodbye       Type = "goodbye"
)

// Message is implemented by every payload type in this package.
type Message interface {
	Type() Type
}

// Descriptor tells a peer how to reach a link listener and which bearer token to present.
type Descriptor struct {
	URL   string `json:"url"`
	Token string `json:"token,omitempty"`
}

// JoinRequest is the first message a joiner sends on a fresh link.
type JoinRequest struct {
	DisplayName string `json:"display_name"`
}

// JoinAccepted carries the joiner's participant id and the state it starts from.
type JoinAccepted struct {
	ParticipantID domain.ParticipantID `json:"participant_id"`
	Snapshot      domain.Snapshot      `json:"snapshot"`
}

// JoinRejected tells a joiner why it was refused. The link is closed afterwards.
type JoinRejected struct {
	Reason string `json:"reason"`
}

// Snapshot is an authoritative state broadcast addressed to one recipient.
type Snapshot struct {
	State domain.Snapshot `json:"state"`
}

// ActionRequest is an intent sent from a peer to the host.
type ActionRequest struct {
	RequestID string        `json:"request_id"`
	Action    domain.Action `json:"action"`
}

// ActionResult answers an ActionRequest. Only failures carry a code.
type ActionResult struct {
	RequestID string `json:"request_id"`
	OK        bool   `json:"ok"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Goodbye announces an orderly departure.
type Goodbye struct {
	Reason string `json:"reason,omitempty"`
}

func (JoinRequest) Type() Type   { return TypeJoinRequest }
func (JoinAccepted) Type() Type  { return TypeJoinAccepted }
func (JoinRejected) Type() Type  { return TypeJoinRejected }
func (Snapshot) Type() Type      { return TypeSnapshot }
func (ActionRequest) Type() Type { return TypeActionRequest }
func (ActionResult) Type() Type  { return TypeActionResult }
func (Goodbye) Type() Type       { return TypeGoodbye }
