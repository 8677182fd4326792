package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownMessage is returned by Decode for a well-formed envelope with a tag this
	// build does not understand.
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrMalformed is returned when a frame is not a valid envelope or payload.
	ErrMalformed = errors.New("malformed message")
)

type envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps msg in a tagged envelope.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("encode: nil message")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	return json.Marshal(envelope{Type: msg.Type(), Payload: payload})
}

// Decode parses one frame into its concrete message type.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg Message
	var err error
	switch env.Type {
	case TypeJoinRequest:
		msg, err = decodeAs[JoinRequest](env.Payload)
	case TypeJoinAccepted:
		msg, err = decodeAs[JoinAccepted](env.Payload)
	case TypeJoinRejected:
		msg, err = decodeAs[JoinRejected](env.Payload)
	case TypeSnapshot:
		msg, err = decodeAs[Snapshot](env.Payload)
	case TypeActionRequest:
		msg, err = decodeAs[ActionRequest](env.Payload)
	case TypeActionResult:
		msg, err = decodeAs[ActionResult](env.Payload)
	case TypeGoodbye:
		msg, err = decodeAs[Goodbye](env.Payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return msg, nil
}

func decodeAs[T Message](payload json.RawMessage) (Message, error) {
	var v T
	if len(payload) == 0 || string(payload) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return v, nil
}
