package session

import (
	"errors"
	"fmt"
)

// Admission rejection reasons.
const (
	ReasonAlreadyStarted = "already_started"
	ReasonFull           = "full"
)

// AdmissionError is returned to a joiner the host refused.
type AdmissionError struct {
	Reason string
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("admission rejected: %s", e.Reason)
}

// Action error codes carried back to the originating peer.
const (
	CodeSessionEnded  = "session_ended"
	CodeNotYourTurn   = "not_your_turn"
	CodeNotHost       = "not_host"
	CodeNotAdmitted   = "not_admitted"
	CodeTooFewPlayers = "too_few_players"
	CodeRejected      = "rejected"
)

// ActionError is a refused intent. It is reported only to the peer that submitted it.
type ActionError struct {
	Code    string
	Message string
}

func (e *ActionError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code so errors rebuilt from the wire compare equal to the sentinels.
func (e *ActionError) Is(target error) bool {
	t, ok := target.(*ActionError)
	return ok && t.Code == e.Code
}

var (
	ErrSessionEnded  = &ActionError{Code: CodeSessionEnded, Message: "session has ended"}
	ErrNotYourTurn   = &ActionError{Code: CodeNotYourTurn, Message: "it is not your turn"}
	ErrNotHost       = &ActionError{Code: CodeNotHost, Message: "only the host can do that"}
	ErrNotAdmitted   = &ActionError{Code: CodeNotAdmitted, Message: "peer is not part of the session"}
	ErrTooFewPlayers = &ActionError{Code: CodeTooFewPlayers, Message: "not enough connected players"}
	// ErrRejected matches every refusal that came from the game rules.
	ErrRejected = &ActionError{Code: CodeRejected, Message: "rejected by the game rules"}
)

func rejected(err error) *ActionError {
	return &ActionError{Code: CodeRejected, Message: err.Error()}
}

var (
	ErrSessionClosed   = errors.New("session closed")
	ErrHostUnreachable = errors.New("could not link to the host")
	ErrMissingDeps     = errors.New("session dependencies incomplete")
)
