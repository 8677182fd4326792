package peer

import (
	"errors"
	"fmt"
)

var (
	ErrLinkClosed       = errors.New("link closed")
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrUnknownPeer      = errors.New("no link to peer")
	ErrManagerClosed    = errors.New("peer manager closed")
	ErrMissingPeerID    = errors.New("missing peer id")
	ErrAlreadyListening = errors.New("peer manager already serving")
)

// LinkError is a transient failure on one peer link. It never ends a session by itself.
type LinkError struct {
	Peer string
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link %s: %v", e.Peer, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }
