package peer

import (
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Authorizer decides whether an inbound link from peerID presenting token may be opened.
type Authorizer func(peerID, token string) error

// Option configures a Manager.
type Option func(*Manager)

// WithHeartbeat sets the ping period and the silence after which a link is considered
// dead. A zero timeout disables the read deadline.
func WithHeartbeat(interval, timeout time.Duration) Option {
	return func(m *Manager) {
		m.heartbeatInterval = interval
		m.heartbeatTimeout = timeout
	}
}

func WithLogger(logger runtime.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithAuthorizer checks the bearer token of every inbound link.
func WithAuthorizer(a Authorizer) Option {
	return func(m *Manager) {
		m.authorizer = a
	}
}

// WithSendBuffer sets how many outbound frames may queue per link before it is closed.
func WithSendBuffer(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.sendBuffer = n
		}
	}
}
