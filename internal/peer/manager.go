// Package peer owns the direct links between participants: an inbound listener, outbound
// dialing, per-link liveness and a merged stream of decoded messages.
package peer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"cardmesh/internal/domain"
	"cardmesh/internal/platform/logging"
	"cardmesh/internal/wire"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	// HeaderPeer carries the dialing peer's id on the link handshake.
	HeaderPeer = "X-Cardmesh-Peer"
	// LinkPath is the websocket endpoint served by every listener.
	LinkPath = "/link"

	defaultSendBuffer = 64
)

// Inbound is one decoded message and the peer it came from.
type Inbound struct {
	From string
	Msg  wire.Message
}

// LinkEvent reports a link state change. A Connected event with a non-nil Err is a
// recoverable fault on a link that stays up.
type LinkEvent struct {
	Peer  string
	State domain.ConnectionState
	Err   error
}

// Recoverable reports whether the event is a fault that left the link up.
func (e LinkEvent) Recoverable() bool {
	return e.State == domain.Connected && e.Err != nil
}

// Manager tracks the links of one process.
type Manager struct {
	self string

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	sendBuffer        int
	authorizer        Authorizer
	logger            runtime.Logger

	upgrader websocket.Upgrader
	dialer   *websocket.Dialer

	mu     sync.Mutex
	links  map[string]*Link
	server *http.Server

	inbound   chan Inbound
	events    chan LinkEvent
	closed    chan struct{}
	closeOnce sync.Once
}

// NewManager creates a manager identified as self on every link it opens.
func NewManager(self string, opts ...Option) *Manager {
	m := &Manager{
		self:              self,
		heartbeatInterval: 2 * time.Second,
		heartbeatTimeout:  6 * time.Second,
		sendBuffer:        defaultSendBuffer,
		logger:            logging.Noop(),
		dialer:            &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		links:             make(map[string]*Link),
		inbound:           make(chan Inbound, 256),
		events:            make(chan LinkEvent, 64),
		closed:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Self returns the id this manager presents to other peers.
func (m *Manager) Self() string { return m.self }

// Inbound returns the merged stream of messages from all links.
func (m *Manager) Inbound() <-chan Inbound { return m.inbound }

// Events returns link state changes. Each disconnection is reported once.
func (m *Manager) Events() <-chan LinkEvent { return m.events }

// Handler returns the HTTP routes of the link listener.
func (m *Manager) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(LinkPath, m.handleLink)
	r.GET("/healthz", m.handleHealth)
	return r
}

// Serve accepts inbound links on l in the background until Close.
func (m *Manager) Serve(l net.Listener) error {
	m.mu.Lock()
	if m.server != nil {
		m.mu.Unlock()
		return ErrAlreadyListening
	}
	srv := &http.Server{Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	m.server = srv
	m.mu.Unlock()

	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("Serve: listener on %s stopped: %v", l.Addr(), err)
		}
	}()
	m.logger.Info("Serve: accepting links on %s", l.Addr())
	return nil
}

func (m *Manager) handleLink(c *gin.Context) {
	peerID := c.GetHeader(HeaderPeer)
	if peerID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrMissingPeerID.Error()})
		return
	}
	if m.authorizer != nil {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if err := m.authorizer(peerID, token); err != nil {
			m.logger.Warn("handleLink: refusing %s: %v", peerID, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
	}

	header := http.Header{}
	header.Set(HeaderPeer, m.self)
	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, header)
	if err != nil {
		// The upgrader has already written the HTTP error.
		m.logger.Warn("handleLink: upgrade for %s failed: %v", peerID, err)
		return
	}
	if _, err := m.attach(peerID, conn); err != nil {
		_ = conn.Close()
	}
}

func (m *Manager) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"peer": m.self, "links": m.Peers()})
}

// AddPeer dials the listener described by d and registers the link under id.
func (m *Manager) AddPeer(ctx context.Context, id string, d wire.Descriptor) (*Link, error) {
	if id == "" {
		return nil, ErrMissingPeerID
	}
	header := http.Header{}
	header.Set(HeaderPeer, m.self)
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}
	conn, resp, err := m.dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, &LinkError{Peer: id, Err: err}
	}
	link, err := m.attach(id, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return link, nil
}

// attach registers a fresh connection, replacing any previous link to the same peer.
func (m *Manager) attach(id string, conn *websocket.Conn) (*Link, error) {
	select {
	case <-m.closed:
		return nil, ErrManagerClosed
	default:
	}

	m.mu.Lock()
	old := m.links[id]
	m.mu.Unlock()
	if old != nil {
		old.shutdown(errors.New("replaced by a new link"), false)
	}

	link := newLink(m, id, conn)
	m.mu.Lock()
	m.links[id] = link
	m.mu.Unlock()

	m.logger.Info("attach: link to %s up", id)
	m.emit(LinkEvent{Peer: id, State: domain.Connected})
	link.start()
	return link, nil
}

func (m *Manager) forget(l *Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links[l.peer] == l {
		delete(m.links, l.peer)
	}
}

// Link returns the live link to id.
func (m *Manager) Link(id string) (*Link, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	return l, ok
}

// Peers returns the ids of all live links.
func (m *Manager) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.links))
	for id := range m.links {
		ids = append(ids, id)
	}
	return ids
}

// Send queues msg on the link to id.
func (m *Manager) Send(id string, msg wire.Message) error {
	l, ok := m.Link(id)
	if !ok {
		return &LinkError{Peer: id, Err: ErrUnknownPeer}
	}
	return l.Send(msg)
}

// Broadcast sends msg to every live link. A failed send does not stop the others; all
// failures are joined into the returned error.
func (m *Manager) Broadcast(msg wire.Message) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	links := make([]*Link, 0, len(m.links))
	for _, l := range m.links {
		links = append(links, l)
	}
	m.mu.Unlock()

	var errs []error
	for _, l := range links {
		if err := l.sendRaw(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Drop closes the link to id after flushing what is already queued on it.
func (m *Manager) Drop(id string) {
	if l, ok := m.Link(id); ok {
		l.Close()
	}
}

// Close stops the listener and closes every link. Queued frames are flushed first.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		srv := m.server
		links := make([]*Link, 0, len(m.links))
		for _, l := range m.links {
			links = append(links, l)
		}
		m.mu.Unlock()

		close(m.closed)
		for _, l := range links {
			l.Close()
		}
		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err = srv.Shutdown(ctx)
		}
	})
	return err
}

// emit reports ev unless the manager is closed.
func (m *Manager) emit(ev LinkEvent) {
	select {
	case m.events <- ev:
	case <-m.closed:
	}
}

func (m *Manager) deliver(in Inbound) bool {
	select {
	case m.inbound <- in:
		return true
	case <-m.closed:
		return false
	}
}
