package peer

import (
	"sync"
	"time"

	"cardmesh/internal/domain"
	"cardmesh/internal/wire"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Link is one direct connection to another peer. Frames sent on a link arrive in send
// order; a single writer goroutine owns the socket's write side.
type Link struct {
	peer string
	conn *websocket.Conn
	mgr  *Manager

	send     chan []byte
	done     chan struct{}
	downOnce sync.Once
}

func newLink(mgr *Manager, peer string, conn *websocket.Conn) *Link {
	return &Link{
		peer: peer,
		conn: conn,
		mgr:  mgr,
		send: make(chan []byte, mgr.sendBuffer),
		done: make(chan struct{}),
	}
}

// Peer returns the remote peer id.
func (l *Link) Peer() string { return l.peer }

// Send queues msg for delivery. It never blocks; a full queue closes the link.
func (l *Link) Send(msg wire.Message) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return &LinkError{Peer: l.peer, Err: err}
	}
	return l.sendRaw(data)
}

func (l *Link) sendRaw(data []byte) error {
	select {
	case <-l.done:
		return &LinkError{Peer: l.peer, Err: ErrLinkClosed}
	default:
	}
	select {
	case l.send <- data:
		return nil
	default:
		l.shutdown(ErrSendBufferFull, false)
		return &LinkError{Peer: l.peer, Err: ErrSendBufferFull}
	}
}

// Close flushes queued frames and closes the link. The disconnection is reported like
// any other.
func (l *Link) Close() {
	l.shutdown(ErrLinkClosed, true)
}

// shutdown tears the link down once. A graceful shutdown lets the writer flush what is
// already queued before the close frame.
func (l *Link) shutdown(cause error, graceful bool) {
	l.downOnce.Do(func() {
		l.mgr.forget(l)
		close(l.done)
		if !graceful {
			_ = l.conn.Close()
		}
		l.mgr.logger.Debug("Link: %s down: %v", l.peer, cause)
		l.mgr.emit(LinkEvent{
			Peer:  l.peer,
			State: domain.Disconnected,
			Err:   &LinkError{Peer: l.peer, Err: cause},
		})
	})
}

func (l *Link) start() {
	go l.writeLoop()
	go l.readLoop()
}

func (l *Link) writeLoop() {
	var ping <-chan time.Time
	if l.mgr.heartbeatInterval > 0 {
		ticker := time.NewTicker(l.mgr.heartbeatInterval)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer l.conn.Close()

	for {
		select {
		case data := <-l.send:
			if err := l.write(data); err != nil {
				l.shutdown(err, false)
				return
			}
		case <-ping:
			if err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				l.shutdown(err, false)
				return
			}
		case <-l.done:
			l.flush()
			_ = l.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (l *Link) flush() {
	for {
		select {
		case data := <-l.send:
			if err := l.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (l *Link) write(data []byte) error {
	_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return l.conn.WriteMessage(websocket.TextMessage, data)
}

func (l *Link) readLoop() {
	timeout := l.mgr.heartbeatTimeout
	extend := func() {
		if timeout > 0 {
			_ = l.conn.SetReadDeadline(time.Now().Add(timeout))
		}
	}
	extend()
	l.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			l.shutdown(err, false)
			return
		}
		extend()

		msg, err := wire.Decode(data)
		if err != nil {
			// Bad frames are reported but do not take the link down.
			l.mgr.logger.Warn("Link: dropping frame from %s: %v", l.peer, err)
			l.mgr.emit(LinkEvent{Peer: l.peer, State: domain.Connected, Err: &LinkError{Peer: l.peer, Err: err}})
			continue
		}
		if !l.mgr.deliver(Inbound{From: l.peer, Msg: msg}) {
			return
		}
	}
}
