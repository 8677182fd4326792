package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"cardmesh/internal/platform/logging"
	"cardmesh/internal/wire"

	"github.com/form3tech-oss/jwt-go"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/rtapi"
	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

var (
	ErrClosed       = errors.New("signaling session closed")
	ErrNotInRoom    = errors.New("rendezvous has not completed")
	ErrUnauthorized = errors.New("signaling server rejected credentials")
)

// Room is the result of a rendezvous.
type Room struct {
	MatchID    string
	HostUserID string
	Self       string
}

// Client is one signaling session. It holds exactly one websocket to the server.
type Client struct {
	endpoint   Endpoint
	httpClient *http.Client
	logger     runtime.Logger
	deviceID   string

	userID string
	conn   *websocket.Conn
	wmu    sync.Mutex

	cid     atomic.Uint64
	mu      sync.Mutex
	pending map[string]chan *rtapi.Envelope
	offers  map[string]chan Answer
	subs    map[uint64]chan Message
	nextSub uint64
	room    Room

	closed    chan struct{}
	closeOnce sync.Once
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger runtime.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDeviceID authenticates as a fixed device instead of a fresh one.
func WithDeviceID(id string) Option {
	return func(c *Client) { c.deviceID = id }
}

// Connect authenticates against the rendezvous server and opens the realtime socket.
// A missing or malformed endpoint is a *config.ConfigError.
func Connect(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	ep, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	c := &Client{
		endpoint:   ep,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logging.Noop(),
		deviceID:   uuid.NewString(),
		pending:    make(map[string]chan *rtapi.Envelope),
		offers:     make(map[string]chan Answer),
		subs:       make(map[uint64]chan Message),
		closed:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	session, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	c.userID, err = userIDFromToken(session.GetToken())
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, ep.socketURL(session.GetToken()), nil)
	if err != nil {
		return nil, fmt.Errorf("open signaling socket: %w", err)
	}
	c.conn = conn
	go c.readLoop()

	c.logger.Info("Connect: signaling session open as %s", c.userID)
	return c, nil
}

// UserID is the identity other peers see for this client.
func (c *Client) UserID() string { return c.userID }

// Room returns the last successful rendezvous.
func (c *Client) Room() Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) authenticate(ctx context.Context) (*api.Session, error) {
	body, err := protojson.Marshal(&api.AccountDevice{Id: c.deviceID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.authURL(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.endpoint.ServerKey, "")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("authenticate: unexpected status %d", resp.StatusCode)
	}

	var session api.Session
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("authenticate: decode session: %w", err)
	}
	return &session, nil
}

// userIDFromToken reads the uid claim. The server signed the token, the client only
// needs to know who it is.
func userIDFromToken(token string) (string, error) {
	parsed, _, err := new(jwt.Parser).ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("parse session token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("session token has no claims")
	}
	uid, _ := claims["uid"].(string)
	if uid == "" {
		return "", errors.New("session token has no uid")
	}
	return uid, nil
}

// Rendezvous joins the relay match for sessionRef, creating it when host is set.
func (c *Client) Rendezvous(ctx context.Context, sessionRef string, host bool) (Room, error) {
	payload, err := json.Marshal(RendezvousRequest{SessionRef: sessionRef, Host: host})
	if err != nil {
		return Room{}, err
	}
	resp, err := c.request(ctx, &rtapi.Envelope{Message: &rtapi.Envelope_Rpc{Rpc: &api.Rpc{
		Id:      RPCRendezvous,
		Payload: string(payload),
	}}})
	if err != nil {
		return Room{}, fmt.Errorf("rendezvous %s: %w", sessionRef, err)
	}
	var rv RendezvousResponse
	if err := json.Unmarshal([]byte(resp.GetRpc().GetPayload()), &rv); err != nil {
		return Room{}, fmt.Errorf("rendezvous %s: decode: %w", sessionRef, err)
	}

	resp, err = c.request(ctx, &rtapi.Envelope{Message: &rtapi.Envelope_MatchJoin{MatchJoin: &rtapi.MatchJoin{
		Id: &rtapi.MatchJoin_MatchId{MatchId: rv.MatchID},
	}}})
	if err != nil {
		return Room{}, fmt.Errorf("join relay %s: %w", rv.MatchID, err)
	}
	match := resp.GetMatch()
	room := Room{MatchID: match.GetMatchId(), HostUserID: rv.HostUserID, Self: match.GetSelf().GetUserId()}
	if room.Self == "" {
		room.Self = c.userID
	}

	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
	c.logger.Info("Rendezvous: joined %s for session %s (host %s)", room.MatchID, sessionRef, room.HostUserID)
	return room, nil
}

// SendOffer asks peerHint for a link descriptor and waits for its answer.
func (c *Client) SendOffer(ctx context.Context, peerHint string, d wire.Descriptor) (Answer, error) {
	nonce := uuid.NewString()
	ch := make(chan Answer, 1)
	c.mu.Lock()
	c.offers[nonce] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.offers, nonce)
		c.mu.Unlock()
	}()

	if err := c.relay(ctx, OpOffer, RelayPayload{To: peerHint, Nonce: nonce, Descriptor: &d}); err != nil {
		return Answer{}, err
	}
	select {
	case a := <-ch:
		return a, nil
	case <-ctx.Done():
		return Answer{}, ctx.Err()
	case <-c.closed:
		return Answer{}, ErrClosed
	}
}

// Answer replies to offer with the descriptor the offerer should dial.
func (c *Client) Answer(ctx context.Context, offer Offer, d wire.Descriptor) error {
	return c.relay(ctx, OpAnswer, RelayPayload{To: offer.From, Nonce: offer.Nonce, Descriptor: &d})
}

// SendCandidate tells to about another address this peer listens on.
func (c *Client) SendCandidate(ctx context.Context, to, url string) error {
	return c.relay(ctx, OpCandidate, RelayPayload{To: to, URL: url})
}

// Messages yields inbound signaling messages until ctx is done or the session closes.
// Every range subscribes afresh; messages that arrive between two ranges are not replayed.
func (c *Client) Messages(ctx context.Context) iter.Seq[Message] {
	return func(yield func(Message) bool) {
		ch, cancel := c.Subscribe()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closed:
				return
			case m := <-ch:
				if !yield(m) {
					return
				}
			}
		}
	}
}

// Close closes the socket. Pending offers and requests fail with ErrClosed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn == nil {
			return
		}
		c.wmu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.wmu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Subscribe registers for inbound messages at once, unlike Messages which subscribes when
// ranged. Messages are buffered until read; a full subscriber drops them. cancel ends the
// subscription; the channel is never closed.
func (c *Client) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, 128)
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()
	return ch, func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Client) publish(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := m.(Answer); ok {
		if ch, ok := c.offers[a.Nonce]; ok {
			select {
			case ch <- a:
			default:
			}
		}
	}
	for _, ch := range c.subs {
		select {
		case ch <- m:
		default:
			c.logger.Warn("publish: subscriber full, dropping %T", m)
		}
	}
}

func (c *Client) relay(ctx context.Context, op int64, p RelayPayload) error {
	room := c.Room()
	if room.MatchID == "" {
		return ErrNotInRoom
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.send(ctx, &rtapi.Envelope{Message: &rtapi.Envelope_MatchDataSend{MatchDataSend: &rtapi.MatchDataSend{
		MatchId:  room.MatchID,
		OpCode:   op,
		Data:     data,
		Reliable: true,
	}}})
}

// request sends env with a fresh cid and waits for the response carrying it.
func (c *Client) request(ctx context.Context, env *rtapi.Envelope) (*rtapi.Envelope, error) {
	cid := strconv.FormatUint(c.cid.Add(1), 10)
	env.Cid = cid
	ch := make(chan *rtapi.Envelope, 1)
	c.mu.Lock()
	c.pending[cid] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, cid)
		c.mu.Unlock()
	}()

	if err := c.send(ctx, env); err != nil {
		return nil, err
	}
	select {
	case resp := <-ch:
		if e := resp.GetError(); e != nil {
			return nil, fmt.Errorf("server error %d: %s", e.GetCode(), e.GetMessage())
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrClosed
	}
}

func (c *Client) send(ctx context.Context, env *rtapi.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	data, err := proto.Marshal(env)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.logger.Warn("readLoop: signaling socket closed: %v", err)
			}
			return
		}
		env := &rtapi.Envelope{}
		if err := proto.Unmarshal(data, env); err != nil {
			c.logger.Warn("readLoop: undecodable envelope: %v", err)
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env *rtapi.Envelope) {
	if cid := env.GetCid(); cid != "" {
		c.mu.Lock()
		ch, ok := c.pending[cid]
		c.mu.Unlock()
		if ok {
			select {
			case ch <- env:
			default:
			}
		}
		return
	}

	switch msg := env.Message.(type) {
	case *rtapi.Envelope_MatchData:
		m, err := decode(msg.MatchData)
		if err != nil {
			c.logger.Warn("dispatch: %v", err)
			return
		}
		c.publish(m)
	case *rtapi.Envelope_MatchPresenceEvent:
		c.publish(presenceChange(msg.MatchPresenceEvent))
	case *rtapi.Envelope_Error:
		c.logger.Warn("dispatch: server error %d: %s", msg.Error.GetCode(), msg.Error.GetMessage())
	default:
		c.logger.Debug("dispatch: ignoring %T", msg)
	}
}
