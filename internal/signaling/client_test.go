package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cardmesh/internal/config"
	"cardmesh/internal/wire"

	"github.com/form3tech-oss/jwt-go"
	"github.com/gorilla/websocket"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/rtapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// fakeNakama implements the slice of Nakama's HTTP and realtime API the client uses,
// including a relay that forwards match data to the user named in the payload.
type fakeNakama struct {
	key string

	mu      sync.Mutex
	rooms   map[string]RendezvousResponse // by session ref
	conns   map[string]*fakeConn          // by user id
	members map[string][]string           // match id -> user ids
}

type fakeConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *fakeConn) write(env *rtapi.Envelope) {
	data, _ := proto.Marshal(env)
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.WriteMessage(websocket.BinaryMessage, data)
}

func newFakeNakama(t *testing.T, key string) string {
	t.Helper()
	f := &fakeNakama{
		key:     key,
		rooms:   map[string]RendezvousResponse{},
		conns:   map[string]*fakeConn{},
		members: map[string][]string{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/account/authenticate/device", f.authenticate)
	mux.HandleFunc("GET /ws", f.socket)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return "http://" + key + "@" + srv.Listener.Addr().String()
}

func (f *fakeNakama) authenticate(w http.ResponseWriter, r *http.Request) {
	user, _, ok := r.BasicAuth()
	if !ok || user != f.key {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	body, _ := io.ReadAll(r.Body)
	var dev api.AccountDevice
	if err := protojson.Unmarshal(body, &dev); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid": "user-" + dev.GetId(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("server-secret"))
	out, _ := protojson.Marshal(&api.Session{Created: true, Token: token})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}

func (f *fakeNakama) socket(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") != "protobuf" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	uid, err := userIDFromToken(r.URL.Query().Get("token"))
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	ws, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()
	conn := &fakeConn{ws: ws}
	f.mu.Lock()
	f.conns[uid] = conn
	f.mu.Unlock()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		env := &rtapi.Envelope{}
		if err := proto.Unmarshal(data, env); err != nil {
			continue
		}
		f.handle(uid, conn, env)
	}
}

func (f *fakeNakama) handle(uid string, conn *fakeConn, env *rtapi.Envelope) {
	switch msg := env.Message.(type) {
	case *rtapi.Envelope_Rpc:
		var req RendezvousRequest
		_ = json.Unmarshal([]byte(msg.Rpc.GetPayload()), &req)
		f.mu.Lock()
		room, ok := f.rooms[req.SessionRef]
		if !ok && req.Host {
			room = RendezvousResponse{MatchID: "match-" + req.SessionRef, HostUserID: uid}
			f.rooms[req.SessionRef] = room
			ok = true
		}
		f.mu.Unlock()
		if !ok {
			conn.write(&rtapi.Envelope{Cid: env.Cid, Message: &rtapi.Envelope_Error{Error: &rtapi.Error{Code: 5, Message: "session not found"}}})
			return
		}
		payload, _ := json.Marshal(room)
		conn.write(&rtapi.Envelope{Cid: env.Cid, Message: &rtapi.Envelope_Rpc{Rpc: &api.Rpc{Id: msg.Rpc.GetId(), Payload: string(payload)}}})

	case *rtapi.Envelope_MatchJoin:
		matchID := msg.MatchJoin.GetMatchId()
		self := &rtapi.UserPresence{UserId: uid, SessionId: uid}
		f.mu.Lock()
		others := append([]string(nil), f.members[matchID]...)
		f.members[matchID] = append(f.members[matchID], uid)
		f.mu.Unlock()
		conn.write(&rtapi.Envelope{Cid: env.Cid, Message: &rtapi.Envelope_Match{Match: &rtapi.Match{MatchId: matchID, Authoritative: true, Self: self}}})
		for _, other := range others {
			f.to(other, &rtapi.Envelope{Message: &rtapi.Envelope_MatchPresenceEvent{MatchPresenceEvent: &rtapi.MatchPresenceEvent{
				MatchId: matchID, Joins: []*rtapi.UserPresence{self},
			}}})
		}

	case *rtapi.Envelope_MatchDataSend:
		var p RelayPayload
		if err := json.Unmarshal(msg.MatchDataSend.GetData(), &p); err != nil {
			return
		}
		f.to(p.To, &rtapi.Envelope{Message: &rtapi.Envelope_MatchData{MatchData: &rtapi.MatchData{
			MatchId:  msg.MatchDataSend.GetMatchId(),
			Presence: &rtapi.UserPresence{UserId: uid, SessionId: uid},
			OpCode:   msg.MatchDataSend.GetOpCode(),
			Data:     msg.MatchDataSend.GetData(),
		}}})
	}
}

func (f *fakeNakama) to(uid string, env *rtapi.Envelope) {
	f.mu.Lock()
	c := f.conns[uid]
	f.mu.Unlock()
	if c != nil {
		c.write(env)
	}
}

func connect(t *testing.T, endpoint, device string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Connect(ctx, endpoint, WithDeviceID(device))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// waitSubscribed blocks until c has handed out total subscriptions in its lifetime.
func waitSubscribed(t *testing.T, c *Client, total uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.nextSub >= total
	}, 2*time.Second, 5*time.Millisecond)
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		socket  string
	}{
		{name: "empty", raw: "", wantErr: true},
		{name: "no scheme", raw: "127.0.0.1:7350", wantErr: true},
		{name: "wrong scheme", raw: "ftp://key@host:7350", wantErr: true},
		{name: "no server key", raw: "http://host:7350", wantErr: true},
		{name: "no host", raw: "http://key@", wantErr: true},
		{name: "http", raw: "http://defaultkey@127.0.0.1:7350", socket: "ws://127.0.0.1:7350/ws"},
		{name: "https", raw: "https://defaultkey@example.com", socket: "wss://example.com/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := ParseEndpoint(tt.raw)
			if tt.wantErr {
				var cfgErr *config.ConfigError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, "CARDMESH_SIGNALING_URL", cfgErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "defaultkey", ep.ServerKey)
			assert.Contains(t, ep.socketURL("tok"), tt.socket+"?")
			assert.Contains(t, ep.socketURL("tok"), "format=protobuf")
		})
	}
}

func TestConnect_MissingEndpoint(t *testing.T) {
	_, err := Connect(context.Background(), "")
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestConnect_WrongServerKey(t *testing.T) {
	endpoint := newFakeNakama(t, "defaultkey")
	wrong := "http://otherkey@" + endpoint[len("http://defaultkey@"):]

	_, err := Connect(context.Background(), wrong)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRendezvous_UnknownSessionFails(t *testing.T) {
	endpoint := newFakeNakama(t, "defaultkey")
	c := connect(t, endpoint, "joiner")

	_, err := c.Rendezvous(context.Background(), "missing", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
}

func TestOfferAnswer(t *testing.T) {
	endpoint := newFakeNakama(t, "defaultkey")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host := connect(t, endpoint, "host")
	assert.Equal(t, "user-host", host.UserID())
	hostRoom, err := host.Rendezvous(ctx, "ref-1", true)
	require.NoError(t, err)
	assert.Equal(t, "user-host", hostRoom.HostUserID)

	served := make(chan Offer, 1)
	go func() {
		for m := range host.Messages(ctx) {
			offer, ok := m.(Offer)
			if !ok {
				continue
			}
			_ = host.Answer(ctx, offer, wire.Descriptor{URL: "ws://10.0.0.1:9000/link", Token: "tok"})
			served <- offer
			return
		}
	}()
	waitSubscribed(t, host, 1)

	joiner := connect(t, endpoint, "joiner")
	room, err := joiner.Rendezvous(ctx, "ref-1", false)
	require.NoError(t, err)
	assert.Equal(t, hostRoom.MatchID, room.MatchID)
	assert.Equal(t, "user-host", room.HostUserID)
	assert.Equal(t, "user-joiner", room.Self)

	answer, err := joiner.SendOffer(ctx, room.HostUserID, wire.Descriptor{})
	require.NoError(t, err)
	assert.Equal(t, "user-host", answer.From)
	assert.Equal(t, "ws://10.0.0.1:9000/link", answer.Descriptor.URL)
	assert.Equal(t, "tok", answer.Descriptor.Token)

	offer := <-served
	assert.Equal(t, "user-joiner", offer.From)
	assert.Equal(t, answer.Nonce, offer.Nonce)
}

func TestMessages_Restartable(t *testing.T) {
	endpoint := newFakeNakama(t, "defaultkey")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host := connect(t, endpoint, "host")
	_, err := host.Rendezvous(ctx, "ref-2", true)
	require.NoError(t, err)
	joiner := connect(t, endpoint, "joiner")
	_, err = joiner.Rendezvous(ctx, "ref-2", false)
	require.NoError(t, err)

	firstCandidate := func() <-chan Candidate {
		out := make(chan Candidate, 1)
		go func() {
			for m := range host.Messages(ctx) {
				if c, ok := m.(Candidate); ok {
					out <- c
					return
				}
			}
		}()
		return out
	}

	first := firstCandidate()
	waitSubscribed(t, host, 1)
	require.NoError(t, joiner.SendCandidate(ctx, "user-host", "ws://a/link"))
	assert.Equal(t, Candidate{From: "user-joiner", URL: "ws://a/link"}, <-first)

	second := firstCandidate()
	waitSubscribed(t, host, 2)
	require.NoError(t, joiner.SendCandidate(ctx, "user-host", "ws://b/link"))
	assert.Equal(t, "ws://b/link", (<-second).URL)
}

func TestClose_EndsMessagesAndFailsOffers(t *testing.T) {
	endpoint := newFakeNakama(t, "defaultkey")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host := connect(t, endpoint, "host")
	_, err := host.Rendezvous(ctx, "ref-3", true)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for range host.Messages(ctx) {
		}
		close(done)
	}()
	waitSubscribed(t, host, 1)

	require.NoError(t, host.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Messages did not end after Close")
	}

	_, err = host.SendOffer(ctx, "anyone", wire.Descriptor{})
	assert.True(t, errors.Is(err, ErrClosed), "got %v", err)
}

func TestSendOffer_RequiresRendezvous(t *testing.T) {
	endpoint := newFakeNakama(t, "defaultkey")
	c := connect(t, endpoint, "solo")

	_, err := c.SendOffer(context.Background(), "user-host", wire.Descriptor{})
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestSubscribe_CatchesMessagesSentRightAfter(t *testing.T) {
	endpoint := newFakeNakama(t, "defaultkey")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host := connect(t, endpoint, "host")
	_, err := host.Rendezvous(ctx, "ref-3", true)
	require.NoError(t, err)
	joiner := connect(t, endpoint, "joiner")
	_, err = joiner.Rendezvous(ctx, "ref-3", false)
	require.NoError(t, err)

	msgs, unsubscribe := joiner.Subscribe()
	require.NoError(t, host.SendCandidate(ctx, "user-joiner", "ws://a/link"))
	require.NoError(t, host.SendCandidate(ctx, "user-joiner", "ws://b/link"))

	var urls []string
	for len(urls) < 2 {
		select {
		case m := <-msgs:
			if c, ok := m.(Candidate); ok {
				urls = append(urls, c.URL)
			}
		case <-ctx.Done():
			t.Fatalf("got %v before timeout", urls)
		}
	}
	assert.Equal(t, []string{"ws://a/link", "ws://b/link"}, urls)

	unsubscribe()
	joiner.mu.Lock()
	defer joiner.mu.Unlock()
	assert.Empty(t, joiner.subs)
}
