package session

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"cardmesh/internal/app"
	"cardmesh/internal/bot"
	"cardmesh/internal/config"
	"cardmesh/internal/domain"
	"cardmesh/internal/platform/logging"
	"cardmesh/internal/wire"
)

type sentMessage struct {
	to  string
	msg wire.Message
}

// mockSender records every message the host sends.
type mockSender struct {
	sent []sentMessage
}

func (m *mockSender) Send(peerID string, msg wire.Message) error {
	m.sent = append(m.sent, sentMessage{to: peerID, msg: msg})
	return nil
}

func (m *mockSender) to(peerID string) []wire.Message {
	var out []wire.Message
	for _, s := range m.sent {
		if s.to == peerID {
			out = append(out, s.msg)
		}
	}
	return out
}

func (m *mockSender) last(peerID string) wire.Message {
	msgs := m.to(peerID)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func testConfig(minPlayers, maxPlayers int) config.GameConfig {
	cfg := config.DefaultGameConfig()
	cfg.MinPlayers = minPlayers
	cfg.MaxPlayers = maxPlayers
	return cfg
}

func newTestHost(cfg config.GameConfig, seed int64) (*Host, *mockSender) {
	sender := &mockSender{}
	rules := app.NewService(rand.New(rand.NewSource(seed)), cfg.HandSize)
	return NewHost("host", "Host", rules, cfg, sender, logging.Noop()), sender
}

func joinAll(t *testing.T, h *Host, peers ...string) {
	t.Helper()
	for _, p := range peers {
		if d := h.Join(context.Background(), p, p); !d.Admitted {
			t.Fatalf("join %s: %+v", p, d)
		}
	}
}

func TestHostJoinSendsSnapshots(t *testing.T) {
	h, sender := newTestHost(testConfig(2, 4), 1)
	ctx := context.Background()

	d := h.Join(ctx, "alice", "Alice")
	if !d.Admitted || d.ParticipantID != 1 {
		t.Fatalf("decision = %+v", d)
	}
	if got := len(h.Game().Roster); got != 2 {
		t.Fatalf("roster size = %d", got)
	}
	accepted, ok := sender.last("alice").(wire.JoinAccepted)
	if !ok || accepted.ParticipantID != 1 || len(accepted.Snapshot.Roster) != 2 {
		t.Fatalf("alice got %#v", sender.last("alice"))
	}

	h.Join(ctx, "bob", "Bob")
	snap, ok := sender.last("alice").(wire.Snapshot)
	if !ok || len(snap.State.Roster) != 3 || snap.State.Recipient != 1 {
		t.Fatalf("alice got %#v", sender.last("alice"))
	}
	if _, ok := sender.last("bob").(wire.JoinAccepted); !ok {
		t.Fatalf("bob got %#v", sender.last("bob"))
	}
	if len(sender.to("bob")) != 1 {
		t.Fatalf("bob got %d messages, want only the acceptance", len(sender.to("bob")))
	}
	if h.Game().Seq != 2 {
		t.Fatalf("seq = %d", h.Game().Seq)
	}
}

func TestHostJoinRejections(t *testing.T) {
	h, sender := newTestHost(testConfig(2, 2), 1)
	ctx := context.Background()
	joinAll(t, h, "alice")

	d := h.Join(ctx, "bob", "Bob")
	if d.Admitted || d.Reason != ReasonFull {
		t.Fatalf("decision = %+v", d)
	}
	if rej, ok := sender.last("bob").(wire.JoinRejected); !ok || rej.Reason != ReasonFull {
		t.Fatalf("bob got %#v", sender.last("bob"))
	}
	if len(h.Game().Roster) != 2 {
		t.Fatalf("roster grew to %d", len(h.Game().Roster))
	}

	if _, err := h.ApplyAction(ctx, domain.HostParticipantID, domain.Action{Kind: domain.ActionStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	seq := h.Game().Seq
	d = h.Join(ctx, "carol", "Carol")
	if d.Admitted || d.Reason != ReasonAlreadyStarted {
		t.Fatalf("decision = %+v", d)
	}
	if h.Game().Seq != seq {
		t.Fatal("rejection changed state")
	}
}

func TestHostStartRules(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHost(testConfig(3, 4), 1)
	joinAll(t, h, "alice")

	if _, err := h.ApplyAction(ctx, domain.HostParticipantID, domain.Action{Kind: domain.ActionStart}); !errors.Is(err, ErrTooFewPlayers) {
		t.Fatalf("start with 2 of 3: err = %v", err)
	}
	joinAll(t, h, "bob")
	if _, err := h.ApplyAction(ctx, 1, domain.Action{Kind: domain.ActionStart}); !errors.Is(err, ErrNotHost) {
		t.Fatalf("start by non-host: err = %v", err)
	}
	if _, err := h.ApplyAction(ctx, 9, domain.Action{Kind: domain.ActionStart}); !errors.Is(err, ErrNotAdmitted) {
		t.Fatalf("start by stranger: err = %v", err)
	}
	snap, err := h.ApplyAction(ctx, domain.HostParticipantID, domain.Action{Kind: domain.ActionStart})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.Status != domain.StatusPlaying || len(snap.Hand) != h.cfg.HandSize {
		t.Fatalf("snapshot = %+v", snap)
	}
	if _, err := h.ApplyAction(ctx, domain.HostParticipantID, domain.Action{Kind: domain.ActionStart}); !errors.Is(err, ErrRejected) {
		t.Fatalf("second start: err = %v", err)
	}
}

func TestHostRefusalsAreNotBroadcast(t *testing.T) {
	ctx := context.Background()
	h, sender := newTestHost(testConfig(2, 4), 1)
	joinAll(t, h, "alice", "bob")
	if _, err := h.ApplyAction(ctx, domain.HostParticipantID, domain.Action{Kind: domain.ActionStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	sent, seq := len(sender.sent), h.Game().Seq

	if _, err := h.ApplyAction(ctx, 2, domain.Action{Kind: domain.ActionDraw}); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("out of turn: err = %v", err)
	}
	var ae *ActionError
	_, err := h.ApplyAction(ctx, domain.HostParticipantID, domain.Action{Kind: domain.ActionPlay, CardID: -5})
	if !errors.As(err, &ae) || ae.Code != CodeRejected {
		t.Fatalf("illegal play: err = %v", err)
	}
	if len(sender.sent) != sent || h.Game().Seq != seq {
		t.Fatalf("refusals were broadcast: %d -> %d messages", sent, len(sender.sent))
	}
}

func TestHostReadyIsAcknowledged(t *testing.T) {
	h, _ := newTestHost(testConfig(2, 4), 1)
	joinAll(t, h, "alice")

	snap, err := h.ApplyAction(context.Background(), 1, domain.Action{Kind: domain.ActionReady})
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if snap.Status != domain.StatusLobby || snap.LastAction == nil || snap.LastAction.Kind != domain.ActionReady {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestHostDisconnectPassesTurn(t *testing.T) {
	ctx := context.Background()
	h, sender := newTestHost(testConfig(2, 4), 1)
	joinAll(t, h, "alice", "bob")
	if _, err := h.ApplyAction(ctx, domain.HostParticipantID, domain.Action{Kind: domain.ActionStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.ApplyAction(ctx, domain.HostParticipantID, domain.Action{Kind: domain.ActionDraw}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if h.Game().CurrentTurn != 1 {
		t.Fatalf("turn = %d, want 1", h.Game().CurrentTurn)
	}

	if !h.Disconnect("alice") {
		t.Fatal("alice not disconnected")
	}
	game := h.Game()
	if game.Status != domain.StatusPlaying || game.CurrentTurn != 2 {
		t.Fatalf("status %s turn %d", game.Status, game.CurrentTurn)
	}
	if m, _ := game.Roster.Get(1); m.Connection != domain.Disconnected || len(game.Roster) != 3 {
		t.Fatalf("roster = %+v", game.Roster)
	}
	if snap, ok := sender.last("bob").(wire.Snapshot); !ok || snap.State.Seq != game.Seq {
		t.Fatalf("bob got %#v", sender.last("bob"))
	}
	if h.Disconnect("alice") || h.Disconnect("host") || h.Disconnect("nobody") {
		t.Fatal("repeated, host or unknown disconnect changed state")
	}
}

func TestHostInsufficientPlayers(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHost(testConfig(3, 5), 1)
	joinAll(t, h, "a", "b", "c", "d")
	if _, err := h.ApplyAction(ctx, domain.HostParticipantID, domain.Action{Kind: domain.ActionStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.Disconnect("c")
	h.Disconnect("d")
	if got := h.Game().Roster.ConnectedCount(); got != 3 || h.Game().Status != domain.StatusPlaying {
		t.Fatalf("connected %d, status %s", got, h.Game().Status)
	}

	h.Disconnect("b")
	game := h.Game()
	if game.Status != domain.StatusEnded || game.EndType != domain.EndTypeInsufficientPlayers {
		t.Fatalf("status %s end %q", game.Status, game.EndType)
	}
	if len(game.Roster) != 5 {
		t.Fatalf("roster size = %d", len(game.Roster))
	}
	if _, err := h.ApplyAction(ctx, domain.HostParticipantID, domain.Action{Kind: domain.ActionDraw}); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("action after end: err = %v", err)
	}
}

// replica wires a host to one mirror per peer through the recording sender.
type replica struct {
	host    *Host
	sender  *mockSender
	mirrors map[string]*Mirror
	ids     map[string]domain.ParticipantID
}

func (r *replica) deliver(t *testing.T) {
	t.Helper()
	for _, s := range r.sender.sent {
		m := r.mirrors[s.to]
		switch msg := s.msg.(type) {
		case wire.JoinAccepted:
			r.ids[s.to] = msg.ParticipantID
			m.Apply(msg.Snapshot)
		case wire.Snapshot:
			m.Apply(msg.State)
		}
	}
	r.sender.sent = nil
}

func (r *replica) check(t *testing.T, cfg config.GameConfig) {
	t.Helper()
	game := r.host.Game()
	if len(game.Roster) > cfg.MaxPlayers {
		t.Fatalf("roster size %d exceeds %d", len(game.Roster), cfg.MaxPlayers)
	}
	for peerID, m := range r.mirrors {
		got, ok := m.Current()
		if !ok {
			t.Fatalf("%s has no state", peerID)
		}
		if want := game.SnapshotFor(r.ids[peerID]); !reflect.DeepEqual(got, want) {
			t.Fatalf("%s diverged at seq %d:\n got %+v\nwant %+v", peerID, game.Seq, got, want)
		}
	}
}

func TestMirrorsReplicateHost(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(2, 4)
	h, sender := newTestHost(cfg, 7)
	r := &replica{host: h, sender: sender, mirrors: map[string]*Mirror{}, ids: map[string]domain.ParticipantID{}}
	peers := []string{"alice", "bob", "carol"}
	for _, p := range peers {
		r.mirrors[p] = &Mirror{}
	}

	joinAll(t, h, peers...)
	r.deliver(t)
	r.check(t, cfg)

	if _, err := h.ApplyAction(ctx, domain.HostParticipantID, domain.Action{Kind: domain.ActionStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.deliver(t)
	r.check(t, cfg)

	brain, err := bot.NewBrain(bot.BotLevelStandard)
	if err != nil {
		t.Fatal(err)
	}
	for turn := 0; turn < 300 && h.Game().Status == domain.StatusPlaying; turn++ {
		current := h.Game().CurrentTurn
		agent := &bot.Agent{ID: current, Strategy: brain}
		action, ok, err := agent.Play(h.Snapshot(current))
		if !ok {
			t.Fatalf("agent %d refused its turn", current)
		}
		if err != nil {
			action = domain.Action{Kind: domain.ActionDraw}
		}
		if _, err := h.ApplyAction(ctx, current, action); err != nil {
			// An empty draw pile can refuse a draw; the bots have nothing else to try.
			if action.Kind == domain.ActionDraw {
				break
			}
			t.Fatalf("turn %d: %d %+v: %v", turn, current, action, err)
		}
		r.deliver(t)
		r.check(t, cfg)
	}
}
