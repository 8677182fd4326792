// Package session runs one multiplayer session: the host's authoritative state machine,
// the mirrors kept by every other peer, and the handling of a host that goes away.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"cardmesh/internal/app"
	"cardmesh/internal/config"
	"cardmesh/internal/domain"
	"cardmesh/internal/feedback"
	"cardmesh/internal/peer"
	"cardmesh/internal/platform/logging"
	"cardmesh/internal/ports"
	"cardmesh/internal/signaling"
	"cardmesh/internal/wire"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

// Signaler finds the other participants of a session. *signaling.Client implements it.
type Signaler interface {
	UserID() string
	Rendezvous(ctx context.Context, sessionRef string, host bool) (signaling.Room, error)
	SendOffer(ctx context.Context, peerHint string, d wire.Descriptor) (signaling.Answer, error)
	Answer(ctx context.Context, offer signaling.Offer, d wire.Descriptor) error
	SendCandidate(ctx context.Context, to, url string) error
	// Subscribe registers for inbound messages immediately; nothing that arrives after
	// it returns is missed until cancel is called.
	Subscribe() (<-chan signaling.Message, func())
	Close() error
}

// Deps are the collaborators of a Session. Signaling is always required; the host also
// needs Rules and Listener.
type Deps struct {
	Signaling Signaler
	Rules     ports.RuleEngine
	Navigator ports.Navigator
	Config    config.GameConfig

	// Listener accepts inbound links. AdvertiseHosts are the addresses joiners may dial
	// it on, most preferred first.
	Listener       net.Listener
	AdvertiseHosts []string

	DisplayName string
	LinkSecret  string
	Logger      runtime.Logger

	// OnCountdown is told the remaining units while the host-loss countdown runs.
	OnCountdown func(remaining int)
	// CountdownUnit defaults to one second.
	CountdownUnit time.Duration
	NewTicker     TickerFactory
}

func (d *Deps) defaults() error {
	if d.Signaling == nil {
		return ErrMissingDeps
	}
	if d.Config == (config.GameConfig{}) {
		d.Config = config.DefaultGameConfig()
	}
	if d.Logger == nil {
		d.Logger = logging.Noop()
	}
	if d.Navigator == nil {
		d.Navigator = ports.NavigatorFunc(func() {})
	}
	if len(d.AdvertiseHosts) == 0 {
		d.AdvertiseHosts = []string{"127.0.0.1"}
	}
	return nil
}

type intent struct {
	action domain.Action
	reply  chan error
}

// Session is a live session handle, either hosting or joined. Its state is owned by a
// single event loop; the accessors read the last published projection.
type Session struct {
	ref      string
	isHost   bool
	hostPeer string
	me       domain.ParticipantID

	deps   Deps
	logger runtime.Logger
	sig    Signaler
	links  *peer.Manager
	tokens *app.LinkTokenService

	host     *Host
	mirror   Mirror
	lost     *HostLossHandler
	hostGone bool
	pending  map[string]chan error

	view    atomic.Pointer[domain.Snapshot]
	bus     *feedback.Bus
	prev    feedback.View
	hasPrev bool

	intents   chan intent
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newSession(deps Deps, ref string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ref:     ref,
		deps:    deps,
		logger:  deps.Logger,
		sig:     deps.Signaling,
		bus:     feedback.NewBus(),
		pending: make(map[string]chan error),
		intents: make(chan intent),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Session) managerOptions(extra ...peer.Option) []peer.Option {
	opts := []peer.Option{
		peer.WithHeartbeat(s.deps.Config.HeartbeatInterval(), s.deps.Config.HeartbeatTimeout()),
		peer.WithLogger(s.logger),
	}
	return append(opts, extra...)
}

// HostSession creates a new session with this process as its host and starts accepting joiners.
func HostSession(ctx context.Context, deps Deps) (*Session, error) {
	if err := deps.defaults(); err != nil {
		return nil, err
	}
	if deps.Listener == nil || deps.Rules == nil {
		return nil, fmt.Errorf("%w: host needs a listener and rules", ErrMissingDeps)
	}

	ref := NewSessionRef()
	if _, err := deps.Signaling.Rendezvous(ctx, ref, true); err != nil {
		return nil, fmt.Errorf("host rendezvous: %w", err)
	}

	s := newSession(deps, ref)
	s.isHost = true
	s.me = domain.HostParticipantID
	s.hostPeer = deps.Signaling.UserID()
	s.tokens = app.NewLinkTokenService(deps.LinkSecret, ref)
	s.links = peer.NewManager(s.hostPeer, s.managerOptions(peer.WithAuthorizer(s.tokens.Verify))...)
	if err := s.links.Serve(deps.Listener); err != nil {
		s.cancel()
		return nil, err
	}

	s.host = NewHost(s.hostPeer, deps.DisplayName, deps.Rules, deps.Config, s.links, s.logger)
	s.host.local = s.publish
	s.publish(s.host.Snapshot(domain.HostParticipantID))

	offers, unsubscribe := s.sig.Subscribe()
	s.wg.Add(2)
	go s.run()
	go s.answerOffers(offers, unsubscribe)
	s.logger.Info("Host: session %s open, share %s", ref, JoinURL(ref))
	return s, nil
}

// Join links to the host of the session identified by ref (a bare reference or join URL)
// and waits for admission. A refusal is returned as *AdmissionError.
func Join(ctx context.Context, deps Deps, ref string) (*Session, error) {
	if err := deps.defaults(); err != nil {
		return nil, err
	}
	ref, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	room, err := deps.Signaling.Rendezvous(ctx, ref, false)
	if err != nil {
		return nil, fmt.Errorf("join rendezvous: %w", err)
	}

	s := newSession(deps, ref)
	s.hostPeer = room.HostUserID
	s.links = peer.NewManager(deps.Signaling.UserID(), s.managerOptions()...)

	if err := s.dialHost(ctx); err != nil {
		s.abort()
		return nil, err
	}
	if err := s.links.Send(s.hostPeer, wire.JoinRequest{DisplayName: deps.DisplayName}); err != nil {
		s.abort()
		return nil, err
	}
	if err := s.awaitAdmission(ctx); err != nil {
		s.abort()
		return nil, err
	}

	s.lost = NewHostLossHandler(deps.Config.DisconnectCountdown, deps.CountdownUnit, deps.Navigator, deps.NewTicker, deps.OnCountdown)
	s.wg.Add(1)
	go s.run()
	s.logger.Info("Join: joined session %s as participant %d", ref, s.me)
	return s, nil
}

// dialHost offers to the host and dials the answer, falling back to any candidate
// addresses the host announced.
//
// The host relays its candidates ahead of the answer, so once the answer is in they are
// already queued on the subscription.
func (s *Session) dialHost(ctx context.Context) error {
	msgs, unsubscribe := s.sig.Subscribe()
	defer unsubscribe()

	answer, err := s.sig.SendOffer(ctx, s.hostPeer, wire.Descriptor{})
	if err != nil {
		return fmt.Errorf("offer to host: %w", err)
	}

	urls := []string{answer.Descriptor.URL}
	var errs []error
	for i := 0; i < len(urls); i++ {
		_, err := s.links.AddPeer(ctx, s.hostPeer, wire.Descriptor{URL: urls[i], Token: answer.Descriptor.Token})
		if err == nil {
			return nil
		}
		s.logger.Warn("dialHost: %s unreachable: %v", urls[i], err)
		errs = append(errs, err)
		urls = append(urls, s.candidates(msgs)...)
	}
	return fmt.Errorf("%w: %w", ErrHostUnreachable, errors.Join(errs...))
}

// candidates returns the host addresses queued on msgs without waiting for more.
func (s *Session) candidates(msgs <-chan signaling.Message) []string {
	var urls []string
	for {
		select {
		case m := <-msgs:
			if c, ok := m.(signaling.Candidate); ok && c.From == s.hostPeer {
				urls = append(urls, c.URL)
			}
		default:
			return urls
		}
	}
}

func (s *Session) awaitAdmission(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-s.links.Inbound():
			if done, err := s.admissionReply(in); done {
				return err
			}
		case ev := <-s.links.Events():
			if ev.Peer != s.hostPeer || ev.State != domain.Disconnected {
				continue
			}
			// A rejection is queued before the link that carried it goes down.
			for drained := false; !drained; {
				select {
				case in := <-s.links.Inbound():
					if done, err := s.admissionReply(in); done {
						return err
					}
				default:
					drained = true
				}
			}
			if ev.Err == nil {
				return ErrHostUnreachable
			}
			return fmt.Errorf("%w: %w", ErrHostUnreachable, ev.Err)
		}
	}
}

func (s *Session) admissionReply(in peer.Inbound) (bool, error) {
	if in.From != s.hostPeer {
		return false, nil
	}
	switch m := in.Msg.(type) {
	case wire.JoinAccepted:
		s.me = m.ParticipantID
		s.mirror.Apply(m.Snapshot)
		s.publish(m.Snapshot)
		return true, nil
	case wire.JoinRejected:
		return true, &AdmissionError{Reason: m.Reason}
	default:
		return false, nil
	}
}

// abort releases what a failed Join acquired. The signaling session stays with the caller.
func (s *Session) abort() {
	s.cancel()
	_ = s.links.Close()
	s.bus.Close()
}

// answerOffers hands every offering peer a link descriptor with a token bound to it.
func (s *Session) answerOffers(msgs <-chan signaling.Message, unsubscribe func()) {
	defer s.wg.Done()
	defer unsubscribe()
	for {
		var m signaling.Message
		select {
		case <-s.ctx.Done():
			return
		case m = <-msgs:
		}
		offer, ok := m.(signaling.Offer)
		if !ok {
			continue
		}
		token, err := s.tokens.Issue(offer.From)
		if err != nil {
			s.logger.Error("answerOffers: failed to issue link token for %s: %v", offer.From, err)
			continue
		}
		urls := s.linkURLs()
		for _, u := range urls[1:] {
			if err := s.sig.SendCandidate(s.ctx, offer.From, u); err != nil {
				s.logger.Warn("answerOffers: candidate %s to %s failed: %v", u, offer.From, err)
			}
		}
		if err := s.sig.Answer(s.ctx, offer, wire.Descriptor{URL: urls[0], Token: token}); err != nil {
			s.logger.Warn("answerOffers: answer to %s failed: %v", offer.From, err)
		}
	}
}

func (s *Session) linkURLs() []string {
	port := "0"
	if addr, ok := s.deps.Listener.Addr().(*net.TCPAddr); ok {
		port = strconv.Itoa(addr.Port)
	}
	urls := make([]string, 0, len(s.deps.AdvertiseHosts))
	for _, h := range s.deps.AdvertiseHosts {
		urls = append(urls, "ws://"+net.JoinHostPort(h, port)+peer.LinkPath)
	}
	return urls
}

func (s *Session) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case in := <-s.links.Inbound():
			s.handleInbound(in)
		case ev := <-s.links.Events():
			s.handleLinkEvent(ev)
		case it := <-s.intents:
			s.handleIntent(it)
		}
	}
}

func (s *Session) handleInbound(in peer.Inbound) {
	if s.isHost {
		s.hostInbound(in)
		return
	}
	s.mirrorInbound(in)
}

func (s *Session) hostInbound(in peer.Inbound) {
	switch m := in.Msg.(type) {
	case wire.JoinRequest:
		// The link may have died while the request sat in the queue.
		if _, live := s.links.Link(in.From); !live {
			s.logger.Debug("hostInbound: ignoring join from %s, link already down", in.From)
			return
		}
		if d := s.host.Join(s.ctx, in.From, m.DisplayName); !d.Admitted {
			s.links.Drop(in.From)
		}
	case wire.ActionRequest:
		result := wire.ActionResult{RequestID: m.RequestID, OK: true}
		var err error = ErrNotAdmitted
		if member, ok := s.host.Game().Roster.ByPeer(in.From); ok {
			_, err = s.host.ApplyAction(s.ctx, member.ID, m.Action)
		}
		if err != nil {
			var ae *ActionError
			if !errors.As(err, &ae) {
				ae = rejected(err)
			}
			result = wire.ActionResult{RequestID: m.RequestID, Code: ae.Code, Message: ae.Message}
		}
		if err := s.links.Send(in.From, result); err != nil {
			s.logger.Warn("hostInbound: result to %s failed: %v", in.From, err)
		}
	case wire.Goodbye:
		s.host.Disconnect(in.From)
		s.links.Drop(in.From)
	default:
		s.logger.Warn("hostInbound: unexpected %s from %s", in.Msg.Type(), in.From)
	}
}

func (s *Session) mirrorInbound(in peer.Inbound) {
	if in.From != s.hostPeer {
		s.logger.Warn("mirrorInbound: ignoring %s from non-host %s", in.Msg.Type(), in.From)
		return
	}
	switch m := in.Msg.(type) {
	case wire.Snapshot:
		if s.mirror.Apply(m.State) {
			s.publish(m.State)
		}
	case wire.JoinAccepted:
		if s.mirror.Apply(m.Snapshot) {
			s.publish(m.Snapshot)
		}
	case wire.ActionResult:
		reply, ok := s.pending[m.RequestID]
		if !ok {
			return
		}
		delete(s.pending, m.RequestID)
		if m.OK {
			reply <- nil
		} else {
			reply <- &ActionError{Code: m.Code, Message: m.Message}
		}
	case wire.Goodbye, wire.JoinRejected:
		s.hostLost(fmt.Sprintf("host sent %s", in.Msg.Type()))
	default:
		s.logger.Warn("mirrorInbound: unexpected %s from host", in.Msg.Type())
	}
}

func (s *Session) handleLinkEvent(ev peer.LinkEvent) {
	switch {
	case ev.Recoverable():
		s.logger.Warn("handleLinkEvent: %v", ev.Err)
	case ev.State != domain.Disconnected:
		s.logger.Debug("handleLinkEvent: %s %s", ev.Peer, ev.State)
	case s.isHost:
		// A replaced link reports its end after the new one is up.
		if _, live := s.links.Link(ev.Peer); live {
			return
		}
		s.drainInbound()
		s.host.Disconnect(ev.Peer)
	case ev.Peer == s.hostPeer:
		s.drainInbound()
		s.hostLost(fmt.Sprintf("link down: %v", ev.Err))
	}
}

// drainInbound handles messages that were queued before a link went down.
func (s *Session) drainInbound() {
	for {
		select {
		case in := <-s.links.Inbound():
			s.handleInbound(in)
		default:
			return
		}
	}
}

func (s *Session) hostLost(cause string) {
	if s.hostGone {
		return
	}
	s.hostGone = true
	s.logger.Warn("hostLost: %s", cause)
	s.publish(s.mirror.EndHostLost())
	for id, reply := range s.pending {
		delete(s.pending, id)
		reply <- ErrSessionEnded
	}
	// Navigation may close this session, which waits for the event loop.
	go s.lost.Trigger()
}

// handleIntent applies a local intent. The host answers at once; a joiner forwards the
// intent and answers when the host's result arrives.
func (s *Session) handleIntent(it intent) {
	if s.isHost {
		_, err := s.host.ApplyAction(s.ctx, domain.HostParticipantID, it.action)
		it.reply <- err
		return
	}
	if s.hostGone {
		it.reply <- ErrSessionEnded
		return
	}
	id := uuid.NewString()
	s.pending[id] = it.reply
	if err := s.links.Send(s.hostPeer, wire.ActionRequest{RequestID: id, Action: it.action}); err != nil {
		delete(s.pending, id)
		it.reply <- err
	}
}

// SubmitAction sends action to the host and waits for its verdict. Refusals are
// *ActionError values matching the Err sentinels of this package.
func (s *Session) SubmitAction(ctx context.Context, action domain.Action) error {
	reply := make(chan error, 1)
	select {
	case s.intents <- intent{action: action, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

// publish stores snap as the current projection and emits the feedback it implies.
// Only the event loop, or a constructor before the loop starts, calls it.
func (s *Session) publish(snap domain.Snapshot) {
	s.view.Store(&snap)
	cur := feedback.ViewOf(snap, s.me)
	if s.hasPrev {
		s.bus.Publish(feedback.Derive(s.prev, cur)...)
	}
	s.prev, s.hasPrev = cur, true
}

// Close leaves the session. The host says goodbye to every peer, a joiner to the host.
// Close stops the event loop and the host-loss countdown, then closes all links and the
// signaling session.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.isHost {
			_ = s.links.Broadcast(wire.Goodbye{Reason: "host closed the session"})
		} else {
			_ = s.links.Send(s.hostPeer, wire.Goodbye{Reason: "left"})
		}
		if s.lost != nil {
			s.lost.Stop()
		}
		s.cancel()
		s.wg.Wait()
		err = errors.Join(s.links.Close(), s.sig.Close())
		s.bus.Close()
		s.logger.Info("Close: left session %s", s.ref)
	})
	return err
}

// Ref returns the session reference.
func (s *Session) Ref() string { return s.ref }

// JoinURL returns the shareable join link.
func (s *Session) JoinURL() string { return JoinURL(s.ref) }

// IsHost reports whether this process hosts the session.
func (s *Session) IsHost() bool { return s.isHost }

// MyParticipantID returns this peer's id within the session.
func (s *Session) MyParticipantID() domain.ParticipantID { return s.me }

// View returns the latest projection of the game for this peer.
func (s *Session) View() domain.Snapshot {
	if v := s.view.Load(); v != nil {
		return *v
	}
	return domain.Snapshot{}
}

// Status returns the lifecycle state of the game.
func (s *Session) Status() domain.Status { return s.View().Status }

// Roster returns a copy of the membership in turn order.
func (s *Session) Roster() domain.Roster { return s.View().Roster.Clone() }

// CurrentTurn returns whose turn it is, or domain.NoParticipant outside play.
func (s *Session) CurrentTurn() domain.ParticipantID { return s.View().CurrentTurn }

// Hand returns this peer's own cards.
func (s *Session) Hand() []domain.Card { return append([]domain.Card(nil), s.View().Hand...) }

// DiscardPile returns the played cards, top last.
func (s *Session) DiscardPile() []domain.Card {
	return append([]domain.Card(nil), s.View().DiscardPile...)
}

// CardCounts returns the hand size of every participant.
func (s *Session) CardCounts() map[domain.ParticipantID]int {
	counts := s.View().CardCounts
	out := make(map[domain.ParticipantID]int, len(counts))
	for id, n := range counts {
		out[id] = n
	}
	return out
}

// Feedback subscribes to the cues derived from every state change seen by this peer.
func (s *Session) Feedback() (<-chan feedback.Event, func()) {
	return s.bus.Subscribe()
}

// Countdown returns the units left before this peer leaves a session whose host is gone,
// and whether that countdown is running.
func (s *Session) Countdown() (int, bool) {
	if s.lost == nil || !s.lost.Triggered() {
		return 0, false
	}
	return s.lost.Remaining(), true
}
