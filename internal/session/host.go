package session

import (
	"context"

	"cardmesh/internal/config"
	"cardmesh/internal/domain"
	"cardmesh/internal/platform/logging"
	"cardmesh/internal/platform/otel"
	"cardmesh/internal/ports"
	"cardmesh/internal/wire"

	"github.com/heroiclabs/nakama-common/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Sender delivers a message to one peer. *peer.Manager implements it.
type Sender interface {
	Send(peerID string, msg wire.Message) error
}

// Host owns the authoritative Game. It is not safe for concurrent use: the session's
// event loop is its only caller, which serialises every mutation in arrival order.
type Host struct {
	game   *domain.Game
	rules  ports.RuleEngine
	cfg    config.GameConfig
	sender Sender
	logger runtime.Logger
	tracer trace.Tracer

	// local receives the host's own projection after every commit.
	local func(domain.Snapshot)
}

// NewHost boots a lobby with selfPeerID as the sole, host member.
func NewHost(selfPeerID, displayName string, rules ports.RuleEngine, cfg config.GameConfig, sender Sender, logger runtime.Logger) *Host {
	if logger == nil {
		logger = logging.Noop()
	}
	return &Host{
		game:   domain.NewGame(selfPeerID, displayName),
		rules:  rules,
		cfg:    cfg,
		sender: sender,
		logger: logger,
		tracer: otel.SessionTracer(),
		local:  func(domain.Snapshot) {},
	}
}

// Game returns the current authoritative state. Callers must not modify it.
func (h *Host) Game() *domain.Game { return h.game }

// Snapshot returns the current projection for participant id.
func (h *Host) Snapshot(id domain.ParticipantID) domain.Snapshot {
	return h.game.SnapshotFor(id)
}

// Join runs admission for peerID. An admitted joiner receives JoinAccepted and every
// other connected peer the updated snapshot; a rejected one receives JoinRejected only.
func (h *Host) Join(ctx context.Context, peerID, displayName string) Decision {
	_, span := h.tracer.Start(ctx, "host.join", trace.WithAttributes(attribute.String("peer", peerID)))
	defer span.End()

	d := Admit(h.game, peerID, h.cfg.MaxPlayers)
	if !d.Admitted {
		h.logger.Info("Join: rejecting %s: %s", peerID, d.Reason)
		span.SetAttributes(attribute.String("rejected", d.Reason))
		if err := h.sender.Send(peerID, wire.JoinRejected{Reason: d.Reason}); err != nil {
			h.logger.Warn("Join: failed to send rejection to %s: %v", peerID, err)
		}
		return d
	}

	h.commit(applyAdmission(h.game, peerID, displayName, d), peerID)
	h.logger.Info("Join: admitted %s as %d (rejoin=%v)", peerID, d.ParticipantID, d.Rejoin)
	span.SetAttributes(attribute.Int("participant", int(d.ParticipantID)))

	accepted := wire.JoinAccepted{ParticipantID: d.ParticipantID, Snapshot: h.game.SnapshotFor(d.ParticipantID)}
	if err := h.sender.Send(peerID, accepted); err != nil {
		h.logger.Warn("Join: failed to send acceptance to %s: %v", peerID, err)
	}
	return d
}

// ApplyAction validates and applies action from participant. On success every connected
// peer receives its own snapshot and the originator's is returned. On failure nothing is
// broadcast and the error is an *ActionError.
func (h *Host) ApplyAction(ctx context.Context, from domain.ParticipantID, action domain.Action) (domain.Snapshot, error) {
	_, span := h.tracer.Start(ctx, "host.apply_action", trace.WithAttributes(
		attribute.Int("participant", int(from)),
		attribute.String("action", string(action.Kind)),
	))
	defer span.End()

	next, err := h.validate(from, action)
	if err != nil {
		h.logger.Debug("ApplyAction: %d %s refused: %v", from, action.Kind, err)
		otel.Fail(span, err)
		return domain.Snapshot{}, err
	}
	h.commit(next, "")
	span.SetAttributes(attribute.Int64("seq", int64(h.game.Seq)))
	return h.game.SnapshotFor(from), nil
}

func (h *Host) validate(from domain.ParticipantID, action domain.Action) (*domain.Game, error) {
	game := h.game
	if game.Status == domain.StatusEnded {
		return nil, ErrSessionEnded
	}
	member, ok := game.Roster.Get(from)
	if !ok {
		return nil, ErrNotAdmitted
	}

	switch {
	case action.Kind == domain.ActionStart:
		if !member.IsHost {
			return nil, ErrNotHost
		}
		if game.Status == domain.StatusLobby && game.Roster.ConnectedCount() < h.cfg.MinPlayers {
			return nil, ErrTooFewPlayers
		}
	case action.Kind.IsTurnAction():
		if game.CurrentTurn != from {
			return nil, ErrNotYourTurn
		}
	}

	next, err := h.rules.Validate(game, from, action)
	if err != nil {
		return nil, rejected(err)
	}
	return next, nil
}

// Disconnect marks the member behind peerID as disconnected. During play it ends the
// game when too few members remain connected, or passes the turn on if it was theirs.
func (h *Host) Disconnect(peerID string) bool {
	member, ok := h.game.Roster.ByPeer(peerID)
	if !ok || member.IsHost || member.Connection == domain.Disconnected {
		return false
	}

	next := h.game.Clone()
	next.Roster.SetConnection(member.ID, domain.Disconnected)
	if next.Status == domain.StatusPlaying {
		switch {
		case next.Roster.ConnectedCount() < h.cfg.MinPlayers:
			next.End(domain.EndTypeInsufficientPlayers, domain.NoParticipant)
			h.logger.Info("Disconnect: %d left, ending game with insufficient players", member.ID)
		case next.CurrentTurn == member.ID:
			next.CurrentTurn = h.rules.TurnOrderNext(next)
		}
	}
	h.commit(next, "")
	h.logger.Info("Disconnect: %s (%d) marked disconnected", peerID, member.ID)
	return true
}

// commit replaces the state, bumps Seq and sends every connected peer except skipPeer
// its own snapshot.
func (h *Host) commit(next *domain.Game, skipPeer string) {
	next.Seq = h.game.Seq + 1
	h.game = next

	for _, m := range next.Roster {
		if m.IsHost || m.Connection != domain.Connected || m.PeerID == skipPeer {
			continue
		}
		if err := h.sender.Send(m.PeerID, wire.Snapshot{State: next.SnapshotFor(m.ID)}); err != nil {
			h.logger.Warn("commit: snapshot %d to %s failed: %v", next.Seq, m.PeerID, err)
		}
	}
	h.local(next.SnapshotFor(domain.HostParticipantID))
}
