package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	"cardmesh/internal/signaling"

	"github.com/heroiclabs/nakama-common/runtime"
)

// RelayState is the runtime state of one session's signaling relay. The relay never
// sees game state; it only forwards offers, answers and candidates between presences.
type RelayState struct {
	SessionRef string                      `json:"session_ref"`
	HostUserID string                      `json:"host_user_id"`
	Presences  map[string]runtime.Presence `json:"-"` // Map UserId -> Presence for targeted messaging
	IdleTicks  int                         `json:"idle_ticks"`
	MaxIdle    int                         `json:"max_idle"`
}

// NewMatch is the factory function registered with Nakama.
func NewMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
	return &matchHandler{}, nil
}

type matchHandler struct{}

// MatchInit is called when the relay is created by the rendezvous RPC.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	sessionRef, _ := params["session_ref"].(string)
	hostUserID, _ := params["host_user_id"].(string)
	logger.Debug("MatchInit: Initializing relay for session %s.", sessionRef)

	state := &RelayState{
		SessionRef: sessionRef,
		HostUserID: hostUserID,
		Presences:  make(map[string]runtime.Presence),
		MaxIdle:    defaultIdleTicks,
	}

	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok {
		if val, ok := env["cardmesh_relay_idle_sec"]; ok {
			if i, err := strconv.Atoi(val); err == nil && i > 0 {
				state.MaxIdle = i * relayTickRate
			}
		}
	}

	return state, relayTickRate, matchLabel(sessionRef)
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	relayState, ok := state.(*RelayState)
	if !ok {
		return state, false, "state not found"
	}
	// Admission is the host's decision over the direct link; the relay only refuses a
	// second socket for a user that is already present.
	if existing, ok := relayState.Presences[presence.GetUserId()]; ok && existing.GetSessionId() != presence.GetSessionId() {
		return relayState, false, "already connected"
	}
	return relayState, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	relayState, ok := state.(*RelayState)
	if !ok {
		return state
	}
	for _, p := range presences {
		relayState.Presences[p.GetUserId()] = p
		logger.Info("MatchJoin: %s joined relay for session %s", p.GetUserId(), relayState.SessionRef)
	}
	relayState.IdleTicks = 0
	return relayState
}

func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	relayState, ok := state.(*RelayState)
	if !ok {
		return state
	}
	for _, p := range presences {
		delete(relayState.Presences, p.GetUserId())
		logger.Info("MatchLeave: %s left relay for session %s", p.GetUserId(), relayState.SessionRef)
	}
	return relayState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	relayState, ok := state.(*RelayState)
	if !ok {
		return state
	}

	for _, msg := range messages {
		switch msg.GetOpCode() {
		case signaling.OpOffer, signaling.OpAnswer, signaling.OpCandidate:
			mh.relay(relayState, dispatcher, logger, msg)
		default:
			logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		}
	}

	if len(relayState.Presences) == 0 {
		relayState.IdleTicks++
		if relayState.IdleTicks >= relayState.MaxIdle {
			logger.Info("MatchLoop: Relay for session %s empty, terminating.", relayState.SessionRef)
			return nil
		}
	}
	return relayState
}

// relay forwards msg to the single presence named in its payload.
func (mh *matchHandler) relay(state *RelayState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	var payload signaling.RelayPayload
	if err := json.Unmarshal(msg.GetData(), &payload); err != nil {
		logger.Warn("relay: Dropping op %d from %s: %v", msg.GetOpCode(), msg.GetUserId(), err)
		return
	}
	target, ok := state.Presences[payload.To]
	if !ok {
		logger.Warn("relay: Dropping op %d from %s: %q not present", msg.GetOpCode(), msg.GetUserId(), payload.To)
		return
	}
	if err := dispatcher.BroadcastMessage(msg.GetOpCode(), msg.GetData(), []runtime.Presence{target}, msg, true); err != nil {
		logger.Error("relay: Failed to forward op %d to %s: %v", msg.GetOpCode(), payload.To, err)
	}
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Debug("MatchTerminate: Relay terminated with grace %d", graceSeconds)
	return state
}

// MatchSignal answers host lookups from the rendezvous RPC.
func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	relayState, ok := state.(*RelayState)
	if !ok {
		return state, ""
	}
	if data == signalHostUserID {
		return relayState, relayState.HostUserID
	}
	return relayState, ""
}
