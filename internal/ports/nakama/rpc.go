package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"cardmesh/internal/signaling"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Nakama RPC error codes (gRPC status codes).
const (
	codeInvalidArgument = 3
	codeNotFound        = 5
	codeAlreadyExists   = 6
	codeInternal        = 13
	codeUnauthenticated = 16
)

// RegisterRPCs registers Nakama RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer) error {
	return initializer.RegisterRpc(RpcRendezvous, RpcRendezvousHandler)
}

// RpcRendezvousHandler resolves a session reference to its relay match.
//
// Payload: {"session_ref": "...", "host": bool}. The host creates the relay on first call
// and gets the same match back on repeated calls; joiners get NOT_FOUND for unknown refs.
// Returns: {"match_id": "...", "host_user_id": "..."}.
func RpcRendezvousHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userId, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userId == "" {
		return "", runtime.NewError("authentication required", codeUnauthenticated)
	}

	var req signaling.RendezvousRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid payload", codeInvalidArgument)
	}
	if req.SessionRef == "" {
		return "", runtime.NewError("session_ref is required", codeInvalidArgument)
	}

	matches, err := nk.MatchList(ctx, 1, true, matchLabel(req.SessionRef), nil, nil, "")
	if err != nil {
		logger.Error("RpcRendezvous [User:%s]: Failed to list matches: %v", userId, err)
		return "", runtime.NewError("match lookup failed", codeInternal)
	}

	if len(matches) > 0 {
		matchId := matches[0].MatchId
		hostUserId, err := nk.MatchSignal(ctx, matchId, signalHostUserID)
		if err != nil {
			logger.Error("RpcRendezvous [User:%s]: Failed to signal match %s: %v", userId, matchId, err)
			return "", runtime.NewError("match lookup failed", codeInternal)
		}
		if req.Host && hostUserId != userId {
			logger.Warn("RpcRendezvous [User:%s]: Session %s already hosted by %s", userId, req.SessionRef, hostUserId)
			return "", runtime.NewError("session already hosted", codeAlreadyExists)
		}
		logger.Info("RpcRendezvous [User:%s]: Found relay %s for session %s", userId, matchId, req.SessionRef)
		return encodeRendezvous(matchId, hostUserId)
	}

	if !req.Host {
		return "", runtime.NewError("session not found", codeNotFound)
	}

	matchId, err := nk.MatchCreate(ctx, MatchNameSignaling, map[string]interface{}{
		"session_ref":  req.SessionRef,
		"host_user_id": userId,
	})
	if err != nil {
		logger.Error("RpcRendezvous [User:%s]: Failed to create relay: %v", userId, err)
		return "", runtime.NewError("match create failed", codeInternal)
	}

	logger.Info("RpcRendezvous [User:%s]: Created relay %s for session %s", userId, matchId, req.SessionRef)
	return encodeRendezvous(matchId, userId)
}

func encodeRendezvous(matchId, hostUserId string) (string, error) {
	b, err := json.Marshal(signaling.RendezvousResponse{MatchID: matchId, HostUserID: hostUserId})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
