package nakama

import "cardmesh/internal/signaling"

const (
	// RpcRendezvous is the Nakama RPC id clients call to find or create a session's relay.
	RpcRendezvous = signaling.RPCRendezvous

	// MatchNameSignaling is the authoritative relay match registered with Nakama.
	MatchNameSignaling = signaling.MatchName
)

const (
	// labelPrefix namespaces relay labels so MatchList can match a session ref exactly.
	labelPrefix = "cardmesh/"

	// signalHostUserID asks a relay match which user hosts its session.
	signalHostUserID = "host_user_id"

	relayTickRate = 5
	// defaultIdleTicks is how long a relay may stay empty before it terminates. The grace
	// period covers the gap between MatchCreate and the host's own join.
	defaultIdleTicks = 30 * relayTickRate
)

func matchLabel(sessionRef string) string {
	return labelPrefix + sessionRef
}
