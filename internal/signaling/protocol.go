// Package signaling is the rendezvous client: it finds the other participants of a session
// through a Nakama server and exchanges the descriptors needed to open direct links.
package signaling

import "cardmesh/internal/wire"

const (
	// RPCRendezvous finds or creates the relay match for a session reference.
	RPCRendezvous = "cardmesh_rendezvous"
	// MatchName is the authoritative relay match registered on the server.
	MatchName = "cardmesh_signaling"
)

// Relay op codes. The server forwards each to the presence named in the payload's To.
const (
	OpOffer     int64 = 1
	OpAnswer    int64 = 2
	OpCandidate int64 = 3
)

// RendezvousRequest is the RPC payload.
type RendezvousRequest struct {
	SessionRef string `json:"session_ref"`
	Host       bool   `json:"host"`
}

// RendezvousResponse names the relay match and the user that hosts the session.
type RendezvousResponse struct {
	MatchID    string `json:"match_id"`
	HostUserID string `json:"host_user_id"`
}

// RelayPayload is the match data body of every relayed op code.
type RelayPayload struct {
	To         string           `json:"to"`
	Nonce      string           `json:"nonce,omitempty"`
	Descriptor *wire.Descriptor `json:"descriptor,omitempty"`
	URL        string           `json:"url,omitempty"`
}
