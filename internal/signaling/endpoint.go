package signaling

import (
	"errors"
	"fmt"
	"net/url"

	"cardmesh/internal/config"
)

// Endpoint is a parsed rendezvous server location. The server key travels as the
// userinfo of the URL, e.g. http://defaultkey@127.0.0.1:7350.
type Endpoint struct {
	Scheme    string
	Host      string
	ServerKey string
}

const endpointField = "CARDMESH_SIGNALING_URL"

// ParseEndpoint validates raw. There is no default: every failure is a *config.ConfigError.
func ParseEndpoint(raw string) (Endpoint, error) {
	if raw == "" {
		return Endpoint{}, &config.ConfigError{Field: endpointField, Err: errors.New("signaling endpoint is not configured")}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, &config.ConfigError{Field: endpointField, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Endpoint{}, &config.ConfigError{Field: endpointField, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return Endpoint{}, &config.ConfigError{Field: endpointField, Err: errors.New("missing host")}
	}
	key := u.User.Username()
	if key == "" {
		return Endpoint{}, &config.ConfigError{Field: endpointField, Err: errors.New("missing server key")}
	}
	return Endpoint{Scheme: u.Scheme, Host: u.Host, ServerKey: key}, nil
}

func (e Endpoint) authURL() string {
	u := url.URL{Scheme: e.Scheme, Host: e.Host, Path: "/v2/account/authenticate/device"}
	u.RawQuery = url.Values{"create": {"true"}}.Encode()
	return u.String()
}

func (e Endpoint) socketURL(token string) string {
	scheme := "ws"
	if e.Scheme == "https" {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: e.Host, Path: "/ws"}
	u.RawQuery = url.Values{
		"lang":   {"en"},
		"status": {"true"},
		"format": {"protobuf"},
		"token":  {token},
	}.Encode()
	return u.String()
}
