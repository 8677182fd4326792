package app

import (
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/google/uuid"
)

// LinkTokenService issues and verifies the bearer tokens a joiner presents when it opens
// its direct link to the host. Tokens are bound to one session and one peer identity.
type LinkTokenService struct {
	secret     []byte
	sessionRef string
	ttl        time.Duration
	now        func() time.Time
}

const defaultLinkTokenTTL = 2 * time.Minute

// NewLinkTokenService returns a service signing with secret. An empty secret generates a
// random per-process one.
func NewLinkTokenService(secret, sessionRef string) *LinkTokenService {
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
	}
	return &LinkTokenService{
		secret:     []byte(secret),
		sessionRef: sessionRef,
		ttl:        defaultLinkTokenTTL,
		now:        time.Now,
	}
}

// Issue returns a token admitting peerID to this session's link listener.
func (s *LinkTokenService) Issue(peerID string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("link token service is nil")
	}
	if peerID == "" {
		return "", fmt.Errorf("peer id is required")
	}
	now := s.now()
	claims := jwt.MapClaims{
		"iss": s.sessionRef,
		"sub": peerID,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
		"jti": uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature, expiry, session and that the token was issued to peerID.
func (s *LinkTokenService) Verify(peerID, tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return fmt.Errorf("parse link token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("link token invalid")
	}
	if iss, _ := claims["iss"].(string); iss != s.sessionRef {
		return fmt.Errorf("link token issued for session %q", iss)
	}
	if sub, _ := claims["sub"].(string); sub != peerID {
		return fmt.Errorf("link token issued to %q, presented by %q", sub, peerID)
	}
	return nil
}
