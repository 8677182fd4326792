package session

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// JoinURLPrefix is prepended to a session reference to make it shareable.
const JoinURLPrefix = "cardmesh://join/"

// NewSessionRef mints a fresh session reference.
func NewSessionRef() string {
	return uuid.NewString()
}

// JoinURL returns the shareable form of ref.
func JoinURL(ref string) string {
	return JoinURLPrefix + ref
}

// ParseRef accepts either a bare session reference or a join URL.
func ParseRef(s string) (string, error) {
	ref := strings.TrimPrefix(strings.TrimSpace(s), JoinURLPrefix)
	id, err := uuid.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid session reference %q: %w", s, err)
	}
	return id.String(), nil
}
