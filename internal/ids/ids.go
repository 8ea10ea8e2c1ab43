// Package ids generates identifiers for conversations, messages, profile
// entries and visitor sessions.
package ids

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// New returns a time-ordered UUIDv7 string. It falls back to a random v4
// if the v7 clock source fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

const (
	visitorPrefix = "visitor-"
	visitorLen    = 9
	base36        = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// NewVisitorToken returns "visitor-" followed by nine base-36 characters.
func NewVisitorToken() string {
	var b strings.Builder
	b.WriteString(visitorPrefix)
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < visitorLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms; keep the
			// token well-formed regardless.
			return visitorPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:visitorLen]
		}
		b.WriteByte(base36[n.Int64()])
	}
	return b.String()
}

// IsVisitorToken reports whether s has the shape NewVisitorToken produces.
func IsVisitorToken(s string) bool {
	rest, ok := strings.CutPrefix(s, visitorPrefix)
	if !ok || len(rest) != visitorLen {
		return false
	}
	for i := 0; i < len(rest); i++ {
		if strings.IndexByte(base36, rest[i]) < 0 {
			return false
		}
	}
	return true
}
