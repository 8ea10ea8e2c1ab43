package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/folio/internal/ids"
	"github.com/fyrsmithlabs/folio/internal/storage"
)

// Sessions issues visitor tokens and keeps the server's own default token,
// used for appends that arrive without one.
type Sessions struct {
	store storage.Store

	mu       sync.Mutex
	fallback string
}

// NewSessions creates a Sessions backed by store.
func NewSessions(store storage.Store) *Sessions {
	return &Sessions{store: store}
}

// Resolve returns token when it is well formed and a new token otherwise.
// The second result is true when a new token was issued.
func (s *Sessions) Resolve(token string) (string, bool) {
	if ids.IsVisitorToken(token) {
		return token, false
	}
	return ids.NewVisitorToken(), true
}

// DefaultToken returns the persisted default token, creating it on first use.
func (s *Sessions) DefaultToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fallback != "" {
		return s.fallback, nil
	}

	var token string
	err := s.store.Get(ctx, storage.KeyVisitorToken, &token)
	if err == nil && ids.IsVisitorToken(token) {
		s.fallback = token
		return token, nil
	}
	// Missing, unreadable or malformed values are all replaced.

	token = ids.NewVisitorToken()
	if err := s.store.Put(ctx, storage.KeyVisitorToken, token); err != nil {
		return "", fmt.Errorf("persist visitor token: %w", err)
	}
	s.fallback = token
	return token, nil
}
