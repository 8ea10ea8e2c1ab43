package chatbridge

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/folio/internal/ids"
	"github.com/fyrsmithlabs/folio/internal/storage"
)

// ErrNoVisitorToken is returned when a chat request carries no usable
// visitor token.
var ErrNoVisitorToken = errors.New("visitor token required")

// Session is the live chat of one visitor token: its bridge and the relay
// its browser shim talks to.
type Session struct {
	Bridge *Bridge
	Widget *RelayWidget
}

// Hub keeps one Session per visitor token so that histories, identities
// and widget commands never cross between browsers.
type Hub struct {
	store  storage.Store
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHub creates a Hub with no sessions.
func NewHub(store storage.Store, cfg Config, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{store: store, cfg: cfg, logger: logger, sessions: make(map[string]*Session)}
}

// Session returns the session for token, restoring its cached history the
// first time the token is seen by this process.
func (h *Hub) Session(ctx context.Context, token string) (*Session, error) {
	if !ids.IsVisitorToken(token) {
		return nil, ErrNoVisitorToken
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[token]; ok {
		return s, nil
	}
	w := NewRelayWidget()
	b := NewBridge(token, w, h.store, h.cfg, h.logger)
	b.Load(ctx)
	s := &Session{Bridge: b, Widget: w}
	h.sessions[token] = s
	return s, nil
}

// Len reports how many sessions are live.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close stops every session's typing timer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.sessions {
		s.Bridge.Close()
	}
}
