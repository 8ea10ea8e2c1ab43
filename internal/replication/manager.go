package replication

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fyrsmithlabs/folio/internal/config"
	"github.com/fyrsmithlabs/folio/internal/inbox"
	"github.com/fyrsmithlabs/folio/internal/storage"
	"go.uber.org/zap"
)

// RepositorySetter receives the repository that should be authoritative.
// inbox.Service implements it.
type RepositorySetter interface {
	SetRepository(repo inbox.Repository)
}

// Status describes the replication state shown on the admin page.
type Status struct {
	Mode      inbox.Mode `json:"mode"`
	Connected bool       `json:"connected"`
	URL       string     `json:"url,omitempty"`
	Bucket    string     `json:"bucket,omitempty"`
	// Connecting is set while a connection attempt is in flight.
	Connecting bool   `json:"connecting,omitempty"`
	LastError  string `json:"lastError,omitempty"`
}

// Manager owns the replication lifecycle: it persists the owner's pasted
// settings, connects, and hands the result to the inbox. Connection
// failures leave the inbox on local storage.
type Manager struct {
	target         RepositorySetter
	store          storage.Store
	connectTimeout time.Duration
	logger         *zap.Logger

	// connect is swapped in tests.
	connect func(ctx context.Context, cfg Config, timeout time.Duration, logger *zap.Logger) (*Repository, error)

	mu      sync.Mutex
	cfg     *Config
	repo    *Repository
	lastErr error
	// seq counts activations and disables; a connect that finishes after a
	// newer one started is discarded.
	seq        uint64
	connecting bool
}

// NewManager creates a manager that drives target.
func NewManager(target RepositorySetter, store storage.Store, connectTimeout time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		target:         target,
		store:          store,
		connectTimeout: connectTimeout,
		logger:         logger,
		connect:        Connect,
	}
}

// Start connects using the saved settings, falling back to env. It never
// fails: with nothing configured or an unreachable server the inbox stays
// local.
func (m *Manager) Start(ctx context.Context, env config.ReplicationConfig) {
	var cfg Config
	err := m.store.Get(ctx, storage.KeyReplicationConfig, &cfg)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		if env.URL == "" {
			return
		}
		cfg = Config{URL: env.URL, Bucket: env.Bucket, Token: env.Token.Value()}
	default:
		m.logger.Warn("failed to read saved replication config", zap.Error(err))
		return
	}

	if err := cfg.Validate(); err != nil {
		m.logger.Warn("ignoring invalid replication config", zap.Error(err))
		return
	}
	m.activate(ctx, &cfg)
}

// Apply parses raw, saves it and switches the inbox over. Blank input
// disables replication. A parse error is returned with nothing changed;
// a connection failure is reported in the returned Status.
func (m *Manager) Apply(ctx context.Context, raw string) (Status, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return m.Status(), err
	}
	if cfg == nil {
		return m.Disable(ctx)
	}
	if m.isActive(cfg) {
		return m.Status(), nil
	}
	if err := m.store.Put(ctx, storage.KeyReplicationConfig, cfg); err != nil {
		return m.Status(), err
	}
	m.activate(ctx, cfg)
	return m.Status(), nil
}

// isActive reports whether cfg is already the live, connected config.
func (m *Manager) isActive(cfg *Config) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg != nil && *m.cfg == *cfg && m.repo != nil && m.repo.Connected()
}

// activate connects without holding mu so Status stays responsive for the
// whole connect timeout.
func (m *Manager) activate(ctx context.Context, cfg *Config) {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.cfg = cfg
	m.connecting = true
	m.mu.Unlock()

	repo, err := m.connect(ctx, *cfg, m.connectTimeout, m.logger)

	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.seq {
		if repo != nil {
			_ = repo.Close()
		}
		m.logger.Debug("discarding superseded replication connect", zap.String("url", cfg.URL))
		return
	}
	m.connecting = false
	if err != nil {
		m.lastErr = err
		m.repo = nil
		m.logger.Warn("replication unavailable, using local storage",
			zap.String("url", cfg.URL), zap.Error(err))
		m.target.SetRepository(nil)
		return
	}
	m.lastErr = nil
	m.repo = repo
	m.target.SetRepository(repo)
}

// Disable forgets the saved settings and returns the inbox to local storage.
func (m *Manager) Disable(ctx context.Context) (Status, error) {
	if err := m.store.Delete(ctx, storage.KeyReplicationConfig); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return m.Status(), err
	}

	m.mu.Lock()
	m.seq++
	m.cfg = nil
	m.repo = nil
	m.lastErr = nil
	m.connecting = false
	m.target.SetRepository(nil)
	m.mu.Unlock()

	m.logger.Info("replication disabled")
	return m.Status(), nil
}

// Status returns the current replication state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{Mode: inbox.ModeLocal, Connecting: m.connecting}
	if m.cfg != nil {
		st.URL = m.cfg.URL
		st.Bucket = m.cfg.Bucket
	}
	if m.repo != nil {
		st.Mode = inbox.ModeReplicated
		st.Connected = m.repo.Connected()
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}
