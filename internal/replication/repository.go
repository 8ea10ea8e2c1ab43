package replication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fyrsmithlabs/folio/internal/inbox"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by writes after the connection was closed.
var ErrNotConnected = errors.New("replication not connected")

// Repository stores each conversation as one entry in a JetStream
// key/value bucket keyed by conversation id.
type Repository struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	bucket string
	logger *zap.Logger
}

var (
	_ inbox.Repository     = (*Repository)(nil)
	_ inbox.SnapshotSource = (*Repository)(nil)
)

// Connect dials the server in cfg and opens (or creates) the bucket.
func Connect(ctx context.Context, cfg Config, timeout time.Duration, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	name := cfg.Name
	if name == "" {
		name = "folio"
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(timeout),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("replication disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("replication reconnected", zap.String("url", c.ConnectedUrlRedacted()))
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	openCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	kv, err := js.KeyValue(openCtx, cfg.Bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(openCtx, jetstream.KeyValueConfig{
			Bucket:      cfg.Bucket,
			Description: "folio conversations",
			History:     1,
		})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open bucket %q: %w", cfg.Bucket, err)
	}

	logger.Info("replication connected",
		zap.String("url", nc.ConnectedUrlRedacted()),
		zap.String("bucket", cfg.Bucket))

	return &Repository{nc: nc, kv: kv, bucket: cfg.Bucket, logger: logger}, nil
}

// Mode implements inbox.Repository.
func (r *Repository) Mode() inbox.Mode { return inbox.ModeReplicated }

// Bucket returns the bucket name.
func (r *Repository) Bucket() string { return r.bucket }

// Connected reports whether the underlying connection is up.
func (r *Repository) Connected() bool {
	return r.nc != nil && r.nc.IsConnected()
}

// Put writes the full conversation document.
func (r *Repository) Put(ctx context.Context, conv inbox.Conversation) error {
	if r.nc == nil || r.nc.IsClosed() {
		return ErrNotConnected
	}
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	if _, err := r.kv.Put(ctx, conv.ID, data); err != nil {
		return fmt.Errorf("put conversation %s: %w", conv.ID, err)
	}
	return nil
}

// Watch streams the bucket and calls fn with the full collection, newest
// first, once the initial values are loaded and after every change.
// UpdatedAt is taken from the server's write time. Watch returns when ctx
// is done.
func (r *Repository) Watch(ctx context.Context, fn func([]inbox.Conversation)) error {
	w, err := r.kv.WatchAll(ctx)
	if err != nil {
		return fmt.Errorf("watch bucket %q: %w", r.bucket, err)
	}
	defer func() { _ = w.Stop() }()

	byID := make(map[string]inbox.Conversation)
	initialized := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-w.Updates():
			if !ok {
				return nil
			}
			if entry == nil {
				initialized = true
				fn(snapshot(byID))
				continue
			}
			if !r.apply(byID, entry) {
				continue
			}
			if initialized {
				fn(snapshot(byID))
			}
		}
	}
}

// apply folds one entry into byID and reports whether anything changed.
func (r *Repository) apply(byID map[string]inbox.Conversation, entry jetstream.KeyValueEntry) bool {
	switch entry.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		if _, ok := byID[entry.Key()]; !ok {
			return false
		}
		delete(byID, entry.Key())
		return true
	}

	var conv inbox.Conversation
	if err := json.Unmarshal(entry.Value(), &conv); err != nil {
		r.logger.Warn("skipping unreadable replicated conversation",
			zap.String("key", entry.Key()), zap.Error(err))
		return false
	}
	if conv.ID == "" {
		conv.ID = entry.Key()
	}
	if created := entry.Created(); !created.IsZero() {
		conv.UpdatedAt = created.UnixMilli()
	}
	byID[conv.ID] = conv
	return true
}

func snapshot(byID map[string]inbox.Conversation) []inbox.Conversation {
	out := make([]inbox.Conversation, 0, len(byID))
	for _, c := range byID {
		out = append(out, c.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Close drains the connection.
func (r *Repository) Close() error {
	if r.nc == nil || r.nc.IsClosed() {
		return nil
	}
	if err := r.nc.Drain(); err != nil {
		r.nc.Close()
		return err
	}
	return nil
}
