package replication

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/folio/internal/config"
	"github.com/fyrsmithlabs/folio/internal/inbox"
	"github.com/fyrsmithlabs/folio/internal/storage"
)

type managerFixture struct {
	store   *storage.MemoryStore
	svc     *inbox.Service
	manager *Manager
	logs    *observer.ObservedLogs
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	store := storage.NewMemoryStore()
	svc := inbox.NewService(inbox.NewLocalRepository(store), nil, logger, inbox.Config{})
	svc.Load(context.Background())
	t.Cleanup(func() { _ = svc.Close() })

	return &managerFixture{
		store:   store,
		svc:     svc,
		manager: NewManager(svc, store, time.Second, logger),
		logs:    logs,
	}
}

func visitorMessage(body string) inbox.AppendRequest {
	return inbox.AppendRequest{Body: body, Sender: inbox.SenderVisitor, VisitorToken: "visitor-abc123xyz"}
}

func TestManager_UnreachableServerStaysLocal(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	st, err := f.manager.Apply(ctx, `{url: "nats://127.0.0.1:1", bucket: "conversations"}`)
	require.NoError(t, err, "connection failures are reported in status")
	assert.Equal(t, inbox.ModeLocal, st.Mode)
	assert.False(t, st.Connected)
	assert.NotEmpty(t, st.LastError)
	assert.Equal(t, "nats://127.0.0.1:1", st.URL)
	assert.Equal(t, 1, f.logs.FilterMessage("replication unavailable, using local storage").Len())

	// The inbox still works against local storage.
	id, err := f.svc.AppendMessage(ctx, visitorMessage("still here"))
	require.NoError(t, err)
	conv, err := f.svc.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "still here", conv.LastMessageSnippet)
	assert.Equal(t, inbox.ModeLocal, f.svc.Mode())

	// Settings are kept so a restart retries them.
	var saved Config
	require.NoError(t, f.store.Get(ctx, storage.KeyReplicationConfig, &saved))
	assert.Equal(t, "conversations", saved.Bucket)
}

func TestManager_InvalidConfigChangesNothing(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.manager.Apply(ctx, `{url: "nats://h:4222"}`)
	require.ErrorIs(t, err, ErrInvalidConfig)

	var saved Config
	assert.ErrorIs(t, f.store.Get(ctx, storage.KeyReplicationConfig, &saved), storage.ErrNotFound)
	assert.Equal(t, inbox.ModeLocal, f.manager.Status().Mode)
}

func TestManager_ReplicatesAndDisables(t *testing.T) {
	srv := startTestNATSServer(t)
	f := newManagerFixture(t)
	ctx := context.Background()

	st, err := f.manager.Apply(ctx, fmt.Sprintf(`{url: %q, bucket: "conversations"}`, srv.ClientURL()))
	require.NoError(t, err)
	assert.Equal(t, inbox.ModeReplicated, st.Mode)
	assert.True(t, st.Connected)
	assert.Empty(t, st.LastError)
	assert.Equal(t, inbox.ModeReplicated, f.svc.Mode())

	id, err := f.svc.AppendMessage(ctx, visitorMessage("hello from the bridge"))
	require.NoError(t, err)

	// A second deployment sees the write.
	peer := connectTest(t, srv)
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	got := &snapshots{}
	go func() { _ = peer.Watch(watchCtx, got.add) }()
	require.Eventually(t, func() bool {
		snap := got.last()
		return len(snap) == 1 && snap[0].ID == id
	}, 5*time.Second, 20*time.Millisecond)

	st, err = f.manager.Apply(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, inbox.ModeLocal, st.Mode)
	assert.Empty(t, st.URL)
	assert.Equal(t, inbox.ModeLocal, f.svc.Mode())

	var saved Config
	assert.ErrorIs(t, f.store.Get(ctx, storage.KeyReplicationConfig, &saved), storage.ErrNotFound)
}

func TestManager_SnapshotsReachInbox(t *testing.T) {
	srv := startTestNATSServer(t)
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.manager.Apply(ctx, fmt.Sprintf(`{"url": %q, "bucket": "shared"}`, srv.ClientURL()))
	require.NoError(t, err)

	peer, err := Connect(ctx, Config{URL: srv.ClientURL(), Bucket: "shared"}, time.Second, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = peer.Close() })
	require.NoError(t, peer.Put(ctx, inbox.Conversation{ID: "remote", VisitorName: "Remote", Status: inbox.StatusUnread, UnreadCount: 2}))

	require.Eventually(t, func() bool {
		_, err := f.svc.Get("remote")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 2, f.svc.UnreadTotal())
}

func TestManager_StartUsesSavedThenEnv(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	// Nothing saved, no env: nothing happens.
	f.manager.Start(ctx, config.ReplicationConfig{})
	assert.Empty(t, f.manager.Status().URL)

	f.manager.Start(ctx, config.ReplicationConfig{URL: "nats://127.0.0.1:1", Bucket: "from-env"})
	assert.Equal(t, "from-env", f.manager.Status().Bucket)

	require.NoError(t, f.store.Put(ctx, storage.KeyReplicationConfig, Config{URL: "nats://127.0.0.1:1", Bucket: "saved"}))
	f.manager.Start(ctx, config.ReplicationConfig{URL: "nats://127.0.0.1:1", Bucket: "from-env"})
	assert.Equal(t, "saved", f.manager.Status().Bucket)
}

func TestManager_WatchConfigFile(t *testing.T) {
	f := newManagerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "replication.json")
	require.NoError(t, os.WriteFile(path, []byte(`{url: "nats://127.0.0.1:1", bucket: "first"}`), 0600))

	require.NoError(t, f.manager.WatchConfigFile(ctx, path))
	assert.Equal(t, "first", f.manager.Status().Bucket)

	require.NoError(t, os.WriteFile(path, []byte(`{url: "nats://127.0.0.1:1", bucket: "second"}`), 0600))
	require.Eventually(t, func() bool {
		return f.manager.Status().Bucket == "second"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestManager_StatusDuringSlowConnect(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	f.manager.connect = func(ctx context.Context, cfg Config, timeout time.Duration, logger *zap.Logger) (*Repository, error) {
		close(started)
		<-release
		return nil, fmt.Errorf("dial %s: connection refused", cfg.URL)
	}

	done := make(chan Status, 1)
	go func() {
		st, _ := f.manager.Apply(ctx, `{url: "nats://10.0.0.9:4222", bucket: "slow"}`)
		done <- st
	}()
	<-started

	statusCh := make(chan Status, 1)
	go func() { statusCh <- f.manager.Status() }()
	select {
	case st := <-statusCh:
		assert.True(t, st.Connecting)
		assert.Equal(t, "slow", st.Bucket)
		assert.Equal(t, inbox.ModeLocal, st.Mode)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Status blocked while a connect was in flight")
	}

	close(release)
	st := <-done
	assert.False(t, st.Connecting)
	assert.Contains(t, st.LastError, "connection refused")
}

func TestManager_SupersededConnectIsDiscarded(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	f.manager.connect = func(ctx context.Context, cfg Config, timeout time.Duration, logger *zap.Logger) (*Repository, error) {
		close(started)
		<-release
		return nil, fmt.Errorf("dial %s: timeout", cfg.URL)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.manager.Apply(ctx, `{url: "nats://10.0.0.9:4222", bucket: "old"}`)
	}()
	<-started

	_, err := f.manager.Disable(ctx)
	require.NoError(t, err)
	close(release)
	<-done

	st := f.manager.Status()
	assert.Empty(t, st.URL, "the disable that came later wins")
	assert.Empty(t, st.LastError)
	assert.False(t, st.Connecting)
	assert.Equal(t, 1, f.logs.FilterMessage("discarding superseded replication connect").Len())
}

func TestManager_UnchangedConfigDoesNotReconnect(t *testing.T) {
	srv := startTestNATSServer(t)
	f := newManagerFixture(t)
	ctx := context.Background()

	var calls int
	f.manager.connect = func(ctx context.Context, cfg Config, timeout time.Duration, logger *zap.Logger) (*Repository, error) {
		calls++
		return Connect(ctx, cfg, timeout, logger)
	}

	raw := fmt.Sprintf(`{url: %q, bucket: "conversations"}`, srv.ClientURL())
	st, err := f.manager.Apply(ctx, raw)
	require.NoError(t, err)
	require.True(t, st.Connected)

	st, err = f.manager.Apply(ctx, raw)
	require.NoError(t, err)
	assert.True(t, st.Connected)
	assert.Equal(t, 1, calls, "same settings keep the live connection")

	_, err = f.manager.Apply(ctx, fmt.Sprintf(`{url: %q, bucket: "other"}`, srv.ClientURL()))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
