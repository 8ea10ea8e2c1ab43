package replication

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/folio/internal/inbox"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:           "127.0.0.1",
		Port:           -1, // Random port
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 2048,
		JetStream:      true,
		StoreDir:       t.TempDir(),
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

// snapshots collects Watch callbacks.
type snapshots struct {
	mu  sync.Mutex
	got [][]inbox.Conversation
}

func (s *snapshots) add(convs []inbox.Conversation) {
	s.mu.Lock()
	s.got = append(s.got, convs)
	s.mu.Unlock()
}

func (s *snapshots) last() []inbox.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.got) == 0 {
		return nil
	}
	return s.got[len(s.got)-1]
}

func connectTest(t *testing.T, srv *natsserver.Server) *Repository {
	t.Helper()
	repo, err := Connect(context.Background(), Config{URL: srv.ClientURL(), Bucket: "conversations"}, 2*time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestConnect_CreatesBucket(t *testing.T) {
	srv := startTestNATSServer(t)
	repo := connectTest(t, srv)

	assert.Equal(t, inbox.ModeReplicated, repo.Mode())
	assert.Equal(t, "conversations", repo.Bucket())
	assert.True(t, repo.Connected())

	// A second client opens the existing bucket.
	other := connectTest(t, srv)
	assert.Equal(t, "conversations", other.Bucket())
}

func TestConnect_UnreachableServer(t *testing.T) {
	_, err := Connect(context.Background(), Config{URL: "nats://127.0.0.1:1", Bucket: "b"}, 500*time.Millisecond, nil)
	require.Error(t, err)
}

func TestRepository_WatchDeliversInitialAndUpdates(t *testing.T) {
	srv := startTestNATSServer(t)
	writer := connectTest(t, srv)
	reader := connectTest(t, srv)
	ctx := context.Background()

	require.NoError(t, writer.Put(ctx, inbox.Conversation{
		ID: "c1", VisitorName: "Visitor", Status: inbox.StatusUnread, UnreadCount: 1, UpdatedAt: 1,
		Messages: []inbox.Message{{ID: "m1", ConversationID: "c1", SenderType: inbox.SenderVisitor, Body: "hello"}},
	}))

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	got := &snapshots{}
	done := make(chan error, 1)
	go func() { done <- reader.Watch(watchCtx, got.add) }()

	require.Eventually(t, func() bool { return len(got.last()) == 1 }, 5*time.Second, 20*time.Millisecond)
	first := got.last()[0]
	assert.Equal(t, "c1", first.ID)
	assert.Equal(t, "hello", first.Messages[0].Body)
	// UpdatedAt comes from the server, not the writer.
	assert.Greater(t, first.UpdatedAt, int64(1))

	require.NoError(t, writer.Put(ctx, inbox.Conversation{ID: "c2", VisitorName: "Jane", Status: inbox.StatusUnread}))

	require.Eventually(t, func() bool { return len(got.last()) == 2 }, 5*time.Second, 20*time.Millisecond)
	snap := got.last()
	assert.Equal(t, "c2", snap[0].ID, "newest write first")
	assert.GreaterOrEqual(t, snap[0].UpdatedAt, snap[1].UpdatedAt)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestRepository_WatchSkipsUnreadableEntries(t *testing.T) {
	srv := startTestNATSServer(t)
	repo := connectTest(t, srv)
	ctx := context.Background()

	_, err := repo.kv.Put(ctx, "junk", []byte("not json"))
	require.NoError(t, err)
	data, err := json.Marshal(inbox.Conversation{ID: "ok"})
	require.NoError(t, err)
	_, err = repo.kv.Put(ctx, "ok", data)
	require.NoError(t, err)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	got := &snapshots{}
	go func() { _ = repo.Watch(watchCtx, got.add) }()

	require.Eventually(t, func() bool { return len(got.last()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "ok", got.last()[0].ID)

	require.NoError(t, repo.kv.Delete(ctx, "ok"))
	require.Eventually(t, func() bool {
		got.mu.Lock()
		defer got.mu.Unlock()
		return len(got.got) >= 2 && len(got.got[len(got.got)-1]) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRepository_PutAfterClose(t *testing.T) {
	srv := startTestNATSServer(t)
	repo := connectTest(t, srv)
	repo.nc.Close()

	err := repo.Put(context.Background(), inbox.Conversation{ID: "c1"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, repo.Connected())
}
