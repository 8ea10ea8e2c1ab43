package chatbridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/folio/internal/inbox"
	"github.com/fyrsmithlabs/folio/internal/storage"
)

const testToken = "visitor-0a1b2c3d4"

type bridgeFixture struct {
	widget *RelayWidget
	store  *storage.MemoryStore
	bridge *Bridge
	clock  time.Time
}

func newBridgeFixture(t *testing.T, cfg Config) *bridgeFixture {
	t.Helper()
	f := &bridgeFixture{
		widget: NewRelayWidget(),
		store:  storage.NewMemoryStore(),
		clock:  time.UnixMilli(1_700_000_000_000),
	}
	f.bridge = NewBridge(testToken, f.widget, f.store, cfg, zaptest.NewLogger(t))
	f.bridge.now = func() time.Time { return f.clock }
	t.Cleanup(f.bridge.Close)
	return f
}

func (f *bridgeFixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func drain(ch <-chan Command) []Command {
	var out []Command
	for {
		select {
		case c := <-ch:
			out = append(out, c)
		default:
			return out
		}
	}
}

func TestBridge_ReceivedAndSentEvents(t *testing.T) {
	f := newBridgeFixture(t, Config{})

	require.NoError(t, f.widget.Dispatch(Event{Type: EventMessageReceived, Content: "Hello, how can I help?"}))
	f.advance(time.Second)
	require.NoError(t, f.widget.Dispatch(Event{Type: EventMessageSent, Content: "Are you hiring?"}))

	st := f.bridge.State()
	require.Len(t, st.Messages, 2)
	assert.Equal(t, inbox.SenderOwner, st.Messages[0].SenderType)
	assert.Equal(t, inbox.SenderVisitor, st.Messages[1].SenderType)
	assert.Equal(t, LiveConversationID, st.Messages[1].ConversationID)
	assert.True(t, st.Started)
}

func TestBridge_DedupWindow(t *testing.T) {
	f := newBridgeFixture(t, Config{DedupWindow: 5 * time.Second})

	require.NoError(t, f.widget.Dispatch(Event{Type: EventMessageReceived, Content: "ping"}))
	f.advance(2 * time.Second)
	require.NoError(t, f.widget.Dispatch(Event{Type: EventMessageReceived, Content: "ping"}))
	assert.Len(t, f.bridge.State().Messages, 1, "echo inside window dropped")

	// Same text from the other side is a different message.
	require.NoError(t, f.widget.Dispatch(Event{Type: EventMessageSent, Content: "ping"}))
	assert.Len(t, f.bridge.State().Messages, 2)

	f.advance(6 * time.Second)
	require.NoError(t, f.widget.Dispatch(Event{Type: EventMessageReceived, Content: "ping"}))
	assert.Len(t, f.bridge.State().Messages, 3, "outside window recorded")
}

func TestBridge_SendIsOptimisticAndEchoSuppressed(t *testing.T) {
	f := newBridgeFixture(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmds := f.widget.Commands(ctx)

	msg, err := f.bridge.Send(ctx, "Hi there")
	require.NoError(t, err)
	assert.Equal(t, inbox.SenderVisitor, msg.SenderType)
	assert.Len(t, f.bridge.State().Messages, 1)

	got := drain(cmds)
	require.Len(t, got, 1)
	assert.Equal(t, Command{Kind: "do", Action: "message:send", Args: []any{"text", "Hi there"}}, got[0])

	f.advance(500 * time.Millisecond)
	require.NoError(t, f.widget.Dispatch(Event{Type: EventMessageSent, Content: "Hi there"}))
	assert.Len(t, f.bridge.State().Messages, 1)

	_, err = f.bridge.Send(ctx, "   ")
	assert.ErrorIs(t, err, inbox.ErrEmptyMessage)
}

func TestBridge_TypingAutoClears(t *testing.T) {
	f := newBridgeFixture(t, Config{TypingTimeout: 30 * time.Millisecond})

	require.NoError(t, f.widget.Dispatch(Event{Type: EventTyping}))
	assert.True(t, f.bridge.State().Typing)
	require.Eventually(t, func() bool { return !f.bridge.State().Typing }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.widget.Dispatch(Event{Type: EventTyping}))
	require.NoError(t, f.widget.Dispatch(Event{Type: EventMessageReceived, Content: "done typing"}))
	assert.False(t, f.bridge.State().Typing, "incoming message clears typing")
}

func TestBridge_StaleTypingTimerKeepsNewerFlag(t *testing.T) {
	f := newBridgeFixture(t, Config{TypingTimeout: 20 * time.Millisecond})

	require.NoError(t, f.widget.Dispatch(Event{Type: EventTyping}))

	// Let the first timer fire while mu is held so its callback is parked on
	// the lock, then start a newer, longer typing period.
	f.bridge.mu.Lock()
	time.Sleep(60 * time.Millisecond)
	f.bridge.cfg.TypingTimeout = time.Hour
	f.bridge.markTypingLocked()
	f.bridge.mu.Unlock()

	time.Sleep(40 * time.Millisecond)
	assert.True(t, f.bridge.State().Typing, "expired timer must not clear a newer typing event")
}

func TestBridge_SetVisitor(t *testing.T) {
	f := newBridgeFixture(t, Config{})
	ctx := context.Background()

	tests := []struct {
		name    string
		visitor Visitor
		message string
	}{
		{"missing name", Visitor{Email: "jane@example.com"}, "please enter your name"},
		{"missing email", Visitor{Name: "Jane"}, "email is required"},
		{"bad email", Visitor{Name: "Jane", Email: "jane@"}, "valid email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.bridge.SetVisitor(ctx, tt.visitor)
			require.ErrorIs(t, err, ErrInvalidVisitor)
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	require.NoError(t, f.bridge.SetVisitor(ctx, Visitor{Name: " Jane ", Email: "jane@example.com"}))
	st := f.bridge.State()
	assert.Equal(t, "Jane", st.Visitor.Name)
	assert.True(t, st.Started)

	// Queued before any shim connected; delivered on connect.
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	got := drain(f.widget.Commands(cctx))
	require.Len(t, got, 3)
	assert.Equal(t, "user:nickname", got[0].Action)
	assert.Equal(t, "user:email", got[1].Action)
	assert.Equal(t, "chat:open", got[2].Action)
}

func TestBridge_LoadRestoresHistory(t *testing.T) {
	f := newBridgeFixture(t, Config{})
	ctx := context.Background()

	require.NoError(t, f.bridge.SetVisitor(ctx, Visitor{Name: "Jane", Email: "jane@example.com"}))
	_, err := f.bridge.Send(ctx, "first visit")
	require.NoError(t, err)

	// Same browser, new process.
	w := NewRelayWidget()
	b := NewBridge(testToken, w, f.store, Config{}, nil)
	b.Load(ctx)

	st := b.State()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "first visit", st.Messages[0].Body)
	assert.Equal(t, "jane@example.com", st.Visitor.Email)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	assert.Len(t, drain(w.Commands(cctx)), 3, "returning visitor re-identified")
}

func TestBridge_LoadCorruptHistory(t *testing.T) {
	f := newBridgeFixture(t, Config{})
	f.store.PutRaw(storage.ChatMessagesKey(testToken), []byte("[{"))
	f.bridge.Load(context.Background())
	assert.Empty(t, f.bridge.State().Messages)
	assert.False(t, f.bridge.State().Started)
}

func TestRelayWidget_InvalidEvent(t *testing.T) {
	w := NewRelayWidget()
	assert.ErrorIs(t, w.Dispatch(Event{Type: "chat:closed"}), ErrInvalidEvent)
	assert.ErrorIs(t, w.Dispatch(Event{}), ErrInvalidEvent)
}

func TestRelayWidget_CommandsEndWithContext(t *testing.T) {
	w := NewRelayWidget()
	ctx, cancel := context.WithCancel(context.Background())
	ch := w.Commands(ctx)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// With no shim connected, commands go to the backlog.
	require.NoError(t, w.Open(context.Background()))
	w.mu.Lock()
	assert.Len(t, w.backlog, 1)
	w.mu.Unlock()
}

func TestHub_SessionsArePerToken(t *testing.T) {
	store := storage.NewMemoryStore()
	hub := NewHub(store, Config{}, nil)
	t.Cleanup(hub.Close)
	ctx := context.Background()

	_, err := hub.Session(ctx, "")
	assert.ErrorIs(t, err, ErrNoVisitorToken)
	_, err = hub.Session(ctx, "demo-token")
	assert.ErrorIs(t, err, ErrNoVisitorToken)

	alice, err := hub.Session(ctx, "visitor-aaaaaaaaa")
	require.NoError(t, err)
	bob, err := hub.Session(ctx, "visitor-bbbbbbbbb")
	require.NoError(t, err)
	again, err := hub.Session(ctx, "visitor-aaaaaaaaa")
	require.NoError(t, err)
	assert.Same(t, alice, again)
	assert.Equal(t, 2, hub.Len())

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	bobCmds := bob.Widget.Commands(cctx)

	require.NoError(t, alice.Bridge.SetVisitor(ctx, Visitor{Name: "Alice", Email: "alice@example.com"}))
	_, err = alice.Bridge.Send(ctx, "alice private")
	require.NoError(t, err)

	assert.Empty(t, drain(bobCmds), "commands stay with their own shim")
	assert.Empty(t, bob.Bridge.State().Messages)
	assert.Equal(t, Visitor{}, bob.Bridge.State().Visitor)

	var cached []inbox.Message
	require.NoError(t, store.Get(ctx, storage.ChatMessagesKey("visitor-aaaaaaaaa"), &cached))
	assert.Len(t, cached, 1)
	assert.ErrorIs(t, store.Get(ctx, storage.ChatMessagesKey("visitor-bbbbbbbbb"), &cached), storage.ErrNotFound)

	// A new process restores each token's own history.
	restored, err := NewHub(store, Config{}, nil).Session(ctx, "visitor-aaaaaaaaa")
	require.NoError(t, err)
	require.Len(t, restored.Bridge.State().Messages, 1)
	assert.Equal(t, "alice private", restored.Bridge.State().Messages[0].Body)
	assert.Equal(t, "Alice", restored.Bridge.State().Visitor.Name)
}
