package chatbridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/folio/internal/ids"
	"github.com/fyrsmithlabs/folio/internal/inbox"
	"github.com/fyrsmithlabs/folio/internal/storage"
)

// LiveConversationID tags messages of the live chat channel. They never
// enter the inbox's conversation collection.
const LiveConversationID = "live-chat"

// ErrInvalidVisitor is returned when visitor details are incomplete.
var ErrInvalidVisitor = errors.New("invalid visitor details")

// Visitor is the identity a visitor gives before chatting.
type Visitor struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email"`
}

// Complete reports whether both name and email are present.
func (v Visitor) Complete() bool {
	return v.Name != "" && v.Email != ""
}

// Config tunes the bridge.
type Config struct {
	// DedupWindow is how close in time two identical messages must be to
	// count as one.
	DedupWindow time.Duration
	// TypingTimeout clears the typing flag when no message follows.
	TypingTimeout time.Duration
}

// State is what the chat panel renders.
type State struct {
	Messages []inbox.Message `json:"messages"`
	Visitor  Visitor         `json:"visitor"`
	Typing   bool            `json:"typing"`
	Started  bool            `json:"started"`
}

// Bridge keeps the live chat history of one visitor token. History and
// visitor identity are cached locally under that token's keys; the widget's
// backend stays the source of truth.
type Bridge struct {
	token  string
	widget Widget
	store  storage.Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	messages    []inbox.Message
	visitor     Visitor
	typing      bool
	typingTimer *time.Timer
}

// NewBridge wires the bridge for token to widget events.
func NewBridge(token string, widget Widget, store storage.Store, cfg Config, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 5 * time.Second
	}
	if cfg.TypingTimeout <= 0 {
		cfg.TypingTimeout = 3 * time.Second
	}
	b := &Bridge{token: token, widget: widget, store: store, cfg: cfg, logger: logger, now: time.Now}

	widget.OnMessageReceived(func(text string) {
		b.record(context.Background(), inbox.SenderOwner, text)
	})
	widget.OnMessageSent(func(text string) {
		b.record(context.Background(), inbox.SenderVisitor, text)
	})
	widget.OnTyping(b.markTyping)
	return b
}

// Load restores cached history and visitor identity. A returning visitor
// with a complete identity has the widget reopened for them.
func (b *Bridge) Load(ctx context.Context) {
	var msgs []inbox.Message
	if err := b.store.Get(ctx, storage.ChatMessagesKey(b.token), &msgs); err != nil && !errors.Is(err, storage.ErrNotFound) {
		b.logger.Warn("failed to load chat history", zap.Error(err))
		msgs = nil
	}
	var v Visitor
	if err := b.store.Get(ctx, storage.ChatVisitorKey(b.token), &v); err != nil && !errors.Is(err, storage.ErrNotFound) {
		b.logger.Warn("failed to load chat visitor", zap.Error(err))
		v = Visitor{}
	}

	b.mu.Lock()
	b.messages = msgs
	b.visitor = v
	b.mu.Unlock()

	if v.Complete() {
		b.identify(ctx, v)
	}
}

// State returns a copy of the current chat state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := make([]inbox.Message, len(b.messages))
	copy(msgs, b.messages)
	return State{
		Messages: msgs,
		Visitor:  b.visitor,
		Typing:   b.typing,
		Started:  b.visitor.Complete() || len(b.messages) > 0,
	}
}

// SetVisitor validates and stores the visitor's identity, then passes it
// to the widget and opens the chat.
func (b *Bridge) SetVisitor(ctx context.Context, v Visitor) error {
	v.Name = strings.TrimSpace(v.Name)
	v.Email = strings.TrimSpace(v.Email)
	if err := validate.Struct(v); err != nil {
		return visitorError(err)
	}
	if err := b.store.Put(ctx, storage.ChatVisitorKey(b.token), v); err != nil {
		return err
	}
	b.mu.Lock()
	b.visitor = v
	b.mu.Unlock()

	b.identify(ctx, v)
	return nil
}

func (b *Bridge) identify(ctx context.Context, v Visitor) {
	if err := b.widget.SetVisitor(ctx, v); err != nil {
		b.logger.Warn("failed to pass visitor to chat widget", zap.Error(err))
	}
	if err := b.widget.Open(ctx); err != nil {
		b.logger.Warn("failed to open chat widget", zap.Error(err))
	}
}

func visitorError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ErrInvalidVisitor
	}
	fe := verrs[0]
	switch {
	case fe.Field() == "Name":
		return errors.Join(ErrInvalidVisitor, errors.New("please enter your name"))
	case fe.Tag() == "required":
		return errors.Join(ErrInvalidVisitor, errors.New("email is required so you can get the reply even if you close the site"))
	default:
		return errors.Join(ErrInvalidVisitor, errors.New("please enter a valid email address"))
	}
}

// Send shows text immediately and forwards it to the widget. The widget's
// own "sent" echo is then dropped by the dedup rule.
func (b *Bridge) Send(ctx context.Context, text string) (inbox.Message, error) {
	if strings.TrimSpace(text) == "" {
		return inbox.Message{}, inbox.ErrEmptyMessage
	}
	msg, _ := b.record(ctx, inbox.SenderVisitor, text)
	if err := b.widget.Send(ctx, text); err != nil {
		b.logger.Warn("chat widget send failed", zap.Error(err))
		return msg, err
	}
	return msg, nil
}

// record appends a message unless an identical one from the same sender
// was recorded within the dedup window.
func (b *Bridge) record(ctx context.Context, sender inbox.SenderType, text string) (inbox.Message, bool) {
	if text == "" {
		return inbox.Message{}, false
	}
	now := b.now().UnixMilli()
	window := b.cfg.DedupWindow.Milliseconds()

	b.mu.Lock()
	for i := len(b.messages) - 1; i >= 0; i-- {
		m := b.messages[i]
		if m.Body == text && m.SenderType == sender && abs(now-m.CreatedAt) < window {
			b.mu.Unlock()
			return m, false
		}
	}
	msg := inbox.Message{
		ID:             ids.New(),
		ConversationID: LiveConversationID,
		SenderType:     sender,
		Body:           text,
		CreatedAt:      now,
	}
	b.messages = append(b.messages, msg)
	if sender == inbox.SenderOwner {
		b.clearTypingLocked()
	}
	snapshot := make([]inbox.Message, len(b.messages))
	copy(snapshot, b.messages)
	b.mu.Unlock()

	if err := b.store.Put(ctx, storage.ChatMessagesKey(b.token), snapshot); err != nil {
		b.logger.Warn("failed to cache chat history", zap.Error(err))
	}
	return msg, true
}

func (b *Bridge) markTyping() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markTypingLocked()
}

func (b *Bridge) markTypingLocked() {
	b.typing = true
	if b.typingTimer != nil {
		b.typingTimer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(b.cfg.TypingTimeout, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		// A callback already waiting on mu when its timer was replaced
		// must not clear the newer flag.
		if b.typingTimer != t {
			return
		}
		b.typing = false
		b.typingTimer = nil
	})
	b.typingTimer = t
}

func (b *Bridge) clearTypingLocked() {
	b.typing = false
	if b.typingTimer != nil {
		b.typingTimer.Stop()
		b.typingTimer = nil
	}
}

// Close stops the typing timer.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.clearTypingLocked()
	b.mu.Unlock()
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
