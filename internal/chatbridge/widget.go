// Package chatbridge adapts a third-party embeddable chat widget into
// folio's message shape.
//
// The widget itself runs in the visitor's browser. A small shim there
// forwards widget events to the server and replays commands the server
// queues, so nothing outside this package knows about the widget's
// push-style command queue.
package chatbridge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Widget is the minimal surface folio needs from a chat widget.
type Widget interface {
	OnMessageReceived(fn func(text string))
	OnMessageSent(fn func(text string))
	OnTyping(fn func())
	Send(ctx context.Context, text string) error
	SetVisitor(ctx context.Context, v Visitor) error
	Open(ctx context.Context) error
}

// Event types forwarded by the browser shim.
const (
	EventMessageReceived = "message:received"
	EventMessageSent     = "message:sent"
	EventTyping          = "typing"
)

// Event is a widget callback relayed from the browser.
type Event struct {
	Type    string `json:"type" validate:"required,oneof=message:received message:sent typing"`
	Content string `json:"content" validate:"max=4000"`
}

// Command is one entry for the widget's command queue. Kind is "do" or
// "set"; the shim pushes [Kind, Action, Args] as-is.
type Command struct {
	Kind   string `json:"kind"`
	Action string `json:"action"`
	Args   []any  `json:"args,omitempty"`
}

// ErrInvalidEvent is returned by Dispatch for malformed events.
var ErrInvalidEvent = errors.New("invalid chat event")

const (
	maxBacklog    = 64
	subscriberBuf = 16
)

var validate = validator.New()

// RelayWidget implements Widget by queuing commands for connected shims
// and dispatching events they post back.
type RelayWidget struct {
	mu         sync.Mutex
	subs       map[int]chan Command
	nextSub    int
	backlog    []Command
	onReceived []func(string)
	onSent     []func(string)
	onTyping   []func()
}

var _ Widget = (*RelayWidget)(nil)

// NewRelayWidget creates a relay with no connected shims.
func NewRelayWidget() *RelayWidget {
	return &RelayWidget{subs: make(map[int]chan Command)}
}

func (w *RelayWidget) OnMessageReceived(fn func(string)) {
	w.mu.Lock()
	w.onReceived = append(w.onReceived, fn)
	w.mu.Unlock()
}

func (w *RelayWidget) OnMessageSent(fn func(string)) {
	w.mu.Lock()
	w.onSent = append(w.onSent, fn)
	w.mu.Unlock()
}

func (w *RelayWidget) OnTyping(fn func()) {
	w.mu.Lock()
	w.onTyping = append(w.onTyping, fn)
	w.mu.Unlock()
}

// Send queues a message:send command.
func (w *RelayWidget) Send(_ context.Context, text string) error {
	w.push(Command{Kind: "do", Action: "message:send", Args: []any{"text", text}})
	return nil
}

// SetVisitor queues the nickname and email commands.
func (w *RelayWidget) SetVisitor(_ context.Context, v Visitor) error {
	if v.Name != "" {
		w.push(Command{Kind: "set", Action: "user:nickname", Args: []any{v.Name}})
	}
	if v.Email != "" {
		w.push(Command{Kind: "set", Action: "user:email", Args: []any{v.Email}})
	}
	return nil
}

// Open queues chat:open.
func (w *RelayWidget) Open(_ context.Context) error {
	w.push(Command{Kind: "do", Action: "chat:open"})
	return nil
}

// push delivers cmd to every connected shim, or keeps it until one connects.
// Slow shims drop commands rather than block the caller.
func (w *RelayWidget) push(cmd Command) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.subs) == 0 {
		w.backlog = append(w.backlog, cmd)
		if len(w.backlog) > maxBacklog {
			w.backlog = w.backlog[len(w.backlog)-maxBacklog:]
		}
		return
	}
	for _, ch := range w.subs {
		select {
		case ch <- cmd:
		default:
		}
	}
}

// Commands streams queued commands until ctx is done. Commands queued
// while no shim was connected are delivered first.
func (w *RelayWidget) Commands(ctx context.Context) <-chan Command {
	ch := make(chan Command, subscriberBuf+maxBacklog)

	w.mu.Lock()
	for _, cmd := range w.backlog {
		ch <- cmd
	}
	w.backlog = nil
	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	w.mu.Unlock()

	go func() {
		<-ctx.Done()
		w.mu.Lock()
		delete(w.subs, id)
		close(ch)
		w.mu.Unlock()
	}()
	return ch
}

// Dispatch runs the handlers registered for ev.Type.
func (w *RelayWidget) Dispatch(ev Event) error {
	if err := validate.Struct(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	w.mu.Lock()
	received := slices.Clone(w.onReceived)
	sent := slices.Clone(w.onSent)
	typing := slices.Clone(w.onTyping)
	w.mu.Unlock()

	switch ev.Type {
	case EventMessageReceived:
		for _, fn := range received {
			fn(ev.Content)
		}
	case EventMessageSent:
		for _, fn := range sent {
			fn(ev.Content)
		}
	case EventTyping:
		for _, fn := range typing {
			fn()
		}
	}
	return nil
}
