// Package inbox holds the conversation collection and the message append
// pipeline.
//
// Conversations are persisted through a Repository. LocalRepository keeps
// them in local storage; a replicated repository (see package replication)
// pushes each mutated conversation to a shared key/value bucket and streams
// authoritative snapshots back through SnapshotSource.
package inbox

import (
	"context"
	"errors"
	"unicode/utf8"
)

// SenderType identifies who authored a message.
type SenderType string

const (
	SenderVisitor SenderType = "visitor"
	SenderOwner   SenderType = "owner"
	SenderAI      SenderType = "ai"
)

// Status is the thread-level state shown in the owner's inbox.
type Status string

const (
	StatusUnread   Status = "UNREAD"
	StatusRead     Status = "READ"
	StatusArchived Status = "ARCHIVED"
	StatusSpam     Status = "SPAM"
)

// FlagSpam marks a message the classifier considered spam.
const FlagSpam = "spam"

// SnippetLength is the number of runes of the latest body kept in
// Conversation.LastMessageSnippet.
const SnippetLength = 30

var (
	ErrEmptyMessage         = errors.New("message body is empty")
	ErrInvalidSender        = errors.New("sender must be visitor or owner")
	ErrConversationNotFound = errors.New("conversation not found")
)

// Message is immutable once appended. Timestamps are Unix milliseconds.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderType     SenderType `json:"senderType"`
	Body           string     `json:"body"`
	CreatedAt      int64      `json:"createdAt"`
	Flags          []string   `json:"flags,omitempty"`
}

// HasFlag reports whether the message carries flag.
func (m Message) HasFlag(flag string) bool {
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Conversation is one visitor's thread with the owner.
type Conversation struct {
	ID                 string    `json:"id"`
	VisitorName        string    `json:"visitorName"`
	VisitorToken       string    `json:"visitorToken"`
	LastMessageSnippet string    `json:"lastMessageSnippet"`
	UpdatedAt          int64     `json:"updatedAt"`
	UnreadCount        int       `json:"unreadCount"`
	Status             Status    `json:"status"`
	Messages           []Message `json:"messages"`
	CreatedAt          int64     `json:"createdAt"`
}

// Clone deep-copies the conversation.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		m.Flags = append([]string(nil), m.Flags...)
		out.Messages[i] = m
	}
	return out
}

// LastMessage returns the tail message, if any.
func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// VisitorDetails are the optional name and email a visitor supplies with
// their first message.
type VisitorDetails struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// DisplayName renders the inbox label: the name (or "Visitor") followed
// by the email in parentheses when present.
func (d *VisitorDetails) DisplayName() string {
	name := "Visitor"
	if d != nil && d.Name != "" {
		name = d.Name
	}
	if d != nil && d.Email != "" {
		name += " (" + d.Email + ")"
	}
	return name
}

// Snippet returns the first SnippetLength runes of body.
func Snippet(body string) string {
	if utf8.RuneCountInString(body) <= SnippetLength {
		return body
	}
	n := 0
	for i := range body {
		if n == SnippetLength {
			return body[:i]
		}
		n++
	}
	return body
}

// Verdict is the classifier's opinion of a visitor message.
type Verdict struct {
	IsSpam bool   `json:"isSpam"`
	Reason string `json:"reason,omitempty"`
}

// Classifier screens visitor-authored text.
type Classifier interface {
	CheckSpam(ctx context.Context, body string) (Verdict, error)
}

// Mode names the authoritative persistence backend.
type Mode string

const (
	ModeLocal      Mode = "local"
	ModeReplicated Mode = "replicated"
)

// Repository persists conversations. Put is a full-document upsert keyed
// by conversation id.
type Repository interface {
	Mode() Mode
	Put(ctx context.Context, conv Conversation) error
	Close() error
}

// SnapshotSource is implemented by repositories whose backend pushes the
// full collection, ordered by UpdatedAt descending, on every change.
// Watch blocks until ctx is done.
type SnapshotSource interface {
	Watch(ctx context.Context, fn func([]Conversation)) error
}
