// Package storage is folio's local key/value persistence.
//
// Values are JSON documents keyed by a small fixed set of names, plus
// per-visitor chat keys. BoltStore
// keeps them in a single bbolt file; MemoryStore is used when no path is
// configured and in tests.
package storage

import (
	"context"
	"errors"
)

// Keys used by folio's services.
const (
	KeyProfile           = "profile"
	KeyConversations     = "conversations"
	KeyAdminPassword     = "admin_password"
	KeyVisitorToken      = "visitor_token"
	KeyReplicationConfig = "replication_config"
	KeyChatMessages      = "chat_messages"
	KeyChatVisitor       = "chat_visitor"
)

// ChatMessagesKey is where the live chat history of one visitor token lives.
func ChatMessagesKey(token string) string { return KeyChatMessages + ":" + token }

// ChatVisitorKey is where the live chat identity of one visitor token lives.
func ChatVisitorKey(token string) string { return KeyChatVisitor + ":" + token }

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Store persists JSON-encodable values by key.
type Store interface {
	// Get decodes the value stored at key into v.
	Get(ctx context.Context, key string, v any) error
	// Put encodes v and stores it at key, replacing any previous value.
	Put(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
	Close() error
}
