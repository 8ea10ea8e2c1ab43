package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/folio/internal/storage"
)

// LocalRepository stores the whole collection as one document, most
// recently updated first.
type LocalRepository struct {
	store storage.Store
	mu    sync.Mutex
}

func NewLocalRepository(store storage.Store) *LocalRepository {
	return &LocalRepository{store: store}
}

func (r *LocalRepository) Mode() Mode { return ModeLocal }

// Load returns the stored collection. A missing document is an empty
// collection.
func (r *LocalRepository) Load(ctx context.Context) ([]Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx)
}

func (r *LocalRepository) loadLocked(ctx context.Context) ([]Conversation, error) {
	var convs []Conversation
	if err := r.store.Get(ctx, storage.KeyConversations, &convs); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading conversations: %w", err)
	}
	return convs, nil
}

// Put replaces the conversation with the same id, or inserts it. See
// upsert for ordering.
func (r *LocalRepository) Put(ctx context.Context, conv Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	convs, err := r.loadLocked(ctx)
	if err != nil {
		// Corrupt data is replaced rather than blocking new messages.
		convs = nil
	}
	return r.store.Put(ctx, storage.KeyConversations, upsert(convs, conv))
}

// ReplaceAll overwrites the stored collection.
func (r *LocalRepository) ReplaceAll(ctx context.Context, convs []Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if convs == nil {
		convs = []Conversation{}
	}
	return r.store.Put(ctx, storage.KeyConversations, convs)
}

func (r *LocalRepository) Close() error { return nil }

// upsert replaces the entry with conv's id. A new conversation, or one
// that gained messages, moves to the front; other updates stay in place.
// Untouched entries keep their relative order.
func upsert(convs []Conversation, conv Conversation) []Conversation {
	for i, c := range convs {
		if c.ID == conv.ID && len(c.Messages) == len(conv.Messages) {
			out := append([]Conversation(nil), convs...)
			out[i] = conv
			return out
		}
	}
	out := make([]Conversation, 0, len(convs)+1)
	out = append(out, conv)
	for _, c := range convs {
		if c.ID != conv.ID {
			out = append(out, c)
		}
	}
	return out
}
