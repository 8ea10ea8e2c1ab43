package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	bolt, err := OpenBolt(filepath.Join(t.TempDir(), "data", "folio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"bolt":   bolt,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var got doc
			assert.ErrorIs(t, s.Get(ctx, KeyProfile, &got), ErrNotFound)

			require.NoError(t, s.Put(ctx, KeyProfile, doc{Name: "a", Items: []string{"x"}}))
			require.NoError(t, s.Get(ctx, KeyProfile, &got))
			assert.Equal(t, doc{Name: "a", Items: []string{"x"}}, got)

			require.NoError(t, s.Put(ctx, KeyProfile, doc{Name: "b"}))
			got = doc{}
			require.NoError(t, s.Get(ctx, KeyProfile, &got))
			assert.Equal(t, "b", got.Name)

			require.NoError(t, s.Delete(ctx, KeyProfile))
			assert.ErrorIs(t, s.Get(ctx, KeyProfile, &got), ErrNotFound)
		})
	}
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "folio.db")

	s, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, KeyVisitorToken, "visitor-abc123def"))
	require.NoError(t, s.Close())

	s, err = OpenBolt(path)
	require.NoError(t, err)
	defer s.Close()

	var token string
	require.NoError(t, s.Get(ctx, KeyVisitorToken, &token))
	assert.Equal(t, "visitor-abc123def", token)
}

func TestBoltStore_CanceledContext(t *testing.T) {
	s, err := OpenBolt(filepath.Join(t.TempDir(), "folio.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Put(ctx, KeyProfile, doc{}), context.Canceled)
}

func TestMemoryStore_CorruptValue(t *testing.T) {
	s := NewMemoryStore()
	s.PutRaw(KeyConversations, []byte("{not json"))

	var got []doc
	err := s.Get(context.Background(), KeyConversations, &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(filepath.Join(t.TempDir(), "folio.db"))
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &BoltStore{}, s)
}
