package ids

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TimeOrderedAndUnique(t *testing.T) {
	seen := make(map[string]bool)
	prev := ""
	for i := 0; i < 1000; i++ {
		id := New()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true

		parsed, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())

		if prev != "" {
			assert.Greater(t, id, prev)
		}
		prev = id
	}
}

func TestNewVisitorToken(t *testing.T) {
	for i := 0; i < 100; i++ {
		tok := NewVisitorToken()
		assert.Len(t, tok, len("visitor-")+9)
		assert.True(t, IsVisitorToken(tok), tok)
	}
	assert.NotEqual(t, NewVisitorToken(), NewVisitorToken())
}

func TestIsVisitorToken(t *testing.T) {
	assert.False(t, IsVisitorToken(""))
	assert.False(t, IsVisitorToken("demo-token"))
	assert.False(t, IsVisitorToken("visitor-ABCDEFGHI"))
	assert.False(t, IsVisitorToken("visitor-abc"))
	assert.True(t, IsVisitorToken("visitor-0a1b2c3d4"))
}
