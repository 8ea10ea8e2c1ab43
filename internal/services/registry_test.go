package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/folio/internal/auth"
	"github.com/fyrsmithlabs/folio/internal/chatbridge"
	"github.com/fyrsmithlabs/folio/internal/inbox"
	"github.com/fyrsmithlabs/folio/internal/profile"
	"github.com/fyrsmithlabs/folio/internal/storage"
)

func TestNewRegistry(t *testing.T) {
	var _ Registry = (*registry)(nil)
}

func TestRegistryAccessors(t *testing.T) {
	reg := NewRegistry(Options{})

	assert.Nil(t, reg.Profile())
	assert.Nil(t, reg.Inbox())
	assert.Nil(t, reg.Replication())
	assert.Nil(t, reg.Assistant())
	assert.Nil(t, reg.Auth())
	assert.Nil(t, reg.Sessions())
	assert.Nil(t, reg.Chat())
}

func TestRegistryWithServices(t *testing.T) {
	store := storage.NewMemoryStore()
	opts := Options{
		Profile:  profile.NewStore(store, "", nil),
		Inbox:    inbox.NewService(inbox.NewLocalRepository(store), nil, nil, inbox.Config{}),
		Auth:     auth.NewAuthenticator(store, "pw", "code", nil),
		Sessions: auth.NewSessions(store),
		Chat:     chatbridge.NewHub(store, chatbridge.Config{}, nil),
	}

	reg := NewRegistry(opts)

	assert.Same(t, opts.Profile, reg.Profile())
	assert.Same(t, opts.Inbox, reg.Inbox())
	assert.Same(t, opts.Auth, reg.Auth())
	assert.Same(t, opts.Sessions, reg.Sessions())
	assert.Same(t, opts.Chat, reg.Chat())
}
