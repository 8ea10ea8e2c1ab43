package services

import (
	"github.com/fyrsmithlabs/folio/internal/assistant"
	"github.com/fyrsmithlabs/folio/internal/auth"
	"github.com/fyrsmithlabs/folio/internal/chatbridge"
	"github.com/fyrsmithlabs/folio/internal/inbox"
	"github.com/fyrsmithlabs/folio/internal/profile"
	"github.com/fyrsmithlabs/folio/internal/replication"
)

// Registry provides access to all folio services.
// Use accessor methods to retrieve individual services.
type Registry interface {
	Profile() *profile.Store
	Inbox() *inbox.Service
	Replication() *replication.Manager
	Assistant() *assistant.Client
	Auth() *auth.Authenticator
	Sessions() *auth.Sessions
	Chat() *chatbridge.Hub
}

// Options configures the registry with service instances.
type Options struct {
	Profile     *profile.Store
	Inbox       *inbox.Service
	Replication *replication.Manager
	Assistant   *assistant.Client
	Auth        *auth.Authenticator
	Sessions    *auth.Sessions
	Chat        *chatbridge.Hub
}

// registry is the concrete implementation of Registry.
type registry struct {
	profile     *profile.Store
	inbox       *inbox.Service
	replication *replication.Manager
	assistant   *assistant.Client
	auth        *auth.Authenticator
	sessions    *auth.Sessions
	chat        *chatbridge.Hub
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		profile:     opts.Profile,
		inbox:       opts.Inbox,
		replication: opts.Replication,
		assistant:   opts.Assistant,
		auth:        opts.Auth,
		sessions:    opts.Sessions,
		chat:        opts.Chat,
	}
}

func (r *registry) Profile() *profile.Store           { return r.profile }
func (r *registry) Inbox() *inbox.Service             { return r.inbox }
func (r *registry) Replication() *replication.Manager { return r.replication }
func (r *registry) Assistant() *assistant.Client      { return r.assistant }
func (r *registry) Auth() *auth.Authenticator         { return r.auth }
func (r *registry) Sessions() *auth.Sessions          { return r.sessions }
func (r *registry) Chat() *chatbridge.Hub             { return r.chat }
