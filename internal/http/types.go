package http

import (
	"github.com/fyrsmithlabs/folio/internal/inbox"
	"github.com/fyrsmithlabs/folio/internal/replication"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status      string              `json:"status"`
	Version     string              `json:"version,omitempty"`
	Mode        inbox.Mode          `json:"mode"`
	Replication *replication.Status `json:"replication,omitempty"`
	Services    map[string]string   `json:"services"`
}

// SessionResponse is the response body for GET /api/v1/session.
type SessionResponse struct {
	VisitorToken string `json:"visitorToken"`
}

// AppendRequest is the request body for POST /api/v1/messages.
type AppendRequest struct {
	ConversationID string                `json:"conversationId"`
	Body           string                `json:"body"`
	Sender         inbox.SenderType      `json:"sender"`
	Visitor        *inbox.VisitorDetails `json:"visitor,omitempty"`
}

// AppendResponse is the response body for POST /api/v1/messages.
type AppendResponse struct {
	ConversationID string `json:"conversationId"`
}

// ConversationsResponse is the response body for GET /api/v1/conversations.
type ConversationsResponse struct {
	Conversations []inbox.Conversation `json:"conversations"`
	UnreadTotal   int                  `json:"unreadTotal"`
	Mode          inbox.Mode           `json:"mode"`
}

// SkillRequest is the request body for POST /api/v1/profile/skills.
type SkillRequest struct {
	Skill string `json:"skill"`
}

// AskRequest is the request body for POST /api/v1/assistant/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the response body for POST /api/v1/assistant/ask.
type AskResponse struct {
	Answer string `json:"answer"`
}

// OccupationRequest is the request body for POST /api/v1/assistant/occupation.
type OccupationRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PasswordRequest is used by login and password change.
type PasswordRequest struct {
	Password string `json:"password"`
}

// RecoverRequest is the request body for POST /api/v1/auth/recover.
type RecoverRequest struct {
	Code string `json:"code"`
}

// ChatSendRequest is the request body for POST /api/v1/chat/send.
type ChatSendRequest struct {
	Text string `json:"text"`
}

// ChatConfigResponse tells the browser shim which widget to load.
type ChatConfigResponse struct {
	WebsiteID string `json:"websiteId"`
}
