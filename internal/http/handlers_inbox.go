package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/folio/internal/auth"
	"github.com/fyrsmithlabs/folio/internal/inbox"
	"github.com/fyrsmithlabs/folio/internal/logging"
)

// handleAppend appends a message. Visitors are identified by their session
// token; owner messages require the owner password.
func (s *Server) handleAppend(c echo.Context) error {
	var req AppendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Sender == "" {
		req.Sender = inbox.SenderVisitor
	}
	if req.Sender == inbox.SenderOwner &&
		!s.services.Auth().Verify(c.Request().Context(), c.Request().Header.Get(auth.PasswordHeader)) {
		return echo.NewHTTPError(http.StatusUnauthorized, "owner password required")
	}

	ctx := c.Request().Context()
	token := visitorToken(c)
	if token == "" {
		// Tokenless visitors would all land in one thread none of them
		// could read back.
		if req.Sender != inbox.SenderOwner {
			return echo.NewHTTPError(http.StatusBadRequest, "visitor token required, call GET /api/v1/session first")
		}
		var err error
		token, err = s.services.Sessions().DefaultToken(ctx)
		if err != nil {
			return httpError(err)
		}
	}
	if req.ConversationID != "" {
		ctx = logging.WithConversationID(ctx, req.ConversationID)
	}

	id, err := s.services.Inbox().AppendMessage(ctx, inbox.AppendRequest{
		ConversationID: req.ConversationID,
		Body:           req.Body,
		Sender:         req.Sender,
		VisitorToken:   token,
		Visitor:        req.Visitor,
	})
	if err != nil {
		return httpError(err)
	}
	c.SetRequest(c.Request().WithContext(logging.WithConversationID(ctx, id)))
	return c.JSON(http.StatusCreated, AppendResponse{ConversationID: id})
}

func (s *Server) handleListConversations(c echo.Context) error {
	svc := s.services.Inbox()
	return c.JSON(http.StatusOK, ConversationsResponse{
		Conversations: svc.List(),
		UnreadTotal:   svc.UnreadTotal(),
		Mode:          svc.Mode(),
	})
}

// handleGetConversation returns one thread to the owner, or to the visitor
// whose token started it.
func (s *Server) handleGetConversation(c echo.Context) error {
	conv, err := s.services.Inbox().Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	isOwner := s.services.Auth().Verify(c.Request().Context(), c.Request().Header.Get(auth.PasswordHeader))
	if !isOwner && (conv.VisitorToken == "" || conv.VisitorToken != visitorToken(c)) {
		return httpError(inbox.ErrConversationNotFound)
	}
	return c.JSON(http.StatusOK, conv)
}

func (s *Server) handleMarkRead(c echo.Context) error {
	id := c.Param("id")
	ctx := logging.WithConversationID(c.Request().Context(), id)
	c.SetRequest(c.Request().WithContext(ctx))
	if err := s.services.Inbox().MarkAsRead(ctx, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleTestConversation(c echo.Context) error {
	id, err := s.services.Inbox().CreateTestConversation(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, AppendResponse{ConversationID: id})
}

// handleSimulateReply schedules the canned owner reply and returns at once.
func (s *Server) handleSimulateReply(c echo.Context) error {
	if _, err := s.services.Inbox().SimulateOwnerReply(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

// handleConversationStream pushes the full collection on every change.
//
// Example:
//
//	GET /api/v1/conversations/stream
//
//	event: conversations
//	data: {"conversations":[...],"unreadTotal":1,"mode":"local"}
func (s *Server) handleConversationStream(c echo.Context) error {
	svc := s.services.Inbox()
	updates := make(chan struct{}, 1)
	unsubscribe := svc.Subscribe(func([]inbox.Conversation) {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	setSSEHeaders(c)

	send := func() error {
		data, err := json.Marshal(ConversationsResponse{
			Conversations: svc.List(),
			UnreadTotal:   svc.UnreadTotal(),
			Mode:          svc.Mode(),
		})
		if err != nil {
			return err
		}
		return writeSSE(c, "conversations", data)
	}
	if err := send(); err != nil {
		return nil
	}

	ticker := time.NewTicker(s.config.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-updates:
			if err := send(); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := writeHeartbeat(c); err != nil {
				return nil
			}
		case <-c.Request().Context().Done():
			return nil
		}
	}
}

func setSSEHeaders(c echo.Context) {
	h := c.Response().Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()
}

func writeSSE(c echo.Context, event string, data []byte) error {
	if _, err := fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}

func writeHeartbeat(c echo.Context) error {
	if _, err := fmt.Fprint(c.Response(), ": heartbeat\n\n"); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}
