package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/folio/internal/chatbridge"
)

// chat returns the live chat session of the caller's visitor token.
func (s *Server) chat(c echo.Context) (*chatbridge.Session, error) {
	hub := s.services.Chat()
	if hub == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "live chat is not available")
	}
	sess, err := hub.Session(c.Request().Context(), visitorToken(c))
	if err != nil {
		return nil, httpError(err)
	}
	return sess, nil
}

func (s *Server) handleChatConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, ChatConfigResponse{WebsiteID: s.config.ChatWebsiteID})
}

func (s *Server) handleChatState(c echo.Context) error {
	sess, err := s.chat(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.Bridge.State())
}

func (s *Server) handleChatSend(c echo.Context) error {
	sess, err := s.chat(c)
	if err != nil {
		return err
	}
	var req ChatSendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	msg, err := sess.Bridge.Send(c.Request().Context(), req.Text)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// handleChatEvent receives widget callbacks forwarded by the browser shim.
func (s *Server) handleChatEvent(c echo.Context) error {
	sess, err := s.chat(c)
	if err != nil {
		return err
	}
	var ev chatbridge.Event
	if err := c.Bind(&ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := sess.Widget.Dispatch(ev); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

// handleChatCommands streams the caller's widget commands to its browser
// shim.
//
// Example:
//
//	GET /api/v1/chat/commands
//
//	event: command
//	data: {"kind":"do","action":"message:send","args":["text","Hi"]}
func (s *Server) handleChatCommands(c echo.Context) error {
	sess, err := s.chat(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	cmds := sess.Widget.Commands(ctx)

	setSSEHeaders(c)

	ticker := time.NewTicker(s.config.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case cmd, ok := <-cmds:
			if !ok {
				return nil
			}
			data, err := json.Marshal(cmd)
			if err != nil {
				continue
			}
			if err := writeSSE(c, "command", data); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := writeHeartbeat(c); err != nil {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Server) handleGetChatVisitor(c echo.Context) error {
	sess, err := s.chat(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.Bridge.State().Visitor)
}

func (s *Server) handlePutChatVisitor(c echo.Context) error {
	sess, err := s.chat(c)
	if err != nil {
		return err
	}
	var v chatbridge.Visitor
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := sess.Bridge.SetVisitor(c.Request().Context(), v); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sess.Bridge.State().Visitor)
}
