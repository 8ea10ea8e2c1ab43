// Package http exposes folio's services over a JSON API with SSE streams.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/folio/internal/auth"
	"github.com/fyrsmithlabs/folio/internal/logging"
	"github.com/fyrsmithlabs/folio/internal/services"
)

const (
	// VisitorCookie holds the visitor session token.
	VisitorCookie = "folio_visitor"
	// VisitorHeader may carry the visitor token instead of the cookie.
	VisitorHeader = "X-Folio-Visitor"
)

// Server provides HTTP endpoints for folio.
type Server struct {
	echo     *echo.Echo
	services services.Registry
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host          string
	Port          int
	Version       string
	ChatWebsiteID string
	// Heartbeat is the SSE keepalive interval.
	Heartbeat time.Duration
}

// NewServer creates a new HTTP server.
func NewServer(reg services.Registry, logger *zap.Logger, cfg *Config) (*Server, error) {
	if reg == nil {
		return nil, fmt.Errorf("service registry cannot be nil")
	}
	if reg.Inbox() == nil || reg.Profile() == nil || reg.Auth() == nil || reg.Sessions() == nil || reg.Assistant() == nil {
		return nil, fmt.Errorf("inbox, profile, assistant, auth and sessions services are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	accessLog := logging.Wrap(logger)
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			if token := visitorToken(c); token != "" {
				ctx = logging.WithVisitorToken(ctx, token)
			}
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			accessLog.Info(c.Request().Context(), "http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	})

	s := &Server{
		echo:     e,
		services: reg,
		logger:   logger,
		config:   cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	owner := auth.OwnerMiddleware(s.services.Auth())

	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/session", s.handleSession)

	v1.GET("/profile", s.handleGetProfile)
	v1.PUT("/profile", s.handlePutProfile, owner)
	v1.POST("/profile/skills", s.handleAddSkill, owner)
	v1.DELETE("/profile/skills/:skill", s.handleRemoveSkill, owner)

	v1.POST("/messages", s.handleAppend)
	v1.GET("/conversations", s.handleListConversations, owner)
	v1.GET("/conversations/stream", s.handleConversationStream, owner)
	v1.GET("/conversations/:id", s.handleGetConversation)
	v1.POST("/conversations/:id/read", s.handleMarkRead, owner)
	v1.POST("/conversations/:id/simulate-reply", s.handleSimulateReply, owner)

	v1.POST("/assistant/ask", s.handleAsk)
	v1.POST("/assistant/occupation", s.handleOccupation)

	v1.POST("/auth/login", s.handleLogin)
	v1.PUT("/auth/password", s.handleChangePassword, owner)
	v1.POST("/auth/recover", s.handleRecover)

	admin := v1.Group("/admin", owner)
	admin.POST("/test-conversation", s.handleTestConversation)
	admin.GET("/replication", s.handleGetReplication)
	admin.PUT("/replication", s.handlePutReplication)
	admin.DELETE("/replication", s.handleDeleteReplication)

	chat := v1.Group("/chat")
	chat.GET("/config", s.handleChatConfig)
	chat.GET("/messages", s.handleChatState)
	chat.POST("/send", s.handleChatSend)
	chat.POST("/events", s.handleChatEvent)
	chat.GET("/commands", s.handleChatCommands)
	chat.GET("/visitor", s.handleGetChatVisitor)
	chat.PUT("/visitor", s.handlePutChatVisitor)
}

// handleHealth reports liveness and the active conversation backend.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.config.Version,
		Mode:    s.services.Inbox().Mode(),
		Services: map[string]string{
			"assistant": "unavailable",
			"chat":      "disabled",
		},
	}
	if a := s.services.Assistant(); a.Available() {
		resp.Services["assistant"] = "ok"
	}
	if s.config.ChatWebsiteID != "" {
		resp.Services["chat"] = "ok"
	}
	if m := s.services.Replication(); m != nil {
		st := m.Status()
		resp.Replication = &st
	}
	return c.JSON(http.StatusOK, resp)
}

// handleSession echoes the caller's visitor token or issues a new one.
func (s *Server) handleSession(c echo.Context) error {
	token, issued := s.services.Sessions().Resolve(visitorToken(c))
	if issued {
		c.SetCookie(&http.Cookie{
			Name:     VisitorCookie,
			Value:    token,
			Path:     "/",
			MaxAge:   int((365 * 24 * time.Hour).Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return c.JSON(http.StatusOK, SessionResponse{VisitorToken: token})
}

// visitorToken reads the token from the header or cookie.
func visitorToken(c echo.Context) string {
	if token := c.Request().Header.Get(VisitorHeader); token != "" {
		return token
	}
	if cookie, err := c.Cookie(VisitorCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
