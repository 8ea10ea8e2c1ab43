package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/folio/internal/assistant"
)

// handleAsk answers a visitor question about the profile. The assistant
// never fails here; outages produce its fixed apology text.
func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	ctx := c.Request().Context()
	p := s.services.Profile().Load(ctx)
	return c.JSON(http.StatusOK, AskResponse{
		Answer: s.services.Assistant().AnswerProfileQuestion(ctx, req.Question, p),
	})
}

func (s *Server) handleOccupation(c echo.Context) error {
	var req OccupationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	res, err := s.services.Assistant().EvaluateOccupation(c.Request().Context(), req.Title, req.Description)
	if err != nil {
		if errors.Is(err, assistant.ErrNotConfigured) {
			return httpError(err)
		}
		s.logger.Warn("occupation evaluation unavailable", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "occupation evaluation unavailable")
	}
	return c.JSON(http.StatusOK, res)
}
