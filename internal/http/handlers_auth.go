package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (s *Server) handleLogin(c echo.Context) error {
	var req PasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !s.services.Auth().Verify(c.Request().Context(), req.Password) {
		s.logger.Info("owner login rejected", zap.String("remote_ip", c.RealIP()))
		return echo.NewHTTPError(http.StatusUnauthorized, "incorrect password")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleChangePassword(c echo.Context) error {
	var req PasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.services.Auth().Change(c.Request().Context(), req.Password); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRecover(c echo.Context) error {
	var req RecoverRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.services.Auth().Recover(c.Request().Context(), req.Code); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
