package http

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/folio/internal/inbox"
	"github.com/fyrsmithlabs/folio/internal/replication"
)

// maxConfigBody bounds pasted replication settings.
const maxConfigBody = 16 << 10

func (s *Server) replicationManager() (*replication.Manager, error) {
	m := s.services.Replication()
	if m == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "replication is not available")
	}
	return m, nil
}

func (s *Server) handleGetReplication(c echo.Context) error {
	m := s.services.Replication()
	if m == nil {
		return c.JSON(http.StatusOK, replication.Status{Mode: inbox.ModeLocal})
	}
	return c.JSON(http.StatusOK, m.Status())
}

// handlePutReplication applies pasted settings. The body is the raw text
// as pasted; blank disables replication. A connection failure is not an
// error: the returned status reports connected=false.
func (s *Server) handlePutReplication(c echo.Context) error {
	m, err := s.replicationManager()
	if err != nil {
		return err
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxConfigBody+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(raw) > maxConfigBody {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "config too large")
	}
	st, err := m.Apply(c.Request().Context(), string(raw))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleDeleteReplication(c echo.Context) error {
	m, err := s.replicationManager()
	if err != nil {
		return err
	}
	st, err := m.Disable(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}
