package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/folio/internal/profile"
)

func (s *Server) handleGetProfile(c echo.Context) error {
	return c.JSON(http.StatusOK, s.services.Profile().Load(c.Request().Context()))
}

// handlePutProfile replaces the whole profile document.
func (s *Server) handlePutProfile(c echo.Context) error {
	var p profile.Profile
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	saved, err := s.services.Profile().Save(c.Request().Context(), p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (s *Server) handleAddSkill(c echo.Context) error {
	var req SkillRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	saved, err := s.services.Profile().AddSkill(c.Request().Context(), req.Skill)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (s *Server) handleRemoveSkill(c echo.Context) error {
	saved, err := s.services.Profile().RemoveSkill(c.Request().Context(), c.Param("skill"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, saved)
}
