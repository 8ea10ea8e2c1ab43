package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/folio/internal/assistant"
	"github.com/fyrsmithlabs/folio/internal/auth"
	"github.com/fyrsmithlabs/folio/internal/chatbridge"
	"github.com/fyrsmithlabs/folio/internal/inbox"
	"github.com/fyrsmithlabs/folio/internal/profile"
	"github.com/fyrsmithlabs/folio/internal/replication"
)

// httpError maps service errors to HTTP errors. Unknown errors become 500
// with the original error kept as the internal cause for logging.
func httpError(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, inbox.ErrEmptyMessage),
		errors.Is(err, inbox.ErrInvalidSender),
		errors.Is(err, replication.ErrInvalidConfig),
		errors.Is(err, chatbridge.ErrInvalidVisitor),
		errors.Is(err, chatbridge.ErrInvalidEvent),
		errors.Is(err, chatbridge.ErrNoVisitorToken),
		errors.Is(err, profile.ErrDuplicateSkill),
		errors.Is(err, profile.ErrDuplicateID),
		errors.Is(err, auth.ErrInvalidPassword):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidRecoveryCode):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, inbox.ErrConversationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, assistant.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}
