package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// PasswordHeader carries the owner passphrase on owner-only requests.
const PasswordHeader = "X-Folio-Password"

// ownerKey marks an echo context as authenticated.
const ownerKey = "folio.owner"

// OwnerMiddleware rejects requests that do not carry the owner passphrase
// in PasswordHeader with 401.
func OwnerMiddleware(a *Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !a.Verify(c.Request().Context(), c.Request().Header.Get(PasswordHeader)) {
				return echo.NewHTTPError(http.StatusUnauthorized, "owner password required")
			}
			c.Set(ownerKey, true)
			return next(c)
		}
	}
}

// IsOwner reports whether OwnerMiddleware authenticated this request.
func IsOwner(c echo.Context) bool {
	ok, _ := c.Get(ownerKey).(bool)
	return ok
}
