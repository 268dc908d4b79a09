package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/oakmund/gatehouse/internal/apperror"
)

// Context keys for the resolved identity. Handlers read them through the
// exported getters below.
const (
	contextKeyUser = "auth_user"
	contextKeyAuth = "auth_session"
)

// WithUser returns middleware that resolves the session cookie into a user
// and stores it in the request context. Resolution fails soft: a missing,
// malformed, or revoked token leaves the request anonymous and clears the
// stale cookie. It never rejects the request -- pair it with RequireUser on
// routes that need an identity.
func WithUser(sessions SessionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := getSessionToken(c)
			if token == "" {
				return next(c)
			}

			user, auth, err := sessions.Resolve(c.Request().Context(), token, c.RealIP())
			if err != nil {
				// Store unavailable: the one case that is allowed to fail
				// the request.
				return err
			}
			if user == nil {
				clearSessionCookie(c)
				return next(c)
			}

			c.Set(contextKeyUser, user)
			c.Set(contextKeyAuth, auth)
			return next(c)
		}
	}
}

// RequireUser returns middleware that rejects anonymous requests with 401.
// Apply after WithUser.
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if CurrentUser(c) == nil {
				return apperror.NewUnauthorized("You need to log in.")
			}
			return next(c)
		}
	}
}

// RequireAdmin returns middleware that rejects non-admin requests.
// Apply after WithUser.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return apperror.NewUnauthorized("You need to log in.")
			}
			if !user.IsAdmin {
				return apperror.NewForbidden("Admin access required.")
			}
			return next(c)
		}
	}
}

// RequireAnonymous returns middleware that rejects requests that already
// carry a session, for login/signup/reset routes.
func RequireAnonymous() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if CurrentUser(c) != nil {
				return apperror.NewBadRequest("You are already logged in.")
			}
			return next(c)
		}
	}
}

// CurrentUser retrieves the authenticated user from the Echo context.
// Returns nil for anonymous requests.
func CurrentUser(c echo.Context) *User {
	user, ok := c.Get(contextKeyUser).(*User)
	if !ok {
		return nil
	}
	return user
}

// CurrentAuth retrieves the resolved device session from the Echo context.
// Returns nil for anonymous requests.
func CurrentAuth(c echo.Context) *Auth {
	auth, ok := c.Get(contextKeyAuth).(*Auth)
	if !ok {
		return nil
	}
	return auth
}
