package app

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/oakmund/gatehouse/internal/identity"
	"github.com/oakmund/gatehouse/internal/mailer"
	"github.com/oakmund/gatehouse/internal/middleware"
	"github.com/oakmund/gatehouse/internal/plugins/auth"
)

// RegisterRoutes wires the auth plugin together and registers all routes.
// This is the single place where services are constructed from their
// repositories, caches, and collaborators.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// Health check endpoint for container health monitoring.
	e.GET("/healthz", func(c echo.Context) error {
		if err := a.DB.PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Identity caches. userCache is shared between the credential and
	// session services so credential mutations invalidate what session
	// resolution reads.
	userCache := identity.New[string, *auth.User](a.Config.Auth.CacheSize)
	authCache := identity.New[string, *auth.Auth](a.Config.Auth.CacheSize)

	userRepo := auth.NewUserRepository(a.DB)
	authRepo := auth.NewAuthRepository(a.DB)

	hasher := auth.NewHasher(a.Config.Auth.PasswordPepper)
	reset := auth.NewResetTokenIssuer(a.Config.Auth.ResetPepper, a.Config.Auth.ResetWindow)
	mail := mailer.New(a.Config.Mail)

	creds := auth.NewCredentialService(userRepo, hasher, reset, mail, userCache, a.Config.BaseURL)
	sessions := auth.NewSessionService(authRepo, userRepo, authCache, userCache)

	// Session resolution runs on every request; routes add RequireUser /
	// RequireAdmin guards themselves.
	e.Use(auth.WithUser(sessions))

	handler := auth.NewHandler(creds, sessions,
		a.Config.Auth.RememberDays,
		a.Config.Auth.SweepMaxAgeDays,
	)

	limiter := middleware.NewRateLimiter(a.Redis)
	auth.RegisterRoutes(e, handler, limiter)
}
