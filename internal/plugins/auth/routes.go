package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/oakmund/gatehouse/internal/middleware"
)

// RegisterRoutes sets up all auth-related routes on the given Echo instance.
// WithUser runs globally (registered in app), so routes here only add the
// guards they need.
//
// Credential POSTs are rate-limited to blunt brute-force and credential
// stuffing: 10 login attempts per IP per minute, 5 for signup and the
// reset endpoints.
func RegisterRoutes(e *echo.Echo, h *Handler, limiter *middleware.RateLimiter) {
	// Anonymous-only credential routes.
	e.POST("/user/signup", h.Signup, RequireAnonymous(), limiter.Limit("signup", 5, time.Minute))
	e.POST("/user/login", h.Login, RequireAnonymous(), limiter.Limit("login", 10, time.Minute))
	e.POST("/user/forgotpassword", h.ForgotPassword, RequireAnonymous(), limiter.Limit("forgot", 5, time.Minute))
	e.POST("/user/resetpassword", h.ResetPassword, RequireAnonymous(), limiter.Limit("reset", 5, time.Minute))

	// Authenticated account routes.
	user := e.Group("/user", RequireUser())
	user.GET("", h.Me)
	user.POST("/logout", h.Logout)
	user.GET("/auths", h.ListSessions)
	user.POST("/auths/revoke", h.RevokeSession)
	user.POST("/email", h.ChangeEmail)
	user.POST("/password", h.ChangePassword)

	// Maintenance routes, admin-guarded. The sweep is meant to be hit by
	// a scheduler; the cache flush is a manual emergency lever.
	admin := e.Group("/admin", RequireAdmin())
	admin.POST("/auths/sweep", h.SweepSessions)
	admin.POST("/cache/flush", h.FlushCache)
}
