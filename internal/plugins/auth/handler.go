package auth

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/oakmund/gatehouse/internal/apperror"
)

// sessionCookieName is the HTTP cookie used to store the session slug.
const sessionCookieName = "gatehouse_auth"

// minPasswordLen is the minimum accepted password length.
const minPasswordLen = 8

// Handler handles HTTP requests for the credential lifecycle. Handlers are
// thin: they bind the request, call the services, and render the response.
// No business logic lives here.
type Handler struct {
	creds    CredentialService
	sessions SessionService

	// rememberDays is the cookie lifetime when "remember me" is checked.
	rememberDays int

	// sweepMaxAgeDays is the cutoff handed to the sweep task route.
	sweepMaxAgeDays int
}

// NewHandler creates a new auth handler.
func NewHandler(creds CredentialService, sessions SessionService, rememberDays, sweepMaxAgeDays int) *Handler {
	return &Handler{
		creds:           creds,
		sessions:        sessions,
		rememberDays:    rememberDays,
		sweepMaxAgeDays: sweepMaxAgeDays,
	}
}

// Signup creates an account and logs the new user in (POST /user/signup).
func (h *Handler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	if msg := validateSignup(&req); msg != "" {
		return apperror.NewValidation(msg)
	}

	user, err := h.creds.Signup(c.Request().Context(), SignupInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}

	if err := h.startSession(c, user, false); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, user)
}

// Login authenticates credentials and mints the device session (POST /user/login).
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if req.Email == "" || req.Password == "" {
		return apperror.NewValidation("Email and password are required.")
	}

	user, err := h.creds.Authenticate(c.Request().Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	if err := h.startSession(c, user, req.Remember); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

// Logout revokes the current session and clears the cookie (POST /user/logout).
func (h *Handler) Logout(c echo.Context) error {
	if token := getSessionToken(c); token != "" {
		if err := h.sessions.Logout(c.Request().Context(), token); err != nil {
			return err
		}
	}
	clearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user (GET /user).
func (h *Handler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, CurrentUser(c))
}

// sessionView is one row of the active-sessions list.
type sessionView struct {
	Auth
	Slug    string `json:"slug"`
	Current bool   `json:"current"`
}

// ListSessions returns the user's device sessions (GET /user/auths), with
// the request's own session marked so the UI can label it.
func (h *Handler) ListSessions(c echo.Context) error {
	user := CurrentUser(c)
	current := getSessionToken(c)

	auths, err := h.sessions.ListSessions(c.Request().Context(), user)
	if err != nil {
		return err
	}

	views := make([]sessionView, 0, len(auths))
	for _, a := range auths {
		slug := a.Slug()
		views = append(views, sessionView{
			Auth:    a,
			Slug:    slug,
			Current: slug == current,
		})
	}

	return c.JSON(http.StatusOK, views)
}

// RevokeSession revokes one of the user's sessions (POST /user/auths/revoke).
// Revoking the current session also clears the cookie.
func (h *Handler) RevokeSession(c echo.Context) error {
	var req RevokeSessionRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if req.Slug == "" {
		return apperror.NewValidation("Session is required.")
	}

	if err := h.sessions.Revoke(c.Request().Context(), req.Slug, CurrentUser(c)); err != nil {
		return err
	}

	if req.Slug == getSessionToken(c) {
		clearSessionCookie(c)
	}

	return c.NoContent(http.StatusNoContent)
}

// ChangeEmail updates the account email (POST /user/email).
func (h *Handler) ChangeEmail(c echo.Context) error {
	var req ChangeEmailRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if req.Password == "" {
		return apperror.NewValidation("Current password is required.")
	}
	if !validEmail(req.Email) {
		return apperror.NewValidation("A valid email address is required.")
	}

	if err := h.creds.ChangeEmail(c.Request().Context(), CurrentUser(c), req.Password, req.Email); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// ChangePassword replaces the account password (POST /user/password).
func (h *Handler) ChangePassword(c echo.Context) error {
	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if req.Password == "" {
		return apperror.NewValidation("Current password is required.")
	}
	if len(req.NewPassword) < minPasswordLen {
		return apperror.NewValidation("New password must be at least 8 characters.")
	}

	if err := h.creds.ChangePassword(c.Request().Context(), CurrentUser(c), req.Password, req.NewPassword); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// ForgotPassword starts the reset flow (POST /user/forgotpassword).
// The response is the same whether or not the account exists.
func (h *Handler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if !validEmail(req.Email) {
		return apperror.NewValidation("A valid email address is required.")
	}

	if err := h.creds.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Your password reset email has been sent. For security purposes it will expire in one hour.",
	})
}

// ResetPassword completes the reset flow and logs the user in with the new
// credential (POST /user/resetpassword).
func (h *Handler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if len(req.Password) < minPasswordLen {
		return apperror.NewValidation("New password must be at least 8 characters.")
	}

	user, err := h.creds.ResetPassword(c.Request().Context(), req.Key, req.Token, req.Password)
	if err != nil {
		return err
	}

	if err := h.startSession(c, user, false); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

// --- Admin / maintenance ---

// SweepSessions deletes device sessions unused past the cutoff
// (POST /admin/auths/sweep). Intended for a scheduler, admin-guarded.
func (h *Handler) SweepSessions(c echo.Context) error {
	removed, err := h.sessions.SweepExpired(c.Request().Context(), h.sweepMaxAgeDays)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"removed": removed})
}

// FlushCache drops every identity cache entry (POST /admin/cache/flush).
// Emergency lever for after out-of-band data fixes.
func (h *Handler) FlushCache(c echo.Context) error {
	h.sessions.FlushCaches()
	return c.NoContent(http.StatusNoContent)
}

// --- Session cookie plumbing ---

// startSession mints the device session for user and sets the cookie.
func (h *Handler) startSession(c echo.Context, user *User, remember bool) error {
	auth, err := h.sessions.Login(c.Request().Context(), user, ClientInfo{
		UserAgent: c.Request().UserAgent(),
		IP:        c.RealIP(),
	})
	if err != nil {
		return err
	}

	setSessionCookie(c, auth.Slug(), remember, h.rememberDays)
	return nil
}

// getSessionToken extracts the session slug from the request cookie.
func getSessionToken(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// setSessionCookie stores the session slug. With remember the cookie
// persists for rememberDays; otherwise it is session-only.
func setSessionCookie(c echo.Context, token string, remember bool, rememberDays int) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		cookie.Expires = time.Now().AddDate(0, 0, rememberDays)
	}
	c.SetCookie(cookie)
}

// clearSessionCookie expires the session cookie.
func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// --- Validation helpers ---

// validateSignup returns an error message for the first failed check, or
// empty when the request is acceptable.
func validateSignup(req *SignupRequest) string {
	if strings.TrimSpace(req.FirstName) == "" {
		return "First name is required."
	}
	if strings.TrimSpace(req.LastName) == "" {
		return "Last name is required."
	}
	if !validEmail(req.Email) {
		return "A valid email address is required."
	}
	if len(req.Password) < minPasswordLen {
		return "Password must be at least 8 characters."
	}
	return ""
}

// validEmail reports whether s parses as a bare RFC 5322 address.
func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
