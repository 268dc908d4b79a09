// Package auth owns user accounts and their credential lifecycle for
// Gatehouse: signup, login, per-device sessions, email/password changes,
// and password reset. Sessions are capability tokens -- the cookie holds an
// opaque slug that only resolves through a server-side Auth row, so a
// session can always be revoked and never forged without the store.
//
// This is the heart of the application; everything else is glue around it.
package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents one registered account. This is the domain model used
// throughout the application. Database scanning uses this struct directly.
type User struct {
	ID           string     `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	PasswordSalt string     `json:"-"` // Never expose.
	PasswordHash string     `json:"-"` // Never expose.
	IsAdmin      bool       `json:"is_admin"`
	IsDev        bool       `json:"is_dev"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Auth represents one authenticated device/session lineage for a User.
// A repeat login from the same user agent updates the existing row instead
// of creating a duplicate, so there is at most one Auth per (user, user
// agent) pairing.
type Auth struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	UserAgent string    `json:"user_agent"`
	OS        string    `json:"os"`
	Browser   string    `json:"browser"`
	Device    string    `json:"device"`
	IP        string    `json:"ip"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Slug returns the opaque token handed to the cookie layer for this Auth.
func (a *Auth) Slug() string {
	return SessionRef{UserID: a.UserID, AuthID: a.ID}.Encode()
}

// --- Session reference (typed slug) ---

// SessionRef is the decoded form of a session slug: the owning user's id
// plus the Auth row's id. Encoding both lets Revoke verify ownership before
// touching the store and lets Resolve reject a token whose parent doesn't
// match its row.
type SessionRef struct {
	UserID string
	AuthID string
}

// Encode renders the reference as a URL-safe opaque string.
func (r SessionRef) Encode() string {
	return base64.RawURLEncoding.EncodeToString([]byte(r.UserID + "." + r.AuthID))
}

// ParseSessionRef decodes a slug back into a SessionRef. A malformed slug
// is an expected input (stale or tampered cookie) -- callers treat the
// error as "not logged in", never as a failure.
func ParseSessionRef(slug string) (SessionRef, error) {
	raw, err := base64.RawURLEncoding.DecodeString(slug)
	if err != nil {
		return SessionRef{}, fmt.Errorf("decoding session slug: %w", err)
	}

	userID, authID, ok := strings.Cut(string(raw), ".")
	if !ok {
		return SessionRef{}, fmt.Errorf("session slug missing separator")
	}
	if _, err := uuid.Parse(userID); err != nil {
		return SessionRef{}, fmt.Errorf("session slug user id: %w", err)
	}
	if _, err := uuid.Parse(authID); err != nil {
		return SessionRef{}, fmt.Errorf("session slug auth id: %w", err)
	}

	return SessionRef{UserID: userID, AuthID: authID}, nil
}

// --- Request DTOs (bound from HTTP requests) ---

// SignupRequest holds the data submitted by the signup form.
type SignupRequest struct {
	FirstName string `json:"first_name" form:"first_name"`
	LastName  string `json:"last_name" form:"last_name"`
	Email     string `json:"email" form:"email"`
	Password  string `json:"password" form:"password"`
}

// LoginRequest holds the data submitted by the login form.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Remember bool   `json:"remember" form:"remember"`
}

// ChangeEmailRequest requires the current password alongside the new address.
type ChangeEmailRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// ChangePasswordRequest requires the current password alongside the new one.
type ChangePasswordRequest struct {
	Password    string `json:"password" form:"password"`
	NewPassword string `json:"new_password" form:"new_password"`
}

// ForgotPasswordRequest starts the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email"`
}

// ResetPasswordRequest completes the reset flow. Key is the user's id from
// the emailed link; Token is the windowed reset token.
type ResetPasswordRequest struct {
	Key      string `json:"key" form:"key" query:"key"`
	Token    string `json:"token" form:"token" query:"token"`
	Password string `json:"password" form:"password"`
}

// RevokeSessionRequest names the session slug to revoke.
type RevokeSessionRequest struct {
	Slug string `json:"slug" form:"slug"`
}

// --- Service input DTOs (passed from handler to service) ---

// SignupInput is the validated input for creating a new user.
type SignupInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// LoginInput is the validated input for authenticating a user.
type LoginInput struct {
	Email    string
	Password string
}

// ClientInfo carries the request-scoped device facts a login needs.
// Both fields are required: they seed the device fingerprint on first use
// and the audit trail afterwards.
type ClientInfo struct {
	UserAgent string
	IP        string
}
