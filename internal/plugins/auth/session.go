package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"

	"github.com/oakmund/gatehouse/internal/apperror"
	"github.com/oakmund/gatehouse/internal/identity"
)

// SessionService mints, resolves, and revokes per-device sessions. Each
// session is an Auth row; its slug is the opaque token the handler stores
// in the cookie. Resolution runs on every authenticated request, so it
// reads through the identity caches and fails soft: a bad token means
// "anonymous", never an error.
type SessionService interface {
	Login(ctx context.Context, user *User, client ClientInfo) (*Auth, error)
	Resolve(ctx context.Context, token string, ip string) (*User, *Auth, error)
	Revoke(ctx context.Context, token string, byUser *User) error
	Logout(ctx context.Context, token string) error
	ListSessions(ctx context.Context, user *User) ([]Auth, error)
	SweepExpired(ctx context.Context, maxAgeDays int) (int64, error)
	FlushCaches()
}

// sessionService implements SessionService.
type sessionService struct {
	auths AuthRepository
	users UserRepository

	// authCache maps session slug -> Auth; userCache maps user id -> User
	// and is shared with the credential service so its invalidations are
	// visible here.
	authCache *identity.Cache[string, *Auth]
	userCache *identity.Cache[string, *User]
}

// NewSessionService creates a session service around the given repositories
// and caches.
func NewSessionService(
	auths AuthRepository,
	users UserRepository,
	authCache *identity.Cache[string, *Auth],
	userCache *identity.Cache[string, *User],
) SessionService {
	return &sessionService{
		auths:     auths,
		users:     users,
		authCache: authCache,
		userCache: userCache,
	}
}

// Login mints or refreshes the device session for an already-authenticated
// user. A login without a user agent or IP is rejected outright -- those
// two facts seed the device fingerprint on first use and the audit trail
// afterwards. A repeat login from a known user agent touches the existing
// row instead of creating a duplicate.
func (s *sessionService) Login(ctx context.Context, user *User, client ClientInfo) (*Auth, error) {
	if client.UserAgent == "" || client.IP == "" {
		return nil, apperror.NewInvalidClient()
	}

	auth, err := s.auths.FindByUserAgent(ctx, user.ID, client.UserAgent)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, apperror.NewInternal(fmt.Errorf("finding auth: %w", err))
	}

	now := time.Now().UTC()

	if auth != nil {
		if err := s.auths.Touch(ctx, auth.ID, client.IP); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("touching auth: %w", err))
		}
		auth.IP = client.IP
		auth.LastSeen = now
		s.authCache.Invalidate(auth.Slug())
	} else {
		// Best effort: unknown agents degrade to empty labels, never fail
		// the login.
		ua := useragent.Parse(client.UserAgent)

		auth = &Auth{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			UserAgent: client.UserAgent,
			OS:        ua.OS,
			Browser:   ua.Name,
			Device:    ua.Device,
			IP:        client.IP,
			FirstSeen: now,
			LastSeen:  now,
		}

		if err := s.auths.Create(ctx, auth); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("creating auth: %w", err))
		}
	}

	// Last-login stamp is audit data, not a login precondition.
	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("failed to update last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("auth_id", auth.ID),
	)

	return auth, nil
}

// Resolve turns an opaque session token back into its owning user. Every
// authenticated request comes through here, so failures degrade to
// anonymous (nil user, nil error) for anything short of the store being
// down: malformed slugs, deleted sessions, vanished users. On success the
// session's last-seen/IP are touched, non-fatally.
func (s *sessionService) Resolve(ctx context.Context, token, ip string) (*User, *Auth, error) {
	ref, err := ParseSessionRef(token)
	if err != nil {
		return nil, nil, nil
	}

	auth, err := s.authCache.GetOrCompute(token, func() (*Auth, error) {
		return s.auths.FindByID(ctx, ref.UserID, ref.AuthID)
	})
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, apperror.NewInternal(fmt.Errorf("resolving auth: %w", err))
	}

	user, err := s.userCache.GetOrCompute(ref.UserID, func() (*User, error) {
		return s.users.FindByID(ctx, ref.UserID)
	})
	if err != nil {
		if apperror.IsNotFound(err) {
			// Session row outlived its user; drop the cached session too.
			s.authCache.Invalidate(token)
			return nil, nil, nil
		}
		return nil, nil, apperror.NewInternal(fmt.Errorf("resolving user: %w", err))
	}

	if err := s.auths.Touch(ctx, auth.ID, ip); err != nil {
		slog.Warn("failed to touch auth",
			slog.String("auth_id", auth.ID),
			slog.Any("error", err),
		)
	}

	return user, auth, nil
}

// Revoke deletes one of byUser's own sessions, from the active-sessions
// view. The decoded parent must equal byUser; anything else is Forbidden
// before the store is even consulted. The delete itself is also scoped to
// the owner, so a slug stitched together from someone else's session id
// can never remove that session.
func (s *sessionService) Revoke(ctx context.Context, token string, byUser *User) error {
	ref, err := ParseSessionRef(token)
	if err != nil {
		return apperror.NewBadRequest("Invalid session.")
	}

	if ref.UserID != byUser.ID {
		return apperror.NewForbidden("You can only revoke your own sessions.")
	}

	if err := s.auths.Delete(ctx, ref.UserID, ref.AuthID); err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting auth: %w", err))
	}

	s.authCache.Invalidate(token)

	slog.Info("session revoked",
		slog.String("user_id", byUser.ID),
		slog.String("auth_id", ref.AuthID),
	)

	return nil
}

// Logout removes the current session. A malformed token still logs out --
// the cookie is the caller's to clear, and there is nothing to delete.
func (s *sessionService) Logout(ctx context.Context, token string) error {
	ref, err := ParseSessionRef(token)
	if err != nil {
		return nil
	}

	if err := s.auths.Delete(ctx, ref.UserID, ref.AuthID); err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting auth: %w", err))
	}

	s.authCache.Invalidate(token)
	return nil
}

// ListSessions returns the user's device sessions for the active-sessions
// view, most recently used first.
func (s *sessionService) ListSessions(ctx context.Context, user *User) ([]Auth, error) {
	auths, err := s.auths.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing auths: %w", err))
	}
	return auths, nil
}

// SweepExpired batch-deletes sessions unused for more than maxAgeDays and
// returns the count removed. Zero removals is a normal outcome. Meant to
// be triggered on a schedule, not per-request.
func (s *sessionService) SweepExpired(ctx context.Context, maxAgeDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)

	n, err := s.auths.DeleteSeenBefore(ctx, cutoff)
	if err != nil {
		return 0, apperror.NewInternal(fmt.Errorf("sweeping auths: %w", err))
	}

	// The sweep doesn't know which tokens mapped to the deleted rows, so
	// any removal flushes the session cache wholesale. A swept session
	// lingering in cache would still resolve, which defeats the sweep.
	if n > 0 {
		s.authCache.Purge()
	}

	slog.Info("swept expired auths", slog.Int64("removed", n))
	return n, nil
}

// FlushCaches drops every cached identity. Wired to the admin emergency
// flush for use after out-of-band data fixes.
func (s *sessionService) FlushCaches() {
	s.authCache.Purge()
	s.userCache.Purge()
}
