package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oakmund/gatehouse/internal/apperror"
	"github.com/oakmund/gatehouse/internal/identity"
)

// MailSender is the outbound email contract. The auth plugin only ever
// hands over a recipient, subject, and body -- whether delivery is
// synchronous or queued is the mailer's business.
type MailSender interface {
	SendMail(ctx context.Context, to []string, subject, body string) error
}

// CredentialService owns user identity and password credentials: signup,
// password verification, email/password changes, and the reset flow.
// Every read goes through the user identity cache and every mutation
// invalidates it in the same method -- invalidation is never left to
// callers.
type CredentialService interface {
	Signup(ctx context.Context, input SignupInput) (*User, error)
	Authenticate(ctx context.Context, input LoginInput) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	ChangeEmail(ctx context.Context, user *User, password, newEmail string) error
	ChangePassword(ctx context.Context, user *User, current, newPassword string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, key, token, newPassword string) (*User, error)
}

// credentialService implements CredentialService.
type credentialService struct {
	repo    UserRepository
	hasher  *Hasher
	reset   *ResetTokenIssuer
	mailer  MailSender
	users   *identity.Cache[string, *User]
	baseURL string
}

// NewCredentialService creates a credential service. The users cache is
// shared with the session service so a password change invalidates the
// identity that session resolution reads.
func NewCredentialService(
	repo UserRepository,
	hasher *Hasher,
	reset *ResetTokenIssuer,
	mailer MailSender,
	users *identity.Cache[string, *User],
	baseURL string,
) CredentialService {
	return &credentialService{
		repo:    repo,
		hasher:  hasher,
		reset:   reset,
		mailer:  mailer,
		users:   users,
		baseURL: baseURL,
	}
}

// Signup creates a new user account. The existence pre-check gives the
// friendly error before the expensive hashing; the unique index in the
// store closes the race two concurrent signups would otherwise win together.
func (s *credentialService) Signup(ctx context.Context, input SignupInput) (*User, error) {
	email := strings.TrimSpace(input.Email)

	exists, err := s.repo.EmailExists(ctx, strings.ToLower(email))
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		return nil, apperror.NewEmailInUse()
	}

	salt, hash, err := s.hasher.NewCredential(input.Password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        email,
		PasswordSalt: salt,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		// The unique index maps a lost race to EmailInUse here.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user signed up",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// Authenticate verifies an email/password pair. An unknown email and a
// wrong password produce the same error so the response never reveals
// which one it was.
func (s *credentialService) Authenticate(ctx context.Context, input LoginInput) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewCredentialMismatch()
		}
		return nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if !s.hasher.Verify(input.Password, user.PasswordSalt, user.PasswordHash) {
		return nil, apperror.NewCredentialMismatch()
	}

	return user, nil
}

// GetUser resolves a user by id through the identity cache.
func (s *credentialService) GetUser(ctx context.Context, id string) (*User, error) {
	return s.users.GetOrCompute(id, func() (*User, error) {
		return s.repo.FindByID(ctx, id)
	})
}

// ChangeEmail updates the account's email after re-verifying the current
// password and re-checking uniqueness.
func (s *credentialService) ChangeEmail(ctx context.Context, user *User, password, newEmail string) error {
	if !s.hasher.Verify(password, user.PasswordSalt, user.PasswordHash) {
		return apperror.NewCredentialMismatch()
	}

	newEmail = strings.TrimSpace(newEmail)
	lower := strings.ToLower(newEmail)

	if lower != strings.ToLower(user.Email) {
		exists, err := s.repo.EmailExists(ctx, lower)
		if err != nil {
			return apperror.NewInternal(fmt.Errorf("checking email: %w", err))
		}
		if exists {
			return apperror.NewEmailInUse()
		}
	}

	if err := s.repo.UpdateEmail(ctx, user.ID, newEmail); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperror.NewInternal(fmt.Errorf("updating email: %w", err))
	}

	s.users.Invalidate(user.ID)

	slog.Info("email changed", slog.String("user_id", user.ID))
	return nil
}

// ChangePassword replaces the account credential after re-verifying the
// current password. A fresh salt is generated; the old salt/hash pair is
// gone for good, and every outstanding reset token dies with it because
// tokens are derived from the stored digest.
func (s *credentialService) ChangePassword(ctx context.Context, user *User, current, newPassword string) error {
	if !s.hasher.Verify(current, user.PasswordSalt, user.PasswordHash) {
		return apperror.NewCredentialMismatch()
	}

	return s.setPassword(ctx, user.ID, newPassword)
}

// setPassword generates a fresh credential, persists it, and invalidates
// the cached identity in the same logical unit.
func (s *credentialService) setPassword(ctx context.Context, userID, password string) error {
	salt, hash, err := s.hasher.NewCredential(password)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	if err := s.repo.UpdatePassword(ctx, userID, salt, hash); err != nil {
		return apperror.NewInternal(fmt.Errorf("updating password: %w", err))
	}

	s.users.Invalidate(userID)

	slog.Info("password changed", slog.String("user_id", userID))
	return nil
}

// ForgotPassword starts the reset flow. Whether or not the email belongs
// to an account, the caller sees the same silent success -- only the
// account holder's inbox learns the difference.
func (s *credentialService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	token := s.reset.Issue(user, time.Now().UTC())
	link := fmt.Sprintf("%s/user/resetpassword?key=%s&token=%s",
		strings.TrimRight(s.baseURL, "/"),
		url.QueryEscape(user.ID),
		url.QueryEscape(token),
	)

	body := fmt.Sprintf(
		"Hello %s,\r\n\r\n"+
			"Someone requested a password reset for this address. If that was\r\n"+
			"you, open the link below to choose a new password. The link expires\r\n"+
			"in about an hour.\r\n\r\n%s\r\n\r\n"+
			"If you didn't request this, you can ignore this email.\r\n",
		user.FirstName, link,
	)

	// Delivery problems shouldn't leak to the requester either; log and
	// report success.
	if err := s.mailer.SendMail(ctx, []string{user.Email}, "Reset Password", body); err != nil {
		slog.Warn("failed to send reset email",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	return nil
}

// ResetPassword completes the reset flow. Key lookup failures and token
// mismatches collapse into one error; a reset link must not reveal whether
// it merely expired or was never valid.
func (s *credentialService) ResetPassword(ctx context.Context, key, token, newPassword string) (*User, error) {
	if key == "" || token == "" {
		return nil, apperror.NewInvalidToken()
	}

	user, err := s.repo.FindByID(ctx, key)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewInvalidToken()
		}
		return nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if !s.reset.Validate(user, token, time.Now().UTC()) {
		return nil, apperror.NewInvalidToken()
	}

	if err := s.setPassword(ctx, user.ID, newPassword); err != nil {
		return nil, err
	}

	// Re-read so the caller logs in against the fresh credential.
	updated, err := s.repo.FindByID(ctx, user.ID)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("reloading user: %w", err))
	}

	return updated, nil
}
