package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oakmund/gatehouse/internal/apperror"
	"github.com/oakmund/gatehouse/internal/identity"
)

// --- Mock Repositories ---

// mockUserRepo implements UserRepository for testing.
type mockUserRepo struct {
	createFn          func(ctx context.Context, user *User) error
	findByIDFn        func(ctx context.Context, id string) (*User, error)
	findByEmailFn     func(ctx context.Context, email string) (*User, error)
	emailExistsFn     func(ctx context.Context, email string) (bool, error)
	updateEmailFn     func(ctx context.Context, id, email string) error
	updatePasswordFn  func(ctx context.Context, id, salt, hash string) error
	updateLastLoginFn func(ctx context.Context, id string) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.emailExistsFn != nil {
		return m.emailExistsFn(ctx, email)
	}
	return false, nil
}

func (m *mockUserRepo) UpdateEmail(ctx context.Context, id, email string) error {
	if m.updateEmailFn != nil {
		return m.updateEmailFn(ctx, id, email)
	}
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, salt, hash string) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, id, salt, hash)
	}
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string) error {
	if m.updateLastLoginFn != nil {
		return m.updateLastLoginFn(ctx, id)
	}
	return nil
}

// mockAuthRepo implements AuthRepository for testing.
type mockAuthRepo struct {
	createFn           func(ctx context.Context, auth *Auth) error
	findByIDFn         func(ctx context.Context, userID, authID string) (*Auth, error)
	findByUserAgentFn  func(ctx context.Context, userID, userAgent string) (*Auth, error)
	listByUserFn       func(ctx context.Context, userID string) ([]Auth, error)
	touchFn            func(ctx context.Context, authID, ip string) error
	deleteFn           func(ctx context.Context, userID, authID string) error
	deleteSeenBeforeFn func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockAuthRepo) Create(ctx context.Context, auth *Auth) error {
	if m.createFn != nil {
		return m.createFn(ctx, auth)
	}
	return nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, userID, authID string) (*Auth, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, userID, authID)
	}
	return nil, apperror.NewNotFound("session not found")
}

func (m *mockAuthRepo) FindByUserAgent(ctx context.Context, userID, userAgent string) (*Auth, error) {
	if m.findByUserAgentFn != nil {
		return m.findByUserAgentFn(ctx, userID, userAgent)
	}
	return nil, apperror.NewNotFound("session not found")
}

func (m *mockAuthRepo) ListByUser(ctx context.Context, userID string) ([]Auth, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockAuthRepo) Touch(ctx context.Context, authID, ip string) error {
	if m.touchFn != nil {
		return m.touchFn(ctx, authID, ip)
	}
	return nil
}

func (m *mockAuthRepo) Delete(ctx context.Context, userID, authID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, authID)
	}
	return nil
}

func (m *mockAuthRepo) DeleteSeenBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteSeenBeforeFn != nil {
		return m.deleteSeenBeforeFn(ctx, cutoff)
	}
	return 0, nil
}

// --- Mock Mail Sender ---

// mockMailSender implements MailSender for testing.
type mockMailSender struct {
	sendMailFn func(ctx context.Context, to []string, subject, body string) error
	// Capture fields for assertions.
	lastTo      []string
	lastSubject string
	lastBody    string
	sendCount   int
}

func (m *mockMailSender) SendMail(ctx context.Context, to []string, subject, body string) error {
	m.lastTo = to
	m.lastSubject = subject
	m.lastBody = body
	m.sendCount++
	if m.sendMailFn != nil {
		return m.sendMailFn(ctx, to, subject, body)
	}
	return nil
}

// --- Test Helpers ---

// testHasher is shared across tests; deriving a PBKDF2 digest is expensive,
// so tests reuse one precomputed credential where the password value itself
// doesn't matter.
var testHasher = NewHasher("test-pepper")

const testPassword = "correct-horse-battery"

var testSalt, testDigest = mustTestCredential()

func mustTestCredential() (string, string) {
	salt, digest, err := testHasher.NewCredential(testPassword)
	if err != nil {
		panic(err)
	}
	return salt, digest
}

// newTestCredentialService builds a credentialService on mocks with a small
// identity cache.
func newTestCredentialService(repo *mockUserRepo, mail *mockMailSender) *credentialService {
	return &credentialService{
		repo:    repo,
		hasher:  testHasher,
		reset:   NewResetTokenIssuer("test-reset-pepper", time.Hour),
		mailer:  mail,
		users:   identity.New[string, *User](16),
		baseURL: "https://gatehouse.example.com",
	}
}

// newTestSessionService builds a sessionService on mocks with fresh caches.
func newTestSessionService(auths *mockAuthRepo, users *mockUserRepo) *sessionService {
	return &sessionService{
		auths:     auths,
		users:     users,
		authCache: identity.New[string, *Auth](16),
		userCache: identity.New[string, *User](16),
	}
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}
