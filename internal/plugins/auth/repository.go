package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/oakmund/gatehouse/internal/apperror"
)

// mysqlDuplicateEntry is the MariaDB error number for a UNIQUE violation.
// The unique index on users.email is the atomic backstop behind the
// friendlier pre-check in the service layer.
const mysqlDuplicateEntry = 1062

// UserRepository defines the data access contract for user records.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateEmail(ctx context.Context, id, email string) error
	UpdatePassword(ctx context.Context, id, salt, hash string) error
	UpdateLastLogin(ctx context.Context, id string) error
}

// AuthRepository defines the data access contract for device sessions.
// Auth rows are children of exactly one user; every lookup carries the
// owning user's id so a row can never be addressed across owners.
type AuthRepository interface {
	Create(ctx context.Context, auth *Auth) error
	FindByID(ctx context.Context, userID, authID string) (*Auth, error)
	FindByUserAgent(ctx context.Context, userID, userAgent string) (*Auth, error)
	ListByUser(ctx context.Context, userID string) ([]Auth, error)
	Touch(ctx context.Context, authID, ip string) error
	Delete(ctx context.Context, userID, authID string) error
	DeleteSeenBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// userRepository implements UserRepository with hand-written MariaDB queries.
type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository backed by the given DB pool.
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, first_name, last_name, email, password_salt, password_hash,
	                 is_admin, is_dev, created_at, updated_at, last_login_at`

// scanUser reads one user row from a QueryRow result.
func scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordSalt,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.IsDev,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create inserts a new user row. A duplicate email surfaces as EmailInUse
// even if two signups race past the service-level existence check.
func (r *userRepository) Create(ctx context.Context, user *User) error {
	query := `INSERT INTO users (id, first_name, last_name, email, password_salt,
	                             password_hash, is_admin, is_dev, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordSalt,
		user.PasswordHash,
		user.IsAdmin,
		user.IsDev,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isDuplicateEntry(err) {
		return apperror.NewEmailInUse()
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// FindByID retrieves a user by their UUID.
// Returns apperror.NotFound if no user exists with this ID.
func (r *userRepository) FindByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("querying user by id: %w", err)
	}
	return user, err
}

// FindByEmail retrieves a user by email. Callers pass the address already
// lowercased; the stored value keeps its original case for display, so the
// comparison lowercases the column. Returns apperror.NotFound on no match --
// a normal outcome used for existence checks, not an exceptional one.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	return user, err
}

// EmailExists returns true if a user with the given (lowercased) email
// already exists. Used during signup to check for duplicates before the
// expensive password hashing.
func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}

	return exists, nil
}

// UpdateEmail changes a user's email address. The unique index backstops
// the service-level duplicate check here too.
func (r *userRepository) UpdateEmail(ctx context.Context, id, email string) error {
	query := `UPDATE users SET email = ?, updated_at = NOW() WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, email, id)
	if isDuplicateEntry(err) {
		return apperror.NewEmailInUse()
	}
	if err != nil {
		return fmt.Errorf("updating email: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return apperror.NewNotFound("user not found")
	}
	return nil
}

// UpdatePassword stores a fresh salt and digest pair. The old pair is
// overwritten, never kept.
func (r *userRepository) UpdatePassword(ctx context.Context, id, salt, hash string) error {
	query := `UPDATE users SET password_salt = ?, password_hash = ?, updated_at = NOW()
	          WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, salt, hash, id)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return apperror.NewNotFound("user not found")
	}
	return nil
}

// UpdateLastLogin sets the last_login_at timestamp to now for the given user.
func (r *userRepository) UpdateLastLogin(ctx context.Context, id string) error {
	query := `UPDATE users SET last_login_at = NOW() WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}

// isDuplicateEntry reports whether err is a MariaDB UNIQUE violation.
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

// authRepository implements AuthRepository with hand-written MariaDB queries.
type authRepository struct {
	db *sql.DB
}

// NewAuthRepository creates a new session repository backed by the given DB pool.
func NewAuthRepository(db *sql.DB) AuthRepository {
	return &authRepository{db: db}
}

const authColumns = `id, user_id, user_agent, os, browser, device, ip, first_seen, last_seen`

// scanAuth reads one auth row from a QueryRow result.
func scanAuth(row *sql.Row) (*Auth, error) {
	auth := &Auth{}
	err := row.Scan(
		&auth.ID,
		&auth.UserID,
		&auth.UserAgent,
		&auth.OS,
		&auth.Browser,
		&auth.Device,
		&auth.IP,
		&auth.FirstSeen,
		&auth.LastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("session not found")
	}
	if err != nil {
		return nil, err
	}
	return auth, nil
}

// Create inserts a new device session row.
func (r *authRepository) Create(ctx context.Context, auth *Auth) error {
	query := `INSERT INTO auths (id, user_id, user_agent, os, browser, device, ip,
	                             first_seen, last_seen)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		auth.ID,
		auth.UserID,
		auth.UserAgent,
		auth.OS,
		auth.Browser,
		auth.Device,
		auth.IP,
		auth.FirstSeen,
		auth.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("inserting auth: %w", err)
	}

	return nil
}

// FindByID retrieves a session by id, scoped to its owning user. A row
// whose parent doesn't match is indistinguishable from a missing row.
func (r *authRepository) FindByID(ctx context.Context, userID, authID string) (*Auth, error) {
	query := `SELECT ` + authColumns + ` FROM auths WHERE id = ? AND user_id = ?`

	auth, err := scanAuth(r.db.QueryRowContext(ctx, query, authID, userID))
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("querying auth by id: %w", err)
	}
	return auth, err
}

// FindByUserAgent retrieves the session for a (user, user agent) pairing.
// At most one exists; login reuses it rather than minting a duplicate.
func (r *authRepository) FindByUserAgent(ctx context.Context, userID, userAgent string) (*Auth, error) {
	query := `SELECT ` + authColumns + ` FROM auths WHERE user_id = ? AND user_agent = ?`

	auth, err := scanAuth(r.db.QueryRowContext(ctx, query, userID, userAgent))
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("querying auth by user agent: %w", err)
	}
	return auth, err
}

// ListByUser returns all device sessions for a user, most recently used first.
func (r *authRepository) ListByUser(ctx context.Context, userID string) ([]Auth, error) {
	query := `SELECT ` + authColumns + ` FROM auths WHERE user_id = ? ORDER BY last_seen DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing auths: %w", err)
	}
	defer rows.Close()

	var auths []Auth
	for rows.Next() {
		var a Auth
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.UserAgent, &a.OS, &a.Browser, &a.Device,
			&a.IP, &a.FirstSeen, &a.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("scanning auth row: %w", err)
		}
		auths = append(auths, a)
	}

	return auths, rows.Err()
}

// Touch records a successful use of the session: current IP, fresh last_seen.
func (r *authRepository) Touch(ctx context.Context, authID, ip string) error {
	query := `UPDATE auths SET ip = ?, last_seen = NOW() WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, ip, authID); err != nil {
		return fmt.Errorf("touching auth: %w", err)
	}
	return nil
}

// Delete removes a session row, scoped to its owner so a forged slug can
// never address another user's session. Deleting an already-gone row is a
// no-op.
func (r *authRepository) Delete(ctx context.Context, userID, authID string) error {
	query := `DELETE FROM auths WHERE id = ? AND user_id = ?`

	if _, err := r.db.ExecContext(ctx, query, authID, userID); err != nil {
		return fmt.Errorf("deleting auth: %w", err)
	}
	return nil
}

// DeleteSeenBefore batch-deletes sessions unused since the cutoff and
// returns how many went. Zero is a normal outcome.
func (r *authRepository) DeleteSeenBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM auths WHERE last_seen < ?`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeping auths: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting swept auths: %w", err)
	}
	return n, nil
}
