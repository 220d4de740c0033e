package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// superAdminLockID keys the advisory lock serializing bootstrap creation.
const superAdminLockID int64 = 795021894

const userColumns = `id, email, username, firstname, lastname, password_hash,
	       roles, is_active, registration_token, reset_password_token,
	       reset_token_issued_at, created_at`

const superAdminExistsQuery = `
		SELECT EXISTS (
			SELECT 1
			FROM admin_users u
			JOIN admin_roles r ON r.id = ANY(u.roles)
			WHERE r.is_super_admin
		)`

// PostgresDirectory implements Directory using pgxpool.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory creates a Directory backed by the given connection pool.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.Firstname, &u.Lastname, &u.PasswordHash,
		&u.Roles, &u.IsActive, &u.RegistrationToken, &u.ResetPasswordToken,
		&u.ResetTokenIssuedAt, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user row: %w", err)
	}
	return &u, nil
}

// FindByID retrieves a single user by its UUID.
func (d *PostgresDirectory) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM admin_users WHERE id = $1`
	return scanUser(d.pool.QueryRow(ctx, query, id))
}

// FindByEmail retrieves a single user by email.
func (d *PostgresDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM admin_users WHERE email = $1`
	return scanUser(d.pool.QueryRow(ctx, query, email))
}

// FindByRegistrationToken retrieves a pending invited user by its
// registration token.
func (d *PostgresDirectory) FindByRegistrationToken(ctx context.Context, registrationToken string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM admin_users WHERE registration_token = $1`
	return scanUser(d.pool.QueryRow(ctx, query, registrationToken))
}

// FindByResetToken retrieves a user by its password-reset token.
func (d *PostgresDirectory) FindByResetToken(ctx context.Context, resetToken string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM admin_users WHERE reset_password_token = $1`
	return scanUser(d.pool.QueryRow(ctx, query, resetToken))
}

// SuperAdminExists reports whether any user holds a super-admin role.
func (d *PostgresDirectory) SuperAdminExists(ctx context.Context) (bool, error) {
	var exists bool
	if err := d.pool.QueryRow(ctx, superAdminExistsQuery).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking for super admin: %w", err)
	}
	return exists, nil
}

// Create inserts a new user record.
func (d *PostgresDirectory) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO admin_users (email, username, firstname, lastname, password_hash,
		                         roles, is_active, registration_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := d.pool.QueryRow(ctx, query,
		u.Email, u.Username, u.Firstname, u.Lastname, u.PasswordHash,
		u.Roles, u.IsActive, u.RegistrationToken,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// CreateSuperAdmin inserts the bootstrap super admin. An advisory transaction
// lock serializes concurrent bootstrap attempts; the existence check runs
// under the lock, so the loser of a race always observes the winner's insert.
func (d *PostgresDirectory) CreateSuperAdmin(ctx context.Context, u *User) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", superAdminLockID); err != nil {
		return fmt.Errorf("acquiring bootstrap lock: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, superAdminExistsQuery).Scan(&exists); err != nil {
		return fmt.Errorf("checking for super admin: %w", err)
	}
	if exists {
		return ErrSuperAdminExists
	}

	query := `
		INSERT INTO admin_users (email, username, firstname, lastname, password_hash,
		                         roles, is_active, registration_token)
		VALUES ($1, $2, $3, $4, $5, $6, true, NULL)
		RETURNING id, created_at`

	err = tx.QueryRow(ctx, query,
		u.Email, u.Username, u.Firstname, u.Lastname, u.PasswordHash, u.Roles,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("inserting super admin: %w", err)
	}
	u.IsActive = true
	u.RegistrationToken = nil

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing bootstrap transaction: %w", err)
	}

	return nil
}

// Activate turns a pending invited user into an active account.
func (d *PostgresDirectory) Activate(ctx context.Context, id uuid.UUID, firstname, lastname, passwordHash string) (*User, error) {
	query := `
		UPDATE admin_users
		SET firstname = $2, lastname = $3, password_hash = $4,
		    is_active = true, registration_token = NULL
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUser(d.pool.QueryRow(ctx, query, id, firstname, lastname, passwordHash))
}

// SetResetToken stores a fresh password-reset token on the user.
func (d *PostgresDirectory) SetResetToken(ctx context.Context, id uuid.UUID, resetToken string, issuedAt time.Time) error {
	query := `
		UPDATE admin_users
		SET reset_password_token = $2, reset_token_issued_at = $3
		WHERE id = $1`

	result, err := d.pool.Exec(ctx, query, id, resetToken, issuedAt)
	if err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ResetCredential replaces the stored credential and clears any reset token.
func (d *PostgresDirectory) ResetCredential(ctx context.Context, id uuid.UUID, passwordHash string) (*User, error) {
	query := `
		UPDATE admin_users
		SET password_hash = $2, reset_password_token = NULL, reset_token_issued_at = NULL
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUser(d.pool.QueryRow(ctx, query, id, passwordHash))
}

// PostgresRoleDirectory implements RoleDirectory using pgxpool.
type PostgresRoleDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresRoleDirectory creates a RoleDirectory backed by the given pool.
func NewPostgresRoleDirectory(pool *pgxpool.Pool) *PostgresRoleDirectory {
	return &PostgresRoleDirectory{pool: pool}
}

// GetSuperAdmin returns the super-admin role definition.
func (d *PostgresRoleDirectory) GetSuperAdmin(ctx context.Context) (*Role, error) {
	query := `SELECT id, name, is_super_admin FROM admin_roles WHERE is_super_admin LIMIT 1`

	var r Role
	err := d.pool.QueryRow(ctx, query).Scan(&r.ID, &r.Name, &r.IsSuperAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("querying super admin role: %w", err)
	}

	return &r, nil
}
