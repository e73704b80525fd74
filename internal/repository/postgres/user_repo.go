package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ieazie/doc-extract/internal/authz"
	"github.com/ieazie/doc-extract/internal/errs"
	"github.com/ieazie/doc-extract/internal/model"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, first_name, last_name, role, status, tenant_id, pwd_hash, salt_auth, created_at, updated_at, last_login`

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO users (id, email, first_name, last_name, role, status, tenant_id, pwd_hash, salt_auth)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Pool.Exec(ctx, q, a.ID, a.Email, a.FirstName, a.LastName,
		string(a.Role), string(a.Status), a.TenantID, a.PwdHash, a.SaltAuth)
	switch {
	case isUniqueViolation(err):
		return errs.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return fmt.Errorf("tenant %s: %w", a.TenantRef(), errs.ErrNotFound)
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.Account, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanAccount(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanAccount(r.db.Pool.QueryRow(ctx, q, email))
}

// SetTenant points the user at another tenant.
func (r *UserRepo) SetTenant(ctx context.Context, userID, tenantID string) error {
	const q = `UPDATE users SET tenant_id = $2, updated_at = now() WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, userID, tenantID)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("tenant %s: %w", tenantID, errs.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// TouchLastLogin stores the time of the latest successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	const q = `UPDATE users SET last_login = $2 WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, q, userID, at)
	return err
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a      model.Account
		role   string
		status string
	)
	err := row.Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &role, &status, &a.TenantID,
		&a.PwdHash, &a.SaltAuth, &a.CreatedAt, &a.UpdatedAt, &a.LastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	a.Role = authz.Role(role)
	a.Status = model.UserStatus(status)
	return &a, nil
}
