package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ieazie/doc-extract/internal/errs"
	"github.com/ieazie/doc-extract/internal/model"
	"github.com/jackc/pgx/v5"
)

// TenantRepo implements TenantRepository using PostgreSQL.
type TenantRepo struct{ db *DB }

// NewTenantRepo constructs a tenant repository.
func NewTenantRepo(db *DB) *TenantRepo { return &TenantRepo{db: db} }

// Create inserts a new tenant row.
func (r *TenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	const q = `
INSERT INTO tenants (id, name, settings, status, environment)
VALUES ($1, $2, $3, $4, $5)`
	_, err = r.db.Pool.Exec(ctx, q, t.ID, t.Name, settings, string(t.Status), t.Environment)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a tenant by ID.
func (r *TenantRepo) GetByID(ctx context.Context, id string) (*model.Tenant, error) {
	const q = `
SELECT id, name, settings, status, environment, created_at, updated_at
FROM tenants WHERE id=$1`
	var (
		t        model.Tenant
		settings []byte
		status   string
	)
	err := r.db.Pool.QueryRow(ctx, q, id).
		Scan(&t.ID, &t.Name, &settings, &status, &t.Environment, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
	}
	t.Status = model.TenantStatus(status)
	return &t, nil
}

// AddMember inserts a membership, ignoring duplicates.
func (r *TenantRepo) AddMember(ctx context.Context, m model.Membership) error {
	const q = `
INSERT INTO user_tenants (user_id, tenant_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING`
	_, err := r.db.Pool.Exec(ctx, q, m.UserID, m.TenantID)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("membership %s/%s: %w", m.UserID, m.TenantID, errs.ErrNotFound)
	}
	return err
}

// IsMember reports whether a membership row exists.
func (r *TenantRepo) IsMember(ctx context.Context, m model.Membership) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM user_tenants WHERE user_id=$1 AND tenant_id=$2)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, m.UserID, m.TenantID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
