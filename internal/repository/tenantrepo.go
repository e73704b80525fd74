package repository

import (
	"context"

	"github.com/ieazie/doc-extract/internal/model"
)

// TenantRepository provides access to tenants and user memberships.
type TenantRepository interface {
	// Create inserts a new tenant.
	Create(ctx context.Context, t *model.Tenant) error
	// GetByID loads a tenant by ID.
	GetByID(ctx context.Context, id string) (*model.Tenant, error)
	// AddMember grants a user access to a tenant. Repeated grants are no-ops.
	AddMember(ctx context.Context, m model.Membership) error
	// IsMember reports whether the user may switch into the tenant.
	IsMember(ctx context.Context, m model.Membership) (bool, error)
}
