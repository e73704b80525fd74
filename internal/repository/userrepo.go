// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/ieazie/doc-extract/internal/model"
)

// UserRepository provides access to user accounts.
type UserRepository interface {
	// Create inserts a new account.
	Create(ctx context.Context, a *model.Account) error
	// GetByID loads an account by ID.
	GetByID(ctx context.Context, id string) (*model.Account, error)
	// GetByEmail loads an account by email.
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	// SetTenant changes the user's current tenant.
	SetTenant(ctx context.Context, userID, tenantID string) error
	// TouchLastLogin records a successful login time.
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}
