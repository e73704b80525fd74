// Package model defines domain entities shared by the session layer, the REST client and the backend.
package model

import (
	"time"

	"github.com/ieazie/doc-extract/internal/authz"
)

// UserStatus is the account state of a user.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

// TenantStatus is the lifecycle state of a tenant.
type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
)

// Tokens is the bearer credential returned by login. It is opaque to the client.
type Tokens struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// Credentials are submitted by the login form.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// User is the identity record of the signed-in account.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Role      authz.Role `json:"role"`
	Status    UserStatus `json:"status"`
	TenantID  *string    `json:"tenant_id,omitempty"` // nil for platform-wide admins
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// HasTenant reports whether the user is affiliated with a tenant.
func (u User) HasTenant() bool { return u.TenantID != nil && *u.TenantID != "" }

// TenantRef returns the affiliated tenant id or "".
func (u User) TenantRef() string {
	if u.TenantID == nil {
		return ""
	}
	return *u.TenantID
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Tenant is an isolated customer context.
type Tenant struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Settings    map[string]any `json:"settings,omitempty"` // opaque tenant configuration
	Status      TenantStatus   `json:"status"`
	Environment string         `json:"environment"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// LoginResult is the response of a successful remote login.
type LoginResult struct {
	Tokens
	User User `json:"user"`
}

// Account is a user as stored by the backend. Secrets never leave the server.
type Account struct {
	User
	PwdHash  []byte // Argon2id(password, SaltAuth)
	SaltAuth []byte // per-user auth salt
}

// Membership grants a user access to a tenant it may switch into.
type Membership struct {
	UserID   string
	TenantID string
}
