package httpapi

import (
	"context"
	"fmt"
	"sync"

	"github.com/ieazie/doc-extract/internal/authz"
	"github.com/ieazie/doc-extract/internal/errs"
	"github.com/ieazie/doc-extract/internal/model"
	"github.com/ieazie/doc-extract/internal/service"
)

// fakeAuth is an in-memory service.AuthService keyed by password and token.
type fakeAuth struct {
	mu        sync.Mutex
	passwords map[string]string // email -> password
	users     map[string]model.User
	tenants   map[string]model.Tenant
	members   map[string][]string // user -> tenants
	tokens    map[string]string   // token -> user
	issued    int
	limited   bool
	panicOn   string
}

var _ service.AuthService = (*fakeAuth)(nil)

func ptr[T any](v T) *T { return &v }

func newFakeAuth() *fakeAuth {
	f := &fakeAuth{
		passwords: map[string]string{},
		users:     map[string]model.User{},
		tenants:   map[string]model.Tenant{},
		members:   map[string][]string{},
		tokens:    map[string]string{},
	}
	f.tenants["t1"] = model.Tenant{ID: "t1", Name: "Acme", Status: model.TenantActive, Environment: "production"}
	f.tenants["t2"] = model.Tenant{ID: "t2", Name: "Globex", Status: model.TenantActive, Environment: "staging"}
	f.tenants["t3"] = model.Tenant{ID: "t3", Name: "Initech", Status: model.TenantSuspended}

	f.passwords["admin@acme.io"] = "s3cret-pass"
	f.users["u1"] = model.User{ID: "u1", Email: "admin@acme.io", Role: authz.RoleTenantAdmin, Status: model.UserActive, TenantID: ptr("t1")}
	f.members["u1"] = []string{"t1", "t2"}

	f.passwords["root@dx.io"] = "root-pass"
	f.users["u0"] = model.User{ID: "u0", Email: "root@dx.io", Role: authz.RolePlatformAdmin, Status: model.UserActive}
	return f
}

func (f *fakeAuth) Login(_ context.Context, c model.Credentials, _ string) (model.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn == "login" {
		panic("login exploded")
	}
	if f.limited {
		return model.LoginResult{}, errs.ErrRateLimited
	}
	if c.Email == "" || c.Password == "" {
		return model.LoginResult{}, errs.ErrInvalidInput
	}
	if pw, ok := f.passwords[c.Email]; !ok || pw != c.Password {
		return model.LoginResult{}, errs.ErrUnauthorized
	}
	for id, u := range f.users {
		if u.Email == c.Email {
			f.issued++
			tok := fmt.Sprintf("tok-%d", f.issued)
			f.tokens[tok] = id
			return model.LoginResult{
				Tokens: model.Tokens{AccessToken: tok, TokenType: service.TokenType, ExpiresIn: 3600},
				User:   u,
			}, nil
		}
	}
	return model.LoginResult{}, errs.ErrUnauthorized
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	if !ok {
		return "", errs.ErrUnauthorized
	}
	return id, nil
}

// revoke invalidates every token issued to userID.
func (f *fakeAuth) revoke(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for tok, id := range f.tokens {
		if id == userID {
			delete(f.tokens, tok)
		}
	}
}

func (f *fakeAuth) CurrentUser(_ context.Context, userID string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return model.User{}, errs.ErrUnauthorized
	}
	return u, nil
}

func (f *fakeAuth) CurrentTenant(_ context.Context, userID string) (model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return model.Tenant{}, errs.ErrUnauthorized
	}
	t, ok := f.tenants[u.TenantRef()]
	if !ok {
		return model.Tenant{}, errs.ErrNotFound
	}
	return t, nil
}

func (f *fakeAuth) SwitchTenant(_ context.Context, userID, tenantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return errs.ErrUnauthorized
	}
	t, ok := f.tenants[tenantID]
	if !ok {
		return fmt.Errorf("%w: %w", errs.ErrTenantSwitch, errs.ErrNotFound)
	}
	if t.Status != model.TenantActive {
		return errs.ErrTenantSwitch
	}
	if u.Role != authz.RolePlatformAdmin {
		allowed := false
		for _, id := range f.members[userID] {
			allowed = allowed || id == tenantID
		}
		if !allowed {
			return errs.ErrTenantSwitch
		}
	}
	u.TenantID = ptr(tenantID)
	f.users[userID] = u
	return nil
}

func (f *fakeAuth) Register(context.Context, service.NewAccount) (string, error) {
	return "", fmt.Errorf("%w: registration disabled", errs.ErrInvalidInput)
}
