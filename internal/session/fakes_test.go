package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ieazie/doc-extract/internal/authclient"
	"github.com/ieazie/doc-extract/internal/authz"
	"github.com/ieazie/doc-extract/internal/errs"
	"github.com/ieazie/doc-extract/internal/model"
	"github.com/ieazie/doc-extract/internal/storage"
)

type fakeAuth struct {
	mu     sync.Mutex
	calls  map[string]int
	tokens []string

	login   func(ctx context.Context, c model.Credentials) (model.LoginResult, error)
	user    func(ctx context.Context) (model.User, error)
	tenant  func(ctx context.Context) (model.Tenant, error)
	switchT func(ctx context.Context, id string) error
}

var _ AuthService = (*fakeAuth)(nil)

func newFakeAuth() *fakeAuth { return &fakeAuth{calls: make(map[string]int)} }

func (f *fakeAuth) record(ctx context.Context, op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if op == "login" {
		return nil
	}
	tok, ok := authclient.AccessTokenFromCtx(ctx)
	if !ok {
		return errs.ErrNotAuthenticated
	}
	f.tokens = append(f.tokens, tok)
	return nil
}

func (f *fakeAuth) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAuth) Login(ctx context.Context, c model.Credentials) (model.LoginResult, error) {
	_ = f.record(ctx, "login")
	if f.login == nil {
		return model.LoginResult{}, errors.New("login not stubbed")
	}
	return f.login(ctx, c)
}

func (f *fakeAuth) CurrentUser(ctx context.Context) (model.User, error) {
	if err := f.record(ctx, "user"); err != nil {
		return model.User{}, err
	}
	if f.user == nil {
		return model.User{}, errors.New("user not stubbed")
	}
	return f.user(ctx)
}

func (f *fakeAuth) CurrentTenant(ctx context.Context) (model.Tenant, error) {
	if err := f.record(ctx, "tenant"); err != nil {
		return model.Tenant{}, err
	}
	if f.tenant == nil {
		return model.Tenant{}, errors.New("tenant not stubbed")
	}
	return f.tenant(ctx)
}

func (f *fakeAuth) SwitchTenant(ctx context.Context, id string) error {
	if err := f.record(ctx, "switch"); err != nil {
		return err
	}
	if f.switchT == nil {
		return errors.New("switch not stubbed")
	}
	return f.switchT(ctx, id)
}

// failingKV wraps a store and fails writes when failWrites is set.
// Reads of the unreadable key report storage.ErrUnreadable.
type failingKV struct {
	*storage.Memory
	failWrites bool
	unreadable string
}

var _ storage.KV = (*failingKV)(nil)

func (f *failingKV) Get(ctx context.Context, k string) (string, bool, error) {
	if k != "" && k == f.unreadable {
		if _, ok, _ := f.Memory.Get(ctx, k); ok {
			return "", false, fmt.Errorf("open %s: %w", k, storage.ErrUnreadable)
		}
	}
	return f.Memory.Get(ctx, k)
}

func (f *failingKV) Set(ctx context.Context, k, v string) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.Memory.Set(ctx, k, v)
}

func (f *failingKV) Remove(ctx context.Context, k string) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.Memory.Remove(ctx, k)
}

type countingNav struct {
	mu sync.Mutex
	n  int
}

func (c *countingNav) NavigateHome() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingNav) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func ptr[T any](v T) *T { return &v }

func tenantAdmin() model.User {
	return model.User{ID: "u1", Email: "admin@acme.io", Role: authz.RoleTenantAdmin, Status: model.UserActive, TenantID: ptr("t1")}
}

func platformAdmin() model.User {
	return model.User{ID: "u0", Email: "root@dx.io", Role: authz.RolePlatformAdmin, Status: model.UserActive}
}

func acme() model.Tenant {
	return model.Tenant{ID: "t1", Name: "Acme", Status: model.TenantActive, Environment: "production"}
}

func seed(t *testing.T, kv storage.KV, tokens model.Tokens, u model.User, tn *model.Tenant) {
	t.Helper()
	ctx := context.Background()
	put := func(k string, v any) {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", k, err)
		}
		if err := kv.Set(ctx, k, string(b)); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}
	put(storage.KeyTokens, tokens)
	put(storage.KeyUser, u)
	if tn != nil {
		put(storage.KeyTenant, tn)
	}
}

func stored(t *testing.T, kv storage.KV, key string) (string, bool) {
	t.Helper()
	v, ok, err := kv.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return v, ok
}

func requireEmptyStore(t *testing.T, kv storage.KV) {
	t.Helper()
	for _, k := range storage.SessionKeys {
		if _, ok := stored(t, kv, k); ok {
			t.Fatalf("key %s still persisted", k)
		}
	}
}
