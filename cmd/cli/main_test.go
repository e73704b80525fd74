package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/ieazie/doc-extract/internal/authclient"
	"github.com/ieazie/doc-extract/internal/authz"
	"github.com/ieazie/doc-extract/internal/model"
)

// backend is a minimal stand-in for dx-authd.
type backend struct {
	mu     sync.Mutex
	user   model.User
	tenant map[string]model.Tenant
	tokens map[string]bool
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	b := &backend{
		user: model.User{ID: "u1", Email: "admin@acme.io", FirstName: "Alice", Role: authz.RoleTenantAdmin,
			Status: model.UserActive, TenantID: ptr("acme")},
		tenant: map[string]model.Tenant{
			"acme":   {ID: "acme", Name: "Acme", Status: model.TenantActive, Environment: "production"},
			"globex": {ID: "globex", Name: "Globex", Status: model.TenantActive, Environment: "staging"},
		},
		tokens: map[string]bool{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+authclient.PathLogin, b.login)
	mux.HandleFunc("GET "+authclient.PathMe, b.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, b.user)
	}))
	mux.HandleFunc("GET "+authclient.PathTenant, b.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, b.tenant[b.user.TenantRef()])
	}))
	mux.HandleFunc("POST "+authclient.PathSwitchTenant, b.authed(func(w http.ResponseWriter, r *http.Request) {
		var req authclient.SwitchTenantRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if _, ok := b.tenant[req.TenantID]; !ok {
			writeJSON(w, http.StatusNotFound, authclient.ErrorResponse{Error: "tenant not found"})
			return
		}
		b.user.TenantID = ptr(req.TenantID)
		w.WriteHeader(http.StatusNoContent)
	}))
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func (b *backend) login(w http.ResponseWriter, r *http.Request) {
	var c model.Credentials
	_ = json.NewDecoder(r.Body).Decode(&c)
	if c.Email != b.user.Email || c.Password != "s3cret-pass" {
		writeJSON(w, http.StatusUnauthorized, authclient.ErrorResponse{Error: "invalid credentials"})
		return
	}
	exp := time.Now().Add(time.Hour)
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   b.user.ID,
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key-test-key"))

	b.mu.Lock()
	b.tokens[tok] = true
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, model.LoginResult{
		Tokens: model.Tokens{AccessToken: tok, TokenType: "bearer", ExpiresIn: 3600},
		User:   b.user,
	})
}

func (b *backend) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		defer b.mu.Unlock()
		if !b.tokens[tok] {
			writeJSON(w, http.StatusUnauthorized, authclient.ErrorResponse{Error: "invalid token"})
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ptr[T any](v T) *T { return &v }

// writeConfig points the CLI at apiURL with a file store in a temp dir.
func writeConfig(t *testing.T, apiURL string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("api:\n  base-url: %s\nstore:\n  kind: file\n  dir: %s\nretry:\n  max-attempts: 1\nlog:\n  level: error\n",
		apiURL, filepath.Join(dir, "session"))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func dx(t *testing.T, cfg, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), append([]string{"--config", cfg}, args...), strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestCLI_SessionLifecycle(t *testing.T) {
	ts := newBackend(t)
	cfg := writeConfig(t, ts.URL)

	code, out, _ := dx(t, cfg, "", "whoami")
	require.Equal(t, 1, code)
	require.Empty(t, out)

	code, out, errOut := dx(t, cfg, "s3cret-pass\n", "login", "--email", "admin@acme.io", "--password-stdin")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "role:     tenant_admin")
	require.Contains(t, out, "tenant:   Acme (acme, production)")

	code, out, errOut = dx(t, cfg, "", "whoami", "--verify", "-o", "json")
	require.Equal(t, 0, code, errOut)
	var v sessionView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.True(t, v.Authenticated)
	require.True(t, v.Verified)
	require.Equal(t, "u1", v.User.ID)
	require.NotNil(t, v.ExpiresAt)
	require.WithinDuration(t, time.Now().Add(time.Hour), *v.ExpiresAt, 5*time.Minute)

	code, out, errOut = dx(t, cfg, "", "switch-tenant", "globex")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "Globex")

	code, _, errOut = dx(t, cfg, "", "switch-tenant", "nowhere")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "tenant switch rejected")

	code, out, _ = dx(t, cfg, "", "can", string(authz.PermUsersCreate), string(authz.PermTenantsCreate))
	require.Equal(t, 3, code)
	require.Contains(t, out, "users:create\tgranted")
	require.Contains(t, out, "tenants:create\tdenied")

	code, out, _ = dx(t, cfg, "", "permissions")
	require.Equal(t, 0, code)
	require.Len(t, strings.Fields(out), authz.PermissionsFor(authz.RoleTenantAdmin).Len())

	code, out, _ = dx(t, cfg, "", "logout")
	require.Equal(t, 0, code)
	require.Equal(t, "logged out\n", out)

	code, _, errOut = dx(t, cfg, "", "whoami")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "not authenticated")
}

func TestCLI_LoginRejected(t *testing.T) {
	ts := newBackend(t)
	cfg := writeConfig(t, ts.URL)

	code, _, errOut := dx(t, cfg, "", "login", "--email", "admin@acme.io", "--password", "wrong")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "unauthorized")

	code, _, _ = dx(t, cfg, "", "login", "--email", "admin@acme.io")
	require.Equal(t, 1, code)
}

func TestCLI_Roles(t *testing.T) {
	ts := newBackend(t)
	cfg := writeConfig(t, ts.URL)

	code, out, _ := dx(t, cfg, "", "roles", "--role", "viewer", "-o", "json")
	require.Equal(t, 0, code)
	var table map[authz.Role][]authz.Permission
	require.NoError(t, json.Unmarshal([]byte(out), &table))
	require.Equal(t, authz.PermissionsFor(authz.RoleViewer).List(), table[authz.RoleViewer])

	code, _, errOut := dx(t, cfg, "", "roles", "--role", "janitor")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "unknown role")
}

func TestCLI_BadConfig(t *testing.T) {
	code, _, errOut := dx(t, filepath.Join(t.TempDir(), "missing.yaml"), "", "whoami")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "read config file")
}

func TestTokenExpiry(t *testing.T) {
	require.Nil(t, tokenExpiry("opaque-token"))

	exp := time.Unix(1_900_000_000, 0)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	got := tokenExpiry(tok)
	require.NotNil(t, got)
	require.True(t, got.Equal(exp))
}

func TestReadPassword(t *testing.T) {
	pw, err := readPassword(strings.NewReader("hunter2\r\n"))
	require.NoError(t, err)
	require.Equal(t, "hunter2", pw)

	pw, err = readPassword(strings.NewReader("no-newline"))
	require.NoError(t, err)
	require.Equal(t, "no-newline", pw)

	_, err = readPassword(strings.NewReader("\n"))
	require.Error(t, err)
}
