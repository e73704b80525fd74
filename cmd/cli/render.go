package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ieazie/doc-extract/internal/authz"
	"github.com/ieazie/doc-extract/internal/model"
)

// sessionView is what login, whoami and the tenant commands print.
type sessionView struct {
	Authenticated bool               `json:"authenticated"`
	Verified      bool               `json:"verified"`
	User          *model.User        `json:"user,omitempty"`
	Tenant        *model.Tenant      `json:"tenant,omitempty"`
	Permissions   []authz.Permission `json:"permissions"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
}

func newSessionView(u *model.User, t *model.Tenant, tok *model.Tokens, verified bool, perms []authz.Permission) sessionView {
	v := sessionView{
		Authenticated: u != nil && tok != nil,
		Verified:      verified,
		User:          u,
		Tenant:        t,
		Permissions:   perms,
	}
	if tok != nil {
		v.ExpiresAt = tokenExpiry(tok.AccessToken)
	}
	return v
}

// tokenExpiry reads exp from a JWT without verifying it. The token is opaque
// to the client, so anything that is not a JWT yields nil.
func tokenExpiry(token string) *time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	t := claims.ExpiresAt.Time
	return &t
}

func (a *app) render(w io.Writer, v sessionView) error {
	if a.output == "json" {
		return printJSON(w, v)
	}
	if !v.Authenticated {
		_, err := fmt.Fprintln(w, "not logged in")
		return err
	}
	u := v.User
	name := u.FullName()
	if name == "" {
		name = u.Email
	}
	fmt.Fprintf(w, "user:     %s <%s> (%s)\n", name, u.Email, u.ID)
	fmt.Fprintf(w, "role:     %s\n", u.Role)
	if v.Tenant != nil {
		fmt.Fprintf(w, "tenant:   %s (%s, %s)\n", v.Tenant.Name, v.Tenant.ID, v.Tenant.Environment)
	} else {
		fmt.Fprintln(w, "tenant:   -")
	}
	fmt.Fprintf(w, "verified: %t\n", v.Verified)
	if v.ExpiresAt != nil {
		fmt.Fprintf(w, "expires:  %s\n", v.ExpiresAt.Local().Format(time.RFC3339))
	}
	_, err := fmt.Fprintf(w, "perms:    %d\n", len(v.Permissions))
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
