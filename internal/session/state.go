package session

import (
	"github.com/ieazie/doc-extract/internal/authz"
	"github.com/ieazie/doc-extract/internal/model"
)

// Phase is the lifecycle position of a session.
type Phase int

const (
	// PhaseUninitialized is the state before Initialize.
	PhaseUninitialized Phase = iota
	// PhaseRestoring is set while the persisted session is being read.
	PhaseRestoring
	// PhaseUnauthenticated means no user is signed in.
	PhaseUnauthenticated
	// PhaseAuthenticated means a user and tokens are present.
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseRestoring:
		return "restoring"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// State is an immutable snapshot of the session.
//
// User and Tokens are both set exactly when Phase is PhaseAuthenticated.
// Verified is false while an optimistically restored session awaits
// confirmation by the backend.
type State struct {
	Phase       Phase
	Verified    bool
	User        *model.User
	Tenant      *model.Tenant
	Tokens      *model.Tokens
	Permissions []authz.Permission
}

// IsAuthenticated reports whether a user is signed in.
func (s State) IsAuthenticated() bool { return s.Phase == PhaseAuthenticated }

// IsLoading reports whether the session is not yet known.
func (s State) IsLoading() bool {
	return s.Phase == PhaseUninitialized || s.Phase == PhaseRestoring
}

// core is the mutable session data guarded by Manager.mu.
type core struct {
	phase    Phase
	verified bool
	user     *model.User
	tenant   *model.Tenant
	tokens   *model.Tokens
}

func (c *core) reset(phase Phase) {
	*c = core{phase: phase}
}

func (c *core) authenticate(tokens model.Tokens, user model.User, tenant *model.Tenant, verified bool) {
	c.phase = PhaseAuthenticated
	c.verified = verified
	c.tokens = &tokens
	c.user = &user
	c.tenant = cloneTenant(tenant)
}

func (c *core) snapshot() State {
	s := State{Phase: c.phase, Verified: c.verified}
	if c.phase != PhaseAuthenticated || c.user == nil || c.tokens == nil {
		if c.phase == PhaseAuthenticated {
			s.Phase = PhaseUnauthenticated
		}
		s.Verified = false
		return s
	}
	u, tk := *c.user, *c.tokens
	s.User, s.Tokens = &u, &tk
	s.Tenant = cloneTenant(c.tenant)
	s.Permissions = authz.PermissionsFor(u.Role).List()
	return s
}

func cloneTenant(t *model.Tenant) *model.Tenant {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
