// Package authz holds the client-side role model: the closed set of roles,
// the permission strings, and the static role → permission table used to gate
// admin screens. The backend enforces authorization on its own; this table is a
// convenience layer only.
package authz

// Role is one of the fixed roles a user can hold.
type Role string

const (
	// RolePlatformAdmin spans all tenants and carries no tenant affiliation.
	RolePlatformAdmin Role = "platform_admin"
	// RoleTenantAdmin administers a single tenant.
	RoleTenantAdmin Role = "tenant_admin"
	// RoleUser works with content and jobs inside a single tenant.
	RoleUser Role = "user"
	// RoleViewer has read-only access inside a single tenant.
	RoleViewer Role = "viewer"
)

var allRoles = []Role{RolePlatformAdmin, RoleTenantAdmin, RoleUser, RoleViewer}

// AllRoles returns every known role in a stable order.
func AllRoles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// ParseRole maps a wire string to a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePlatformAdmin, RoleTenantAdmin, RoleUser, RoleViewer:
		return true
	}
	return false
}

// TenantScoped reports whether users with this role belong to exactly one tenant.
// Unknown roles are not tenant scoped.
func (r Role) TenantScoped() bool {
	switch r {
	case RoleTenantAdmin, RoleUser, RoleViewer:
		return true
	}
	return false
}

// IsAdmin reports whether r is one of the administrator roles.
func (r Role) IsAdmin() bool {
	return r == RolePlatformAdmin || r == RoleTenantAdmin
}

func (r Role) String() string { return string(r) }
