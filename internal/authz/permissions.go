package authz

import (
	"fmt"
	"sort"
)

// Permission is an opaque capability string of the form "resource:action".
type Permission string

// Tenants and platform.
const (
	PermTenantsCreate Permission = "tenants:create"
	PermTenantsRead   Permission = "tenants:read"
	PermTenantsUpdate Permission = "tenants:update"
	PermTenantsDelete Permission = "tenants:delete"
	PermSystemConfig  Permission = "system:config"
)

// Analytics.
const (
	PermAnalyticsRead        Permission = "analytics:read"
	PermAnalyticsCrossTenant Permission = "analytics:cross_tenant"
)

// User management.
const (
	PermUsersCreate      Permission = "users:create"
	PermUsersRead        Permission = "users:read"
	PermUsersUpdate      Permission = "users:update"
	PermUsersDelete      Permission = "users:delete"
	PermUsersCrossTenant Permission = "users:cross_tenant"
)

// Tenant configuration (LLM, limits, settings).
const (
	PermTenantConfigLLM      Permission = "tenant_config:llm"
	PermTenantConfigLimits   Permission = "tenant_config:limits"
	PermTenantConfigSettings Permission = "tenant_config:settings"
)

// Content.
const (
	PermDocumentsCreate Permission = "documents:create"
	PermDocumentsRead   Permission = "documents:read"
	PermDocumentsUpdate Permission = "documents:update"
	PermDocumentsDelete Permission = "documents:delete"

	PermTemplatesCreate Permission = "templates:create"
	PermTemplatesRead   Permission = "templates:read"
	PermTemplatesUpdate Permission = "templates:update"
	PermTemplatesDelete Permission = "templates:delete"
)

// Extraction jobs.
const (
	PermJobsCreate  Permission = "jobs:create"
	PermJobsRead    Permission = "jobs:read"
	PermJobsUpdate  Permission = "jobs:update"
	PermJobsDelete  Permission = "jobs:delete"
	PermJobsExecute Permission = "jobs:execute"
)

// API keys.
const (
	PermAPIKeysCreate Permission = "api_keys:create"
	PermAPIKeysRead   Permission = "api_keys:read"
	PermAPIKeysUpdate Permission = "api_keys:update"
	PermAPIKeysDelete Permission = "api_keys:delete"
)

var (
	tenantCRUD    = []Permission{PermTenantsCreate, PermTenantsRead, PermTenantsUpdate, PermTenantsDelete}
	userCRUD      = []Permission{PermUsersCreate, PermUsersRead, PermUsersUpdate, PermUsersDelete}
	tenantConfig  = []Permission{PermTenantConfigLLM, PermTenantConfigLimits, PermTenantConfigSettings}
	documentCRUD  = []Permission{PermDocumentsCreate, PermDocumentsRead, PermDocumentsUpdate, PermDocumentsDelete}
	templateCRUD  = []Permission{PermTemplatesCreate, PermTemplatesRead, PermTemplatesUpdate, PermTemplatesDelete}
	jobCRUD       = []Permission{PermJobsCreate, PermJobsRead, PermJobsUpdate, PermJobsDelete, PermJobsExecute}
	apiKeyCRUD    = []Permission{PermAPIKeysCreate, PermAPIKeysRead, PermAPIKeysUpdate, PermAPIKeysDelete}
	analyticsRead = []Permission{PermAnalyticsRead}
)

// grants lists the static grants of each role. Every role in allRoles must have an entry.
var grants = map[Role][][]Permission{
	RolePlatformAdmin: {
		tenantCRUD,
		{PermSystemConfig, PermAnalyticsCrossTenant, PermUsersCrossTenant},
		analyticsRead,
		userCRUD,
		tenantConfig,
		documentCRUD,
		templateCRUD,
		jobCRUD,
		apiKeyCRUD,
	},
	RoleTenantAdmin: {
		userCRUD,
		tenantConfig,
		analyticsRead,
		documentCRUD,
		templateCRUD,
		jobCRUD,
		apiKeyCRUD,
	},
	RoleUser: {
		documentCRUD,
		templateCRUD,
		{PermJobsRead, PermJobsCreate, PermJobsUpdate, PermJobsExecute},
		analyticsRead,
	},
	RoleViewer: {
		{PermDocumentsRead, PermTemplatesRead, PermJobsRead},
		analyticsRead,
	},
}

// PermissionSet is an immutable set of permissions.
type PermissionSet struct {
	m map[Permission]struct{}
}

// Has reports whether p is granted. The zero PermissionSet grants nothing.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s.m[p]
	return ok
}

// Len returns the number of grants.
func (s PermissionSet) Len() int { return len(s.m) }

// List returns the grants sorted lexicographically.
func (s PermissionSet) List() []Permission {
	out := make([]Permission, 0, len(s.m))
	for p := range s.m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var table map[Role]PermissionSet

func init() {
	t, err := buildTable(allRoles, grants)
	if err != nil {
		panic(err)
	}
	table = t
}

// buildTable precomputes one set per role and fails on a role without grants.
func buildTable(roles []Role, g map[Role][][]Permission) (map[Role]PermissionSet, error) {
	out := make(map[Role]PermissionSet, len(roles))
	for _, r := range roles {
		groups, ok := g[r]
		if !ok {
			return nil, fmt.Errorf("authz: role %q has no permission table entry", r)
		}
		set := make(map[Permission]struct{})
		for _, grp := range groups {
			for _, p := range grp {
				set[p] = struct{}{}
			}
		}
		out[r] = PermissionSet{m: set}
	}
	return out, nil
}

// PermissionsFor returns the static grants for r. Unknown roles get the empty set.
func PermissionsFor(r Role) PermissionSet {
	return table[r]
}

// Allowed reports whether role r carries permission p.
func Allowed(r Role, p Permission) bool {
	return table[r].Has(p)
}
