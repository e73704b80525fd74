package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRole_ParseAndScope(t *testing.T) {
	t.Parallel()

	for _, r := range AllRoles() {
		got, ok := ParseRole(string(r))
		if !ok || got != r {
			t.Fatalf("ParseRole(%q) = %q, %v", r, got, ok)
		}
	}
	if _, ok := ParseRole("superuser"); ok {
		t.Fatalf("unknown role must not parse")
	}

	if RolePlatformAdmin.TenantScoped() {
		t.Fatalf("platform admin must not be tenant scoped")
	}
	for _, r := range []Role{RoleTenantAdmin, RoleUser, RoleViewer} {
		if !r.TenantScoped() {
			t.Fatalf("%s must be tenant scoped", r)
		}
	}
	if Role("ghost").TenantScoped() {
		t.Fatalf("unknown role must not be tenant scoped")
	}
	if !RolePlatformAdmin.IsAdmin() || !RoleTenantAdmin.IsAdmin() || RoleUser.IsAdmin() || RoleViewer.IsAdmin() {
		t.Fatalf("IsAdmin mismatch")
	}
}

func TestTable_EveryRoleHasGrants(t *testing.T) {
	t.Parallel()

	for _, r := range AllRoles() {
		require.NotZero(t, PermissionsFor(r).Len(), "role %s", r)
	}
}

func TestTable_UnknownRoleFailsClosed(t *testing.T) {
	t.Parallel()

	for _, r := range []Role{"", "root", "PLATFORM_ADMIN"} {
		set := PermissionsFor(r)
		require.Zero(t, set.Len())
		require.False(t, set.Has(PermDocumentsRead))
		require.False(t, Allowed(r, PermAnalyticsRead))
	}
	var zero PermissionSet
	require.False(t, zero.Has(PermDocumentsRead))
	require.Empty(t, zero.List())
}

func TestTable_Contract(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role    Role
		allow   []Permission
		deny    []Permission
		exactly int
	}{
		{
			role: RolePlatformAdmin,
			allow: []Permission{
				PermTenantsCreate, PermTenantsDelete, PermSystemConfig,
				PermAnalyticsCrossTenant, PermUsersCrossTenant, PermUsersDelete,
				PermDocumentsDelete, PermJobsExecute, PermAPIKeysCreate, PermTenantConfigLLM,
			},
			exactly: 32,
		},
		{
			role: RoleTenantAdmin,
			allow: []Permission{
				PermUsersCreate, PermUsersDelete, PermTenantConfigLLM, PermTenantConfigLimits,
				PermTenantConfigSettings, PermAnalyticsRead, PermDocumentsUpdate,
				PermJobsDelete, PermAPIKeysDelete,
			},
			deny: []Permission{
				PermTenantsCreate, PermTenantsRead, PermSystemConfig,
				PermAnalyticsCrossTenant, PermUsersCrossTenant,
			},
			exactly: 25,
		},
		{
			role: RoleUser,
			allow: []Permission{
				PermDocumentsCreate, PermDocumentsDelete, PermTemplatesUpdate,
				PermJobsRead, PermJobsCreate, PermJobsUpdate, PermJobsExecute, PermAnalyticsRead,
			},
			deny: []Permission{
				PermJobsDelete, PermUsersRead, PermAPIKeysCreate, PermTenantConfigLLM, PermSystemConfig,
			},
			exactly: 13,
		},
		{
			role:  RoleViewer,
			allow: []Permission{PermDocumentsRead, PermTemplatesRead, PermJobsRead, PermAnalyticsRead},
			deny: []Permission{
				PermDocumentsCreate, PermDocumentsUpdate, PermJobsCreate, PermJobsExecute, PermUsersRead,
			},
			exactly: 4,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.role), func(t *testing.T) {
			t.Parallel()
			set := PermissionsFor(tc.role)
			for _, p := range tc.allow {
				require.True(t, set.Has(p), "%s should have %s", tc.role, p)
			}
			for _, p := range tc.deny {
				require.False(t, set.Has(p), "%s should not have %s", tc.role, p)
			}
			require.Equal(t, tc.exactly, set.Len())
		})
	}
}

func TestPermissionSet_ListSorted(t *testing.T) {
	t.Parallel()

	got := PermissionsFor(RoleViewer).List()
	want := []Permission{PermAnalyticsRead, PermDocumentsRead, PermJobsRead, PermTemplatesRead}
	require.Equal(t, want, got)
}

func TestBuildTable_MissingRoleIsError(t *testing.T) {
	t.Parallel()

	_, err := buildTable([]Role{RoleViewer, "auditor"}, grants)
	if err == nil {
		t.Fatalf("want error for role without grants")
	}
}
