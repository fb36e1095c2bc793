package entitlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modulink/pkg/catalog"
	"github.com/platinummonkey/modulink/pkg/rbac"
	"github.com/platinummonkey/modulink/pkg/storage/testdb"
	"github.com/platinummonkey/modulink/pkg/tenants"
)

func TestBootstrapTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant := testdb.InsertTenant(t, f.db, "Acme", "IT001")
	owner := testdb.InsertUser(t, f.db, tenant, "owner@acme.test")

	result, err := f.engine.BootstrapTenant(ctx, tenant, owner)
	require.NoError(t, err)
	require.Len(t, result.SystemRoles, 3)
	assert.Equal(t, rbac.KindAdmin, result.AdminRole.Kind)
	assert.Equal(t, "Responsabile", result.AdminRole.Name)
	require.Len(t, result.Activations, 4)

	for _, moduleID := range DefaultModules {
		ok, err := f.engine.CanAccess(ctx, Subject{UserID: owner, TenantID: tenant}, moduleID)
		require.NoError(t, err)
		assert.True(t, ok, "owner reaches default module %d", moduleID)
	}

	again, err := f.engine.BootstrapTenant(ctx, tenant, owner)
	require.NoError(t, err)
	assert.Equal(t, result.AdminRole.ID, again.AdminRole.ID)
	assert.Equal(t, 3, testdb.Count(t, f.db, `SELECT COUNT(*) FROM roles WHERE tenant_id = $1`, tenant))
	assert.Equal(t, 4, testdb.Count(t, f.db, `SELECT COUNT(*) FROM activations WHERE tenant_id = $1`, tenant))
	assert.Equal(t, 4, testdb.Count(t, f.db, `SELECT COUNT(*) FROM pertinences WHERE role_id = $1`, result.AdminRole.ID))
	assert.Equal(t, 1, testdb.Count(t, f.db, `SELECT COUNT(*) FROM affiliations WHERE user_id = $1`, owner))
}

func TestBootstrapTenant_RepairsMissingGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant, admin := f.tenant(t, "Acme", "IT001")

	_, err := f.engine.SetModuleRoles(ctx, tenant, moduleDocuments, nil, PolicyRevokeAll)
	require.NoError(t, err)

	_, err = f.engine.BootstrapTenant(ctx, tenant, 0)
	require.NoError(t, err)

	roles, err := f.engine.ModuleRoles(ctx, tenant, moduleDocuments)
	require.NoError(t, err)
	assert.Equal(t, []int64{admin}, roleIDs(roles))
}

func TestBootstrapTenant_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("unknown tenant", func(t *testing.T) {
		_, err := f.engine.BootstrapTenant(ctx, 999, 0)
		assert.ErrorIs(t, err, tenants.ErrTenantNotFound)
	})

	t.Run("owner of another tenant", func(t *testing.T) {
		tenant := testdb.InsertTenant(t, f.db, "Acme", "IT001")
		other := testdb.InsertTenant(t, f.db, "Globex", "IT002")
		outsider := testdb.InsertUser(t, f.db, other, "x@globex.test")

		_, err := f.engine.BootstrapTenant(ctx, tenant, outsider)
		assert.ErrorIs(t, err, tenants.ErrUserNotFound)
		assert.Equal(t, 0, testdb.Count(t, f.db, `SELECT COUNT(*) FROM roles WHERE tenant_id = $1`, tenant), "rolled back")
	})

	t.Run("default module missing from catalog", func(t *testing.T) {
		engine := NewEngine(f.db, WithDefaultModules([]int64{moduleDashboard, 77}))
		tenant := testdb.InsertTenant(t, f.db, "Initech", "IT003")

		_, err := engine.BootstrapTenant(ctx, tenant, 0)
		assert.ErrorIs(t, err, catalog.ErrModuleNotFound)
		assert.Equal(t, 0, testdb.Count(t, f.db, `SELECT COUNT(*) FROM activations WHERE tenant_id = $1`, tenant))
	})
}
