package entitlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modulink/pkg/activation"
	"github.com/platinummonkey/modulink/pkg/audit"
	"github.com/platinummonkey/modulink/pkg/catalog"
	"github.com/platinummonkey/modulink/pkg/notify"
	"github.com/platinummonkey/modulink/pkg/storage/testdb"
)

func TestPurchase_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant, admin := f.tenant(t, "Acme", "IT001")

	first, created, err := f.engine.Purchase(ctx, tenant, moduleReports)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := f.engine.Purchase(ctx, tenant, moduleReports)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 1, testdb.Count(t, f.db,
		`SELECT COUNT(*) FROM activations WHERE tenant_id = $1 AND module_id = $2`, tenant, moduleReports))

	roles, err := f.engine.ModuleRoles(ctx, tenant, moduleReports)
	require.NoError(t, err)
	assert.Equal(t, []int64{admin}, roleIDs(roles), "first purchase grants the admin role")

	assert.Equal(t, []notify.EventType{notify.EventModulePurchased}, f.notes.types())
	assert.Eventually(t, func() bool {
		return f.audits.find(audit.EventTypeModulePurchase, audit.EventStatusSuccess) != nil
	}, time.Second, 10*time.Millisecond)
}

func TestPurchase_RepeatDoesNotTouchGrants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant, _ := f.tenant(t, "Acme", "IT001")
	analyst := f.role(t, tenant, "Analyst")

	f.purchase(t, tenant, moduleReports)
	_, err := f.engine.SetModuleRoles(ctx, tenant, moduleReports, []int64{analyst}, PolicyRevokeAll)
	require.NoError(t, err)

	_, created, err := f.engine.Purchase(ctx, tenant, moduleReports)
	require.NoError(t, err)
	assert.False(t, created)

	roles, err := f.engine.ModuleRoles(ctx, tenant, moduleReports)
	require.NoError(t, err)
	assert.Equal(t, []int64{analyst}, roleIDs(roles))
}

func TestPurchase_Concurrent(t *testing.T) {
	f := newFixture(t)
	tenant, _ := f.tenant(t, "Acme", "IT001")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, isNew, err := f.engine.Purchase(context.Background(), tenant, moduleInvoices)
			assert.NoError(t, err)
			if isNew {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, testdb.Count(t, f.db,
		`SELECT COUNT(*) FROM activations WHERE tenant_id = $1 AND module_id = $2`, tenant, moduleInvoices))
	assert.Equal(t, 1, testdb.Count(t, f.db, `
		SELECT COUNT(*) FROM pertinences p JOIN activations a ON a.id = p.activation_id
		WHERE a.tenant_id = $1 AND a.module_id = $2`, tenant, moduleInvoices))
}

func TestPurchase_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant, _ := f.tenant(t, "Acme", "IT001")

	t.Run("unknown module", func(t *testing.T) {
		_, _, err := f.engine.Purchase(ctx, tenant, 999)
		assert.ErrorIs(t, err, catalog.ErrModuleNotFound)
	})

	t.Run("tenant without admin role rolls back", func(t *testing.T) {
		bare := testdb.InsertTenant(t, f.db, "Bare", "IT999")
		_, _, err := f.engine.Purchase(ctx, bare, moduleReports)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrIntegrityViolation)

		var integrity *IntegrityError
		require.ErrorAs(t, err, &integrity)
		assert.Equal(t, ViolationMissingAdminRole, integrity.Kind)
		assert.Equal(t, 0, testdb.Count(t, f.db, `SELECT COUNT(*) FROM activations WHERE tenant_id = $1`, bare))
	})
}

func TestUninstall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant, _ := f.tenant(t, "Acme", "IT001")
	actID := f.purchase(t, tenant, moduleReports)

	t.Run("core module is locked", func(t *testing.T) {
		err := f.engine.Uninstall(ctx, tenant, moduleDashboard)
		assert.ErrorIs(t, err, activation.ErrModuleLocked)
		assert.Equal(t, 1, testdb.Count(t, f.db,
			`SELECT COUNT(*) FROM activations WHERE tenant_id = $1 AND module_id = $2`, tenant, moduleDashboard))
	})

	t.Run("not activated", func(t *testing.T) {
		err := f.engine.Uninstall(ctx, tenant, moduleInvoices)
		assert.ErrorIs(t, err, activation.ErrModuleNotActivated)
	})

	t.Run("unknown module", func(t *testing.T) {
		err := f.engine.Uninstall(ctx, tenant, 404)
		assert.ErrorIs(t, err, catalog.ErrModuleNotFound)
	})

	t.Run("removes activation and grants", func(t *testing.T) {
		require.NoError(t, f.engine.Uninstall(ctx, tenant, moduleReports))
		assert.Equal(t, 0, testdb.Count(t, f.db, `SELECT COUNT(*) FROM activations WHERE id = $1`, actID))
		assert.Equal(t, 0, testdb.Count(t, f.db, `SELECT COUNT(*) FROM pertinences WHERE activation_id = $1`, actID))
		assert.Contains(t, f.notes.types(), notify.EventModuleUninstalled)

		_, err := f.engine.ModuleRoles(ctx, tenant, moduleReports)
		assert.ErrorIs(t, err, activation.ErrModuleNotActivated)
	})
}

func TestListActivatedAndNotActivated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant, _ := f.tenant(t, "Acme", "IT001")
	other, _ := f.tenant(t, "Globex", "IT002")
	f.purchase(t, tenant, moduleReports)
	f.purchase(t, other, moduleInvoices)

	activated, err := f.engine.ListActivated(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, []int64{moduleDocuments, moduleCalendar, moduleReports}, moduleIDs(activated),
		"hidden core modules are not listed in the store")

	available, err := f.engine.ListNotActivated(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, []int64{moduleInvoices}, moduleIDs(available))

	// a tenant with nothing activated sees the whole visible catalog
	bare := testdb.InsertTenant(t, f.db, "Bare", "IT003")
	activated, err = f.engine.ListActivated(ctx, bare)
	require.NoError(t, err)
	assert.NotNil(t, activated)
	assert.Empty(t, activated)

	available, err = f.engine.ListNotActivated(ctx, bare)
	require.NoError(t, err)
	assert.Equal(t, []int64{moduleDocuments, moduleCalendar, moduleReports, moduleInvoices}, moduleIDs(available))
}

func TestPurchasedModuleSurvivesCatalogSync(t *testing.T) {
	f := newFixture(t, WithCache(NewMemoryCache(100, time.Minute)))
	ctx := context.Background()

	tenant, admin := f.tenant(t, "Acme", "IT001")
	owner := f.member(t, tenant, "owner@acme.test", admin)
	subject := Subject{UserID: owner, TenantID: tenant}
	f.purchase(t, tenant, moduleReports)

	before, err := f.engine.ListAccessible(ctx, subject)
	require.NoError(t, err)

	seed := &catalog.SeedFile{Modules: []catalog.Module{
		{ID: moduleReports, Name: "RENAMED", Route: "/dashboard/reports", Visible: false},
	}}
	require.ErrorIs(t, catalog.Sync(ctx, f.db, seed), catalog.ErrModuleReferenced)

	reports, err := catalog.NewStore(f.db).Get(ctx, moduleReports)
	require.NoError(t, err)
	assert.Equal(t, "reports", reports.Name)
	assert.True(t, reports.Visible)

	after, err := f.engine.ListAccessible(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, moduleIDs(before), moduleIDs(after))
	for _, m := range after {
		if m.ID == moduleReports {
			assert.Equal(t, "reports", m.Name)
		}
	}

	// a visible module stays uninstallable
	require.NoError(t, f.engine.Uninstall(ctx, tenant, moduleReports))
}
