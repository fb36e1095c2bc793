package entitlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modulink/pkg/audit"
	"github.com/platinummonkey/modulink/pkg/observability"
	"github.com/platinummonkey/modulink/pkg/storage/testdb"
)

func TestCanAccess_JoinCorrectness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant, _ := f.tenant(t, "Acme", "IT001")
	analyst := f.role(t, tenant, "Analyst")
	user := f.member(t, tenant, "u@acme.test", analyst)
	subject := Subject{UserID: user, TenantID: tenant}

	f.purchase(t, tenant, moduleReports)

	ok, err := f.engine.CanAccess(ctx, subject, moduleReports)
	require.NoError(t, err)
	assert.False(t, ok, "only the admin role is granted after purchase")

	_, err = f.engine.SetModuleRoles(ctx, tenant, moduleReports, []int64{analyst}, PolicyFallbackToAdmin)
	require.NoError(t, err)
	ok, err = f.engine.CanAccess(ctx, subject, moduleReports)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.engine.SetModuleRoles(ctx, tenant, moduleReports, nil, PolicyRevokeAll)
	require.NoError(t, err)
	ok, err = f.engine.CanAccess(ctx, subject, moduleReports)
	require.NoError(t, err)
	assert.False(t, ok, "removing the grant revokes access")

	_, err = f.engine.SetModuleRoles(ctx, tenant, moduleReports, []int64{analyst}, PolicyRevokeAll)
	require.NoError(t, err)
	require.NoError(t, f.engine.Uninstall(ctx, tenant, moduleReports))
	ok, err = f.engine.CanAccess(ctx, subject, moduleReports)
	require.NoError(t, err)
	assert.False(t, ok, "an uninstalled module is never accessible")
}

func TestCanAccess_NoSuperuserBypass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant, admin := f.tenant(t, "Acme", "IT001")
	owner := f.member(t, tenant, "owner@acme.test", admin)
	subject := Subject{UserID: owner, TenantID: tenant}

	ok, err := f.engine.CanAccess(ctx, subject, moduleReports)
	require.NoError(t, err)
	assert.False(t, ok, "admin cannot open a module the tenant never bought")

	f.purchase(t, tenant, moduleReports)
	ok, err = f.engine.CanAccess(ctx, subject, moduleReports)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.engine.SetModuleRoles(ctx, tenant, moduleReports, nil, PolicyRevokeAll)
	require.NoError(t, err)
	ok, err = f.engine.CanAccess(ctx, subject, moduleReports)
	require.NoError(t, err)
	assert.False(t, ok, "admin access comes only from grants")
}

func TestCanAccess_OtherTenantsActivationIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1, admin1 := f.tenant(t, "T1", "IT001")
	t2, _ := f.tenant(t, "T2", "IT002")
	owner := f.member(t, t1, "owner@t1.test", admin1)

	f.purchase(t, t2, moduleReports)

	ok, err := f.engine.CanAccess(ctx, Subject{UserID: owner, TenantID: t1}, moduleReports)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanAccess_IntegrityViolations(t *testing.T) {
	t.Run("cross-tenant affiliation", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := observability.NewMetrics(registry)
		f := newFixture(t, WithMetrics(metrics))
		ctx := context.Background()
		t1, _ := f.tenant(t, "T1", "IT001")
		t2, admin2 := f.tenant(t, "T2", "IT002")
		f.purchase(t, t2, moduleReports)

		user := testdb.InsertUser(t, f.db, t1, "u@t1.test")
		testdb.Link(t, f.db, user, admin2)

		ok, err := f.engine.CanAccess(ctx, Subject{UserID: user, TenantID: t1}, moduleReports)
		assert.False(t, ok)
		require.ErrorIs(t, err, ErrIntegrityViolation)

		var integrity *IntegrityError
		require.ErrorAs(t, err, &integrity)
		assert.Equal(t, ViolationCrossTenantAffiliation, integrity.Kind)
		assert.Equal(t, t1, integrity.TenantID)
		assert.Equal(t, t2, integrity.OtherTenantID)
		assert.Equal(t, admin2, integrity.RoleID)

		_, err = f.engine.ListAccessible(ctx, Subject{UserID: user, TenantID: t1})
		assert.ErrorIs(t, err, ErrIntegrityViolation)

		assert.Equal(t, 2.0, testutil.ToFloat64(metrics.IntegrityViolations.WithLabelValues(string(ViolationCrossTenantAffiliation))))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AccessDecisionsTotal.WithLabelValues("can_access", observability.DecisionError)))

		var logged bool
		for _, entry := range f.logs.AllEntries() {
			if entry.Level == logrus.ErrorLevel && entry.Data["kind"] == ViolationCrossTenantAffiliation {
				logged = true
			}
		}
		assert.True(t, logged, "violation is logged at error level")
	})

	t.Run("cross-tenant pertinence", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		t1, _ := f.tenant(t, "T1", "IT001")
		t2, _ := f.tenant(t, "T2", "IT002")
		analyst := f.role(t, t1, "Analyst")
		user := f.member(t, t1, "u@t1.test", analyst)

		foreignAct := f.purchase(t, t2, moduleReports)
		testdb.Grant(t, f.db, analyst, foreignAct)

		_, err := f.engine.CanAccess(ctx, Subject{UserID: user, TenantID: t1}, moduleReports)
		var integrity *IntegrityError
		require.ErrorAs(t, err, &integrity)
		assert.Equal(t, ViolationCrossTenantPertinence, integrity.Kind)
		assert.Equal(t, foreignAct, integrity.ActivationID)

		_, err = f.engine.ModuleRoles(ctx, t2, moduleReports)
		assert.ErrorIs(t, err, ErrIntegrityViolation)
	})
}

func TestListAccessible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant, admin := f.tenant(t, "Acme", "IT001")
	analyst := f.role(t, tenant, "Analyst")
	owner := f.member(t, tenant, "owner@acme.test", admin, analyst)
	worker := f.member(t, tenant, "w@acme.test", analyst)
	nobody := f.member(t, tenant, "n@acme.test")

	f.purchase(t, tenant, moduleReports)
	f.purchase(t, tenant, moduleInvoices)
	_, err := f.engine.SetModuleRoles(ctx, tenant, moduleInvoices, []int64{admin, analyst}, PolicyRevokeAll)
	require.NoError(t, err)

	modules, err := f.engine.ListAccessible(ctx, Subject{UserID: owner, TenantID: tenant})
	require.NoError(t, err)
	assert.Equal(t,
		[]int64{moduleDashboard, moduleProfile, moduleDocuments, moduleCalendar, moduleReports, moduleInvoices},
		moduleIDs(modules), "hidden modules included, each module once")

	modules, err = f.engine.ListAccessible(ctx, Subject{UserID: worker, TenantID: tenant})
	require.NoError(t, err)
	assert.Equal(t, []int64{moduleInvoices}, moduleIDs(modules))

	modules, err = f.engine.ListAccessible(ctx, Subject{UserID: nobody, TenantID: tenant})
	require.NoError(t, err)
	assert.NotNil(t, modules)
	assert.Empty(t, modules)
}

func TestCanAccess_ConcurrentReaders(t *testing.T) {
	f := newFixture(t, WithCache(NewMemoryCache(100, 0)))
	tenant, admin := f.tenant(t, "Acme", "IT001")
	owner := f.member(t, tenant, "owner@acme.test", admin)
	subject := Subject{UserID: owner, TenantID: tenant}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.engine.CanAccess(context.Background(), subject, moduleDocuments)
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()
}

func TestIsTenantAdmin_CrossTenantAffiliation(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	f := newFixture(t, WithMetrics(metrics))
	ctx := context.Background()
	t1, _ := f.tenant(t, "T1", "IT001")
	t2, admin2 := f.tenant(t, "T2", "IT002")

	user := testdb.InsertUser(t, f.db, t1, "u@t1.test")
	testdb.Link(t, f.db, user, admin2)

	for _, tenantID := range []int64{t1, t2} {
		ok, err := f.engine.IsTenantAdmin(ctx, Subject{UserID: user, TenantID: tenantID})
		assert.False(t, ok)
		require.ErrorIs(t, err, ErrIntegrityViolation)

		var integrity *IntegrityError
		require.ErrorAs(t, err, &integrity)
		assert.Equal(t, ViolationCrossTenantAffiliation, integrity.Kind)
		assert.Equal(t, t1, integrity.TenantID)
		assert.Equal(t, t2, integrity.OtherTenantID)
		assert.Equal(t, user, integrity.UserID)
		assert.Equal(t, admin2, integrity.RoleID)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.IntegrityViolations.WithLabelValues(string(ViolationCrossTenantAffiliation))))
	require.Eventually(t, func() bool {
		return f.audits.find(audit.EventTypeIntegrityViolation, audit.EventStatusFailure) != nil
	}, time.Second, 10*time.Millisecond)
}

func TestIsTenantAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme, acmeAdmin := f.tenant(t, "Acme", "IT001")
	globex, _ := f.tenant(t, "Globex", "IT002")
	sales := f.role(t, acme, "Sales")

	owner := f.member(t, acme, "owner@acme.test", acmeAdmin)
	seller := f.member(t, acme, "s@acme.test", sales)
	outsider := f.member(t, globex, "o@globex.test")

	tests := []struct {
		name string
		user int64
		want bool
	}{
		{name: "admin", user: owner, want: true},
		{name: "custom role only", user: seller},
		{name: "user of another tenant", user: outsider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.engine.IsTenantAdmin(ctx, Subject{UserID: tt.user, TenantID: acme})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}
