package entitlement

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modulink/pkg/observability"
	"github.com/platinummonkey/modulink/pkg/storage/testdb"
)

func TestScanIntegrity_Clean(t *testing.T) {
	f := newFixture(t)
	tenant, _ := f.tenant(t, "Acme", "IT001")
	sales := f.role(t, tenant, "Sales")
	f.member(t, tenant, "u@acme.test", sales)
	f.purchase(t, tenant, moduleReports)

	report, err := f.engine.ScanIntegrity(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.NotNil(t, report.Violations)
	assert.False(t, report.ScannedAt.IsZero())
	for kind, n := range report.Counts() {
		assert.Zero(t, n, kind)
	}
}

func TestScanIntegrity_FindsEveryKind(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	f := newFixture(t, WithMetrics(metrics))

	acme, acmeAdmin := f.tenant(t, "Acme", "IT001")
	globex, globexAdmin := f.tenant(t, "Globex", "IT002")
	bare := testdb.InsertTenant(t, f.db, "Bare", "IT003")

	user := f.member(t, acme, "u@acme.test")
	testdb.Link(t, f.db, user, globexAdmin)

	globexReports := f.purchase(t, globex, moduleReports)
	testdb.Grant(t, f.db, acmeAdmin, globexReports)

	report, err := f.engine.ScanIntegrity(context.Background())
	require.NoError(t, err)
	require.False(t, report.OK())
	require.Len(t, report.Violations, 3)

	assert.Equal(t, Violation{
		Kind:          ViolationCrossTenantAffiliation,
		TenantID:      acme,
		OtherTenantID: globex,
		UserID:        user,
		RoleID:        globexAdmin,
	}, report.Violations[0])
	assert.Equal(t, Violation{
		Kind:          ViolationCrossTenantPertinence,
		TenantID:      acme,
		OtherTenantID: globex,
		RoleID:        acmeAdmin,
		ActivationID:  globexReports,
	}, report.Violations[1])
	assert.Equal(t, Violation{Kind: ViolationMissingAdminRole, TenantID: bare}, report.Violations[2])

	counts := report.Counts()
	assert.Equal(t, 1, counts[ViolationCrossTenantAffiliation])
	assert.Equal(t, 1, counts[ViolationCrossTenantPertinence])
	assert.Equal(t, 1, counts[ViolationMissingAdminRole])

	for _, kind := range ViolationKinds() {
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IntegrityScanFindings.WithLabelValues(string(kind))), kind)
	}
	assert.Greater(t, testutil.ToFloat64(metrics.IntegrityLastScanEpoch), 0.0)

	errorLogs := 0
	for _, entry := range f.logs.AllEntries() {
		if _, ok := entry.Data["kind"]; ok {
			errorLogs++
		}
	}
	assert.Equal(t, 3, errorLogs)
}

func TestScanIntegrity_ReadOnly(t *testing.T) {
	f := newFixture(t)
	acme, _ := f.tenant(t, "Acme", "IT001")
	_, globexAdmin := f.tenant(t, "Globex", "IT002")
	user := f.member(t, acme, "u@acme.test")
	testdb.Link(t, f.db, user, globexAdmin)

	before := testdb.Count(t, f.db, `SELECT COUNT(*) FROM affiliations`)
	_, err := f.engine.ScanIntegrity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, testdb.Count(t, f.db, `SELECT COUNT(*) FROM affiliations`))
}
