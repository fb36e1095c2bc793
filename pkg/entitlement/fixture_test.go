package entitlement

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modulink/pkg/audit"
	"github.com/platinummonkey/modulink/pkg/catalog"
	"github.com/platinummonkey/modulink/pkg/notify"
	"github.com/platinummonkey/modulink/pkg/rbac"
	"github.com/platinummonkey/modulink/pkg/storage/testdb"
)

const (
	moduleDashboard int64 = 0
	moduleProfile   int64 = 1
	moduleDocuments int64 = 2
	moduleCalendar  int64 = 3
	moduleReports   int64 = 7
	moduleInvoices  int64 = 8
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []*notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, event *notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) types() []notify.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingAudit struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (r *recordingAudit) Log(_ context.Context, event *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAudit) Close() error { return nil }

func (r *recordingAudit) find(eventType audit.EventType, status audit.EventStatus) *audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.EventType == eventType && e.Status == status {
			return e
		}
	}
	return nil
}

type fixture struct {
	db     *sql.DB
	engine *Engine
	notes  *recordingNotifier
	audits *recordingAudit
	logs   *test.Hook
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	db := testdb.New(t)
	testdb.InsertModule(t, db, moduleDashboard, "dashboard", false)
	testdb.InsertModule(t, db, moduleProfile, "profile", false)
	testdb.InsertModule(t, db, moduleDocuments, "documents", true)
	testdb.InsertModule(t, db, moduleCalendar, "calendar", true)
	testdb.InsertModule(t, db, moduleReports, "reports", true)
	testdb.InsertModule(t, db, moduleInvoices, "invoices", true)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{
		db:     db,
		notes:  &recordingNotifier{},
		audits: &recordingAudit{},
		logs:   hook,
	}
	base := []Option{
		WithLogger(logger),
		WithNotifier(f.notes),
		WithAuditLogger(f.audits),
	}
	f.engine = NewEngine(db, append(base, opts...)...)
	return f
}

// tenant creates and bootstraps a tenant, returning its id and admin role
func (f *fixture) tenant(t *testing.T, name, taxID string) (int64, int64) {
	t.Helper()
	id := testdb.InsertTenant(t, f.db, name, taxID)
	result, err := f.engine.BootstrapTenant(context.Background(), id, 0)
	require.NoError(t, err)
	return id, result.AdminRole.ID
}

func (f *fixture) role(t *testing.T, tenantID int64, name string) int64 {
	t.Helper()
	role, err := f.engine.CreateRole(context.Background(), tenantID, RoleInput{Name: name})
	require.NoError(t, err)
	return role.ID
}

func (f *fixture) member(t *testing.T, tenantID int64, email string, roleIDs ...int64) int64 {
	t.Helper()
	user := testdb.InsertUser(t, f.db, tenantID, email)
	for _, roleID := range roleIDs {
		testdb.Link(t, f.db, user, roleID)
	}
	return user
}

func (f *fixture) purchase(t *testing.T, tenantID, moduleID int64) int64 {
	t.Helper()
	act, _, err := f.engine.Purchase(context.Background(), tenantID, moduleID)
	require.NoError(t, err)
	return act.ID
}

func moduleIDs(modules []*catalog.Module) []int64 {
	ids := make([]int64, 0, len(modules))
	for _, m := range modules {
		ids = append(ids, m.ID)
	}
	return ids
}

func roleIDs(roles []*rbac.Role) []int64 {
	return rbac.IDs(roles)
}
