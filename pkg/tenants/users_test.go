package tenants

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modulink/pkg/storage/testdb"
)

func TestUsers_CreateAndLookup(t *testing.T) {
	db := testdb.New(t)
	tenant := testdb.InsertTenant(t, db, "Acme", "IT001")
	service := NewPostgresService(db)
	ctx := context.Background()

	user := &User{TenantID: tenant, Email: "Ada@Acme.test", FirstName: "Ada"}
	require.NoError(t, service.CreateUser(ctx, user))
	assert.NotZero(t, user.ID)

	got, err := service.GetUserByEmail(ctx, "ada@acme.TEST")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, tenant, got.TenantID)

	got, err = service.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)

	_, err = service.GetUserByEmail(ctx, "nobody@acme.test")
	assert.True(t, errors.Is(err, ErrUserNotFound))

	// unique regardless of case
	err = service.CreateUser(ctx, &User{TenantID: tenant, Email: "ADA@acme.test"})
	assert.Error(t, err)
}

func TestUsers_ListScopedToTenant(t *testing.T) {
	db := testdb.New(t)
	acme := testdb.InsertTenant(t, db, "Acme", "IT001")
	globex := testdb.InsertTenant(t, db, "Globex", "IT002")
	u1 := testdb.InsertUser(t, db, acme, "u1@acme.test")
	testdb.InsertUser(t, db, globex, "g@globex.test")
	u2 := testdb.InsertUser(t, db, acme, "u2@acme.test")

	users, err := NewPostgresService(db).ListUsers(context.Background(), acme)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, u1, users[0].ID)
	assert.Equal(t, u2, users[1].ID)
}

func TestUsers_RequireUsers(t *testing.T) {
	db := testdb.New(t)
	acme := testdb.InsertTenant(t, db, "Acme", "IT001")
	globex := testdb.InsertTenant(t, db, "Globex", "IT002")
	u1 := testdb.InsertUser(t, db, acme, "u1@acme.test")
	u2 := testdb.InsertUser(t, db, acme, "u2@acme.test")
	g1 := testdb.InsertUser(t, db, globex, "g@globex.test")

	service := NewPostgresService(db)
	ctx := context.Background()

	tests := []struct {
		name    string
		ids     []int64
		wantErr bool
	}{
		{name: "own users", ids: []int64{u1, u2}},
		{name: "duplicates", ids: []int64{u1, u1}},
		{name: "empty", ids: nil},
		{name: "foreign user", ids: []int64{u1, g1}, wantErr: true},
		{name: "missing user", ids: []int64{u2 + 1000}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.RequireUsers(ctx, acme, tt.ids)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUserNotFound), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTenants_ListAndSetLogo(t *testing.T) {
	db := testdb.New(t)
	service := NewPostgresService(db)
	ctx := context.Background()

	acme := &Tenant{Name: "Acme", TaxID: "IT001", City: "Milano"}
	require.NoError(t, service.CreateTenant(ctx, acme))
	globex := &Tenant{Name: "Globex", TaxID: "IT002"}
	require.NoError(t, service.CreateTenant(ctx, globex))

	list, err := service.ListTenants(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Acme", list[0].Name)
	assert.Equal(t, "Milano", list[0].City)

	require.NoError(t, service.SetLogoKey(ctx, acme.ID, "tenants/1/logo/x"))
	got, err := service.GetTenant(ctx, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, "tenants/1/logo/x", got.LogoKey)

	err = service.SetLogoKey(ctx, 999, "k")
	assert.True(t, errors.Is(err, ErrTenantNotFound))
}
