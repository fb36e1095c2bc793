package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modulink/pkg/storage/testdb"
)

func TestStore_RoleCRUD(t *testing.T) {
	db := testdb.New(t)
	tenant := testdb.InsertTenant(t, db, "Acme", "IT001")

	store := NewStore(db)
	ctx := context.Background()

	role := &Role{TenantID: tenant, Name: "Analyst", Color: "#ff0000"}
	require.NoError(t, store.CreateRole(ctx, role))
	assert.NotZero(t, role.ID)
	assert.Equal(t, KindCustom, role.Kind)

	got, err := store.GetRole(ctx, tenant, role.ID)
	require.NoError(t, err)
	assert.Equal(t, "Analyst", got.Name)
	assert.Equal(t, "#ff0000", got.Color)

	got.Name = "Senior Analyst"
	got.Description = "Reads every report"
	require.NoError(t, store.UpdateRole(ctx, got))

	got, err = store.GetRole(ctx, tenant, role.ID)
	require.NoError(t, err)
	assert.Equal(t, "Senior Analyst", got.Name)
	assert.Equal(t, "Reads every report", got.Description)

	require.NoError(t, store.DeleteRole(ctx, tenant, role.ID))
	_, err = store.GetRole(ctx, tenant, role.ID)
	assert.True(t, errors.Is(err, ErrRoleNotFound))
}

func TestStore_CreateRoleValidation(t *testing.T) {
	db := testdb.New(t)
	tenant := testdb.InsertTenant(t, db, "Acme", "IT001")
	store := NewStore(db)

	tests := []struct {
		name string
		role *Role
	}{
		{name: "empty name", role: &Role{TenantID: tenant, Name: "  "}},
		{name: "unknown kind", role: &Role{TenantID: tenant, Name: "x", Kind: "superuser"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.CreateRole(context.Background(), tt.role))
		})
	}
}

func TestStore_ListRolesOrderedAndScoped(t *testing.T) {
	db := testdb.New(t)
	acme := testdb.InsertTenant(t, db, "Acme", "IT001")
	globex := testdb.InsertTenant(t, db, "Globex", "IT002")

	r1 := testdb.InsertRole(t, db, acme, "b", "custom")
	testdb.InsertRole(t, db, globex, "other", "custom")
	r2 := testdb.InsertRole(t, db, acme, "a", "custom")

	roles, err := NewStore(db).ListRoles(context.Background(), acme)
	require.NoError(t, err)
	assert.Equal(t, []int64{r1, r2}, IDs(roles))
}

func TestStore_GetRolesByIDs(t *testing.T) {
	db := testdb.New(t)
	acme := testdb.InsertTenant(t, db, "Acme", "IT001")
	globex := testdb.InsertTenant(t, db, "Globex", "IT002")

	a1 := testdb.InsertRole(t, db, acme, "a1", "custom")
	a2 := testdb.InsertRole(t, db, acme, "a2", "custom")
	g1 := testdb.InsertRole(t, db, globex, "g1", "custom")

	store := NewStore(db)
	ctx := context.Background()

	tests := []struct {
		name    string
		tenant  int64
		ids     []int64
		want    []int64
		wantErr error
	}{
		{name: "all own", tenant: acme, ids: []int64{a2, a1}, want: []int64{a1, a2}},
		{name: "duplicates collapse", tenant: acme, ids: []int64{a1, a1}, want: []int64{a1}},
		{name: "empty", tenant: acme, ids: nil, want: []int64{}},
		{name: "absent id", tenant: acme, ids: []int64{a1, 9999}, wantErr: ErrRoleNotFound},
		{name: "cross tenant id", tenant: acme, ids: []int64{a1, g1}, wantErr: ErrRoleNotFound},
		{name: "cross tenant only", tenant: globex, ids: []int64{a1}, wantErr: ErrRoleNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roles, err := store.GetRolesByIDs(ctx, tt.tenant, tt.ids)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, IDs(roles))
		})
	}
}

func TestStore_CrossTenantIndistinguishableFromAbsent(t *testing.T) {
	db := testdb.New(t)
	acme := testdb.InsertTenant(t, db, "Acme", "IT001")
	globex := testdb.InsertTenant(t, db, "Globex", "IT002")
	g1 := testdb.InsertRole(t, db, globex, "g1", "custom")

	store := NewStore(db)
	ctx := context.Background()

	_, errForeign := store.GetRole(ctx, acme, g1)
	_, errAbsent := store.GetRole(ctx, acme, g1+1000)
	assert.True(t, errors.Is(errForeign, ErrRoleNotFound))
	assert.True(t, errors.Is(errAbsent, ErrRoleNotFound))

	err := store.UpdateRole(ctx, &Role{ID: g1, TenantID: acme, Name: "hijack"})
	assert.True(t, errors.Is(err, ErrRoleNotFound))

	err = store.DeleteRole(ctx, acme, g1)
	assert.True(t, errors.Is(err, ErrRoleNotFound))
	assert.Equal(t, 1, testdb.Count(t, db, "SELECT COUNT(*) FROM roles WHERE id = $1", g1))
}

func TestStore_EnsureSystemRoles(t *testing.T) {
	db := testdb.New(t)
	tenant := testdb.InsertTenant(t, db, "Acme", "IT001")

	store := NewStore(db)
	ctx := context.Background()

	roles, err := store.EnsureSystemRoles(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, roles, 3)
	assert.Equal(t, KindAdmin, roles[0].Kind)
	assert.Equal(t, "Responsabile", roles[0].Name)
	assert.Equal(t, KindNewcomer, roles[1].Kind)
	assert.Equal(t, KindMember, roles[2].Kind)

	again, err := store.EnsureSystemRoles(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, IDs(roles), IDs(again))
	assert.Equal(t, 3, testdb.Count(t, db, "SELECT COUNT(*) FROM roles WHERE tenant_id = $1", tenant))

	admin, err := store.BuiltinAdminRole(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, roles[0].ID, admin.ID)
}

func TestStore_BuiltinAdminRoleMissing(t *testing.T) {
	db := testdb.New(t)
	tenant := testdb.InsertTenant(t, db, "Acme", "IT001")

	_, err := NewStore(db).BuiltinAdminRole(context.Background(), tenant)
	assert.True(t, errors.Is(err, ErrAdminRoleMissing))
}

func TestStore_DeleteRoleCascades(t *testing.T) {
	db := testdb.New(t)
	tenant := testdb.InsertTenant(t, db, "Acme", "IT001")
	user := testdb.InsertUser(t, db, tenant, "a@acme.test")
	testdb.InsertModule(t, db, 7, "reports", true)
	act := testdb.InsertActivation(t, db, tenant, 7)

	role := testdb.InsertRole(t, db, tenant, "Analyst", "custom")
	testdb.Link(t, db, user, role)
	testdb.Grant(t, db, role, act)

	require.NoError(t, NewStore(db).DeleteRole(context.Background(), tenant, role))

	assert.Equal(t, 0, testdb.Count(t, db, "SELECT COUNT(*) FROM affiliations"))
	assert.Equal(t, 0, testdb.Count(t, db, "SELECT COUNT(*) FROM pertinences"))
	assert.Equal(t, 1, testdb.Count(t, db, "SELECT COUNT(*) FROM activations"))
}

func TestStore_DeleteSystemRole(t *testing.T) {
	db := testdb.New(t)
	tenant := testdb.InsertTenant(t, db, "Acme", "IT001")
	admin := testdb.InsertRole(t, db, tenant, "Responsabile", "admin")

	err := NewStore(db).DeleteRole(context.Background(), tenant, admin)
	assert.True(t, errors.Is(err, ErrSystemRole))
	assert.Equal(t, 1, testdb.Count(t, db, "SELECT COUNT(*) FROM roles"))
}

func TestKind(t *testing.T) {
	assert.True(t, KindAdmin.IsSystem())
	assert.True(t, KindMember.IsSystem())
	assert.False(t, KindCustom.IsSystem())
	assert.True(t, KindCustom.Valid())
	assert.False(t, Kind("root").Valid())
}
