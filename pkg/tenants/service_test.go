package tenants

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockService(t *testing.T) (*PostgresService, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresService(db), mock, db
}

func strPtr(s string) *string { return &s }

func TestCreateTenant(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO tenants`).
			WithArgs("Acme", "IT001", "", "", "", "", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

		tenant := &Tenant{Name: " Acme ", TaxID: "IT001"}
		require.NoError(t, service.CreateTenant(ctx, tenant))
		assert.Equal(t, int64(5), tenant.ID)
		assert.Equal(t, "Acme", tenant.Name)
		assert.False(t, tenant.CreatedAt.IsZero())
	})

	t.Run("duplicate tax id", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO tenants`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "tenants_tax_id_key"})

		err := service.CreateTenant(ctx, &Tenant{Name: "Acme", TaxID: "IT001"})
		assert.True(t, errors.Is(err, ErrDuplicateTaxID))
	})

	t.Run("other database error", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO tenants`).WillReturnError(errors.New("connection reset"))

		err := service.CreateTenant(ctx, &Tenant{Name: "Acme", TaxID: "IT001"})
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrDuplicateTaxID))
		assert.Contains(t, err.Error(), "failed to create tenant")
	})

	t.Run("validation", func(t *testing.T) {
		assert.Error(t, service.CreateTenant(ctx, &Tenant{TaxID: "IT001"}))
		assert.Error(t, service.CreateTenant(ctx, &Tenant{Name: "Acme"}))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTenant(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		now := time.Now()
		rows := sqlmock.NewRows([]string{"id", "name", "tax_id", "address", "city", "postal_code",
			"province", "phone", "logo_key", "created_at", "updated_at"}).
			AddRow(1, "Acme", "IT001", "Via Roma 1", "Milano", "20100", "MI", "02123", "tenants/1/logo/ab", now, now)
		mock.ExpectQuery(`SELECT .* FROM tenants WHERE id = \$1`).WithArgs(int64(1)).WillReturnRows(rows)

		tenant, err := service.GetTenant(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Milano", tenant.City)
		assert.Equal(t, "tenants/1/logo/ab", tenant.LogoKey)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM tenants WHERE id = \$1`).WithArgs(int64(2)).WillReturnError(sql.ErrNoRows)

		_, err := service.GetTenant(ctx, 2)
		assert.True(t, errors.Is(err, ErrTenantNotFound))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTenant(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()
	ctx := context.Background()

	t.Run("nothing to update", func(t *testing.T) {
		require.NoError(t, service.UpdateTenant(ctx, 1, &UpdateTenantRequest{}))
	})

	t.Run("partial update", func(t *testing.T) {
		mock.ExpectExec(`UPDATE tenants SET name = \$1, city = \$2, updated_at = \$3 WHERE id = \$4`).
			WithArgs("Acme Group", "Torino", sqlmock.AnyArg(), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.UpdateTenant(ctx, 1, &UpdateTenantRequest{Name: strPtr("Acme Group"), City: strPtr("Torino")})
		require.NoError(t, err)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(`UPDATE tenants SET phone = \$1`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.UpdateTenant(ctx, 9, &UpdateTenantRequest{Phone: strPtr("123")})
		assert.True(t, errors.Is(err, ErrTenantNotFound))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_users_email_lower"})

	err := service.CreateUser(context.Background(), &User{TenantID: 1, Email: "a@acme.test"})
	assert.True(t, errors.Is(err, ErrDuplicateEmail))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{FirstName: "Ada", LastName: "Lovelace"}).FullName())
	assert.Equal(t, "Ada", (&User{FirstName: "Ada"}).FullName())
	assert.Equal(t, "Lovelace", (&User{LastName: "Lovelace"}).FullName())
}
