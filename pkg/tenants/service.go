package tenants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/modulink/pkg/storage"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation
const uniqueViolation = "23505"

// PostgresService implements Service over the relational store
type PostgresService struct {
	db storage.DBTX
}

// NewPostgresService creates a new PostgresService over a connection or
// transaction
func NewPostgresService(db storage.DBTX) *PostgresService {
	return &PostgresService{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

const tenantColumns = `id, name, tax_id, address, city, postal_code, province, phone, logo_key, created_at, updated_at`

func scanTenant(s interface{ Scan(...interface{}) error }) (*Tenant, error) {
	t := &Tenant{}
	err := s.Scan(&t.ID, &t.Name, &t.TaxID, &t.Address, &t.City, &t.PostalCode,
		&t.Province, &t.Phone, &t.LogoKey, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// CreateTenant creates a new tenant
func (s *PostgresService) CreateTenant(ctx context.Context, tenant *Tenant) error {
	tenant.Name = strings.TrimSpace(tenant.Name)
	tenant.TaxID = strings.TrimSpace(tenant.TaxID)
	if tenant.Name == "" {
		return fmt.Errorf("tenant name is required")
	}
	if tenant.TaxID == "" {
		return fmt.Errorf("tenant tax id is required")
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO tenants (name, tax_id, address, city, postal_code, province, phone, logo_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, tenant.Name, tenant.TaxID, tenant.Address, tenant.City,
		tenant.PostalCode, tenant.Province, tenant.Phone, tenant.LogoKey, now, now).Scan(&tenant.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateTaxID, tenant.TaxID)
	}
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	return nil
}

// GetTenant retrieves a tenant by ID
func (s *PostgresService) GetTenant(ctx context.Context, id int64) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	tenant, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrTenantNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return tenant, nil
}

// ListTenants lists every tenant ordered by id
func (s *PostgresService) ListTenants(ctx context.Context) ([]*Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

// UpdateTenant updates the non-nil fields of updates
func (s *PostgresService) UpdateTenant(ctx context.Context, id int64, updates *UpdateTenantRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	add := func(column string, value *string) {
		if value == nil {
			return
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, *value)
		argPos++
	}
	add("name", updates.Name)
	add("address", updates.Address)
	add("city", updates.City)
	add("postal_code", updates.PostalCode)
	add("province", updates.Province)
	add("phone", updates.Phone)

	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	args = append(args, id)
	query := fmt.Sprintf("UPDATE tenants SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return requireRow(result, fmt.Errorf("%w: %d", ErrTenantNotFound, id))
}

// SetLogoKey records the object key of the tenant's logo
func (s *PostgresService) SetLogoKey(ctx context.Context, id int64, key string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE tenants SET logo_key = $1, updated_at = $2 WHERE id = $3`,
		key, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set logo: %w", err)
	}
	return requireRow(result, fmt.Errorf("%w: %d", ErrTenantNotFound, id))
}

func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
