package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/platinummonkey/modulink/pkg/storage"
)

// Store handles role persistence
type Store struct {
	db storage.DBTX
}

// NewStore creates a new role store over a connection or transaction
func NewStore(db storage.DBTX) *Store {
	return &Store{db: db}
}

const roleColumns = `id, tenant_id, name, color, description, kind, created_at, updated_at`

func roleColumnsAs(alias string) string {
	cols := strings.Split(roleColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRole(s scanner) (*Role, error) {
	var role Role
	var kind string
	err := s.Scan(
		&role.ID,
		&role.TenantID,
		&role.Name,
		&role.Color,
		&role.Description,
		&kind,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	role.Kind = Kind(kind)
	return &role, nil
}

func scanRoles(rows *sql.Rows) ([]*Role, error) {
	var roles []*Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ListRoles returns the roles of a tenant ordered by id
func (s *Store) ListRoles(ctx context.Context, tenantID int64) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 ORDER BY id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	return scanRoles(rows)
}

// GetRole returns a role of the tenant
func (s *Store) GetRole(ctx context.Context, tenantID, roleID int64) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 AND id = $2
	`, tenantID, roleID)

	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRoleNotFound, roleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetRolesByIDs resolves every id within the tenant. It fails with
// ErrRoleNotFound if any id is absent or owned by another tenant. Duplicate
// ids are collapsed; the result is ordered by id.
func (s *Store) GetRolesByIDs(ctx context.Context, tenantID int64, ids []int64) ([]*Role, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []*Role{}, nil
	}

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, tenantID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roleColumns+` FROM roles
		WHERE tenant_id = $1 AND id IN (`+storage.Placeholders(2, len(ids))+`)
		ORDER BY id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}
	defer rows.Close()

	roles, err := scanRoles(rows)
	if err != nil {
		return nil, err
	}

	if len(roles) != len(ids) {
		return nil, fmt.Errorf("%w: %v", ErrRoleNotFound, missingIDs(ids, roles))
	}
	return roles, nil
}

// BuiltinAdminRole returns the tenant's distinguished admin role
func (s *Store) BuiltinAdminRole(ctx context.Context, tenantID int64) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 AND kind = $2
	`, tenantID, string(KindAdmin))

	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: tenant %d", ErrAdminRoleMissing, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin role: %w", err)
	}
	return role, nil
}

// CreateRole inserts a role. An empty kind means KindCustom.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	if strings.TrimSpace(role.Name) == "" {
		return fmt.Errorf("role name is required")
	}
	if role.Kind == "" {
		role.Kind = KindCustom
	}
	if !role.Kind.Valid() {
		return fmt.Errorf("invalid role kind: %q", role.Kind)
	}

	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO roles (tenant_id, name, color, description, kind, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, role.TenantID, role.Name, role.Color, role.Description, string(role.Kind), now, now).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// UpdateRole changes the name, color and description of a role. The kind is
// never changed.
func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	if strings.TrimSpace(role.Name) == "" {
		return fmt.Errorf("role name is required")
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE roles
		SET name = $1, color = $2, description = $3, updated_at = $4
		WHERE id = $5 AND tenant_id = $6
	`, role.Name, role.Color, role.Description, now, role.ID, role.TenantID)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrRoleNotFound, role.ID)
	}

	role.UpdatedAt = now
	return nil
}

// DeleteRole removes a custom role together with its affiliations and
// pertinences. Run it inside a transaction.
func (s *Store) DeleteRole(ctx context.Context, tenantID, roleID int64) error {
	role, err := s.GetRole(ctx, tenantID, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem() {
		return fmt.Errorf("%w: %s", ErrSystemRole, role.Name)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM affiliations WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to delete role affiliations: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pertinences WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to delete role pertinences: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1 AND tenant_id = $2`, roleID, tenantID); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return nil
}

// EnsureSystemRoles creates any missing system role for the tenant and
// returns all of them, admin first.
func (s *Store) EnsureSystemRoles(ctx context.Context, tenantID int64) ([]*Role, error) {
	now := time.Now().UTC()
	for _, sr := range SystemRoles {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO roles (tenant_id, name, color, description, kind, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT DO NOTHING
		`, tenantID, sr.Name, sr.Color, sr.Description, string(sr.Kind), now, now)
		if err != nil {
			return nil, fmt.Errorf("failed to create system role %s: %w", sr.Kind, err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roleColumns+` FROM roles
		WHERE tenant_id = $1 AND kind <> $2
		ORDER BY id
	`, tenantID, string(KindCustom))
	if err != nil {
		return nil, fmt.Errorf("failed to list system roles: %w", err)
	}
	defer rows.Close()

	roles, err := scanRoles(rows)
	if err != nil {
		return nil, err
	}

	order := make(map[Kind]int, len(SystemRoles))
	for i, sr := range SystemRoles {
		order[sr.Kind] = i
	}
	sort.SliceStable(roles, func(i, j int) bool {
		return order[roles[i].Kind] < order[roles[j].Kind]
	})
	return roles, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func missingIDs(ids []int64, found []*Role) []int64 {
	have := make(map[int64]bool, len(found))
	for _, r := range found {
		have[r.ID] = true
	}
	var missing []int64
	for _, id := range ids {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
