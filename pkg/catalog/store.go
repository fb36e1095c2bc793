package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/modulink/pkg/storage"
)

// Store handles catalog persistence
type Store struct {
	db storage.DBTX
}

// NewStore creates a new catalog store
func NewStore(db storage.DBTX) *Store {
	return &Store{db: db}
}

const moduleColumns = `id, name, description, route, icon, visible, created_at, updated_at`

// List returns every catalog module ordered by id
func (s *Store) List(ctx context.Context) ([]*Module, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+moduleColumns+` FROM modules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer rows.Close()

	return ScanModules(rows)
}

// Get retrieves a module by id
func (s *Store) Get(ctx context.Context, id int64) (*Module, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+moduleColumns+` FROM modules WHERE id = $1`, id)

	m, err := ScanModule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrModuleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get module: %w", err)
	}
	return m, nil
}

// Upsert inserts a module or updates the existing row with the same id.
// A module with activations is immutable: re-applying its current
// attributes is a no-op and any change fails with ErrModuleReferenced.
func (s *Store) Upsert(ctx context.Context, m *Module) error {
	if m.Name == "" {
		return fmt.Errorf("module %d: name is required", m.ID)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO modules (id, name, description, route, icon, visible, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			route = EXCLUDED.route,
			icon = EXCLUDED.icon,
			visible = EXCLUDED.visible,
			updated_at = EXCLUDED.updated_at
		WHERE NOT EXISTS (SELECT 1 FROM activations a WHERE a.module_id = modules.id)
	`, m.ID, m.Name, m.Description, m.Route, m.Icon, m.Visible, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert module %d: %w", m.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to upsert module %d: %w", m.ID, err)
	}
	if n > 0 {
		m.UpdatedAt = now
		return nil
	}

	current, err := s.Get(ctx, m.ID)
	if err != nil {
		return err
	}
	if !current.sameAttributes(m) {
		return fmt.Errorf("%w: module %d (%s)", ErrModuleReferenced, m.ID, current.Name)
	}
	m.CreatedAt = current.CreatedAt
	m.UpdatedAt = current.UpdatedAt
	return nil
}

// Scanner is implemented by *sql.Row and *sql.Rows
type Scanner interface {
	Scan(dest ...interface{}) error
}

// ScanModule scans a row selected with the catalog column order. Other
// packages join against modules and reuse it.
func ScanModule(scanner Scanner) (*Module, error) {
	var m Module
	err := scanner.Scan(
		&m.ID,
		&m.Name,
		&m.Description,
		&m.Route,
		&m.Icon,
		&m.Visible,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Columns returns the catalog column list qualified by alias, for joins
func Columns(alias string) string {
	return fmt.Sprintf("%[1]s.id, %[1]s.name, %[1]s.description, %[1]s.route, %[1]s.icon, %[1]s.visible, %[1]s.created_at, %[1]s.updated_at", alias)
}

// ScanModules drains rows selected with Columns
func ScanModules(rows *sql.Rows) ([]*Module, error) {
	var modules []*Module
	for rows.Next() {
		m, err := ScanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}
