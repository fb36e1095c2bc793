package activation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/modulink/pkg/catalog"
	"github.com/platinummonkey/modulink/pkg/storage"
)

// Store handles activation persistence
type Store struct {
	db storage.DBTX
}

// NewStore creates a new activation store over a connection or transaction
func NewStore(db storage.DBTX) *Store {
	return &Store{db: db}
}

// Purchase activates moduleID for tenantID. If the pair already exists the
// existing activation is returned with created set to false.
func (s *Store) Purchase(ctx context.Context, tenantID, moduleID int64) (*Activation, bool, error) {
	act := &Activation{TenantID: tenantID, ModuleID: moduleID}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO activations (tenant_id, module_id, activated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, module_id) DO NOTHING
		RETURNING id, activated_at
	`, tenantID, moduleID, time.Now().UTC()).Scan(&act.ID, &act.ActivatedAt)

	switch {
	case err == nil:
		return act, true, nil
	case errors.Is(err, sql.ErrNoRows):
		// lost the race or a repeat purchase
		existing, err := s.Get(ctx, tenantID, moduleID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	default:
		return nil, false, fmt.Errorf("failed to purchase module %d: %w", moduleID, err)
	}
}

// Get returns the activation of moduleID for tenantID
func (s *Store) Get(ctx context.Context, tenantID, moduleID int64) (*Activation, error) {
	act := &Activation{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, module_id, activated_at
		FROM activations
		WHERE tenant_id = $1 AND module_id = $2
	`, tenantID, moduleID).Scan(&act.ID, &act.TenantID, &act.ModuleID, &act.ActivatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: module %d", ErrModuleNotActivated, moduleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activation: %w", err)
	}
	return act, nil
}

// Lock resolves the activation of moduleID for tenantID and holds a row
// lock on it until the surrounding transaction ends. Concurrent pertinence
// replacements for the same activation serialize on this lock.
func (s *Store) Lock(ctx context.Context, tenantID, moduleID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE activations SET activated_at = activated_at
		WHERE tenant_id = $1 AND module_id = $2
		RETURNING id
	`, tenantID, moduleID).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: module %d", ErrModuleNotActivated, moduleID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock activation: %w", err)
	}
	return id, nil
}

// List returns every activation of a tenant, ordered by module id
func (s *Store) List(ctx context.Context, tenantID int64) ([]*Activation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, module_id, activated_at
		FROM activations
		WHERE tenant_id = $1
		ORDER BY module_id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activations: %w", err)
	}
	defer rows.Close()

	var acts []*Activation
	for rows.Next() {
		act := &Activation{}
		if err := rows.Scan(&act.ID, &act.TenantID, &act.ModuleID, &act.ActivatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activation: %w", err)
		}
		acts = append(acts, act)
	}
	return acts, rows.Err()
}

// ListActivated returns the visible modules a tenant has enabled
func (s *Store) ListActivated(ctx context.Context, tenantID int64) ([]*catalog.Module, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+catalog.Columns("m")+`
		FROM modules m
		JOIN activations a ON a.module_id = m.id
		WHERE a.tenant_id = $1 AND m.visible
		ORDER BY m.id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activated modules: %w", err)
	}
	defer rows.Close()

	return catalog.ScanModules(rows)
}

// ListNotActivated returns the visible catalog modules a tenant has not
// enabled. It is computed from the catalog on every call.
func (s *Store) ListNotActivated(ctx context.Context, tenantID int64) ([]*catalog.Module, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+catalog.Columns("m")+`
		FROM modules m
		WHERE m.visible
		  AND NOT EXISTS (
			SELECT 1 FROM activations a
			WHERE a.module_id = m.id AND a.tenant_id = $1
		  )
		ORDER BY m.id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list available modules: %w", err)
	}
	defer rows.Close()

	return catalog.ScanModules(rows)
}

// Delete removes the activation of moduleID for tenantID
func (s *Store) Delete(ctx context.Context, tenantID, moduleID int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM activations WHERE tenant_id = $1 AND module_id = $2
	`, tenantID, moduleID)
	if err != nil {
		return fmt.Errorf("failed to delete activation: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: module %d", ErrModuleNotActivated, moduleID)
	}
	return nil
}
