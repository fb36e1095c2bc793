package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/modulink/pkg/storage"
)

// PertinenceStore links roles to activations
type PertinenceStore struct {
	db storage.DBTX
}

// NewPertinenceStore creates a new pertinence store
func NewPertinenceStore(db storage.DBTX) *PertinenceStore {
	return &PertinenceStore{db: db}
}

// Grant links a role to an activation. Granting an existing pair is a no-op.
func (s *PertinenceStore) Grant(ctx context.Context, roleID, activationID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pertinences (role_id, activation_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, roleID, activationID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to grant role %d: %w", roleID, err)
	}
	return nil
}

// Replace sets the roles linked to an activation to exactly roleIDs. The
// old set is deleted before the new one is inserted, so run it inside a
// transaction.
func (s *PertinenceStore) Replace(ctx context.Context, activationID int64, roleIDs []int64) error {
	if err := s.DeleteForActivation(ctx, activationID); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, roleID := range uniqueIDs(roleIDs) {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO pertinences (role_id, activation_id, created_at) VALUES ($1, $2, $3)
		`, roleID, activationID, now)
		if err != nil {
			return fmt.Errorf("failed to link role %d: %w", roleID, err)
		}
	}
	return nil
}

// DeleteForActivation removes every pertinence of an activation
func (s *PertinenceStore) DeleteForActivation(ctx context.Context, activationID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pertinences WHERE activation_id = $1`, activationID)
	if err != nil {
		return fmt.Errorf("failed to clear pertinences: %w", err)
	}
	return nil
}

// Roles returns the roles linked to an activation ordered by id, without
// filtering by tenant. Callers compare Role.TenantID against the
// activation's tenant to detect corrupt links.
func (s *PertinenceStore) Roles(ctx context.Context, activationID int64) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roleColumnsAs("r")+`
		FROM pertinences p
		JOIN roles r ON r.id = p.role_id
		WHERE p.activation_id = $1
		ORDER BY r.id
	`, activationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pertinent roles: %w", err)
	}
	defer rows.Close()

	return scanRoles(rows)
}
