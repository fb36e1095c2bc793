package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/modulink/pkg/storage"
)

// AffiliationStore links users to roles
type AffiliationStore struct {
	db storage.DBTX
}

// NewAffiliationStore creates a new affiliation store
func NewAffiliationStore(db storage.DBTX) *AffiliationStore {
	return &AffiliationStore{db: db}
}

// Add affiliates a user with a role. Adding an existing pair is a no-op.
func (s *AffiliationStore) Add(ctx context.Context, userID, roleID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO affiliations (user_id, role_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, userID, roleID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add affiliation: %w", err)
	}
	return nil
}

// ReplaceMembers sets the users of a role to exactly userIDs. Run it inside
// a transaction.
func (s *AffiliationStore) ReplaceMembers(ctx context.Context, roleID int64, userIDs []int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM affiliations WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to clear role members: %w", err)
	}

	now := time.Now().UTC()
	for _, userID := range uniqueIDs(userIDs) {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO affiliations (user_id, role_id, created_at) VALUES ($1, $2, $3)
		`, userID, roleID, now)
		if err != nil {
			return fmt.Errorf("failed to add role member %d: %w", userID, err)
		}
	}
	return nil
}

// Members returns the ids of users affiliated with a role
func (s *AffiliationStore) Members(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM affiliations WHERE role_id = $1 ORDER BY user_id
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role members: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
