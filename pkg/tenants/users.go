package tenants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/modulink/pkg/storage"
)

const userColumns = `id, tenant_id, email, first_name, last_name, phone, created_at`

func scanUser(s interface{ Scan(...interface{}) error }) (*User, error) {
	u := &User{}
	err := s.Scan(&u.ID, &u.TenantID, &u.Email, &u.FirstName, &u.LastName, &u.Phone, &u.CreatedAt)
	return u, err
}

// CreateUser adds a user to a tenant
func (s *PostgresService) CreateUser(ctx context.Context, user *User) error {
	user.Email = strings.TrimSpace(user.Email)
	if user.Email == "" {
		return fmt.Errorf("user email is required")
	}

	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (tenant_id, email, first_name, last_name, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, user.TenantID, user.Email, user.FirstName, user.LastName, user.Phone, now).Scan(&user.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, user.Email)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CreatedAt = now
	return nil
}

// GetUser retrieves a user by ID
func (s *PostgresService) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email, ignoring case
func (s *PostgresService) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`,
		strings.TrimSpace(email))
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers lists the users of a tenant ordered by id
func (s *PostgresService) ListUsers(ctx context.Context, tenantID int64) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id = $1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// RequireUsers fails with ErrUserNotFound unless every id is a user of the
// tenant. Users of other tenants are reported like missing ones.
func (s *PostgresService) RequireUsers(ctx context.Context, tenantID int64, userIDs []int64) error {
	seen := make(map[int64]bool, len(userIDs))
	args := []interface{}{tenantID}
	for _, id := range userIDs {
		if !seen[id] {
			seen[id] = true
			args = append(args, id)
		}
	}
	if len(seen) == 0 {
		return nil
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users
		WHERE tenant_id = $1 AND id IN (`+storage.Placeholders(2, len(seen))+`)
	`, args...).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check users: %w", err)
	}
	if count != len(seen) {
		return fmt.Errorf("%w: %d of %d users are not in tenant %d", ErrUserNotFound, len(seen)-count, len(seen), tenantID)
	}
	return nil
}
