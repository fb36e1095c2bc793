package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the modulink schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create tenants and users tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenants (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					tax_id VARCHAR(32) NOT NULL UNIQUE,
					address VARCHAR(255) NOT NULL DEFAULT '',
					city VARCHAR(128) NOT NULL DEFAULT '',
					postal_code VARCHAR(16) NOT NULL DEFAULT '',
					province VARCHAR(64) NOT NULL DEFAULT '',
					phone VARCHAR(32) NOT NULL DEFAULT '',
					logo_key VARCHAR(512) NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					email VARCHAR(255) NOT NULL,
					first_name VARCHAR(128) NOT NULL DEFAULT '',
					last_name VARCHAR(128) NOT NULL DEFAULT '',
					phone VARCHAR(32) NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users(LOWER(email));
				CREATE INDEX IF NOT EXISTS idx_users_tenant_id ON users(tenant_id);
			`,
		},
		{
			Version:     2,
			Description: "Create modules catalog table",
			SQL: `
				CREATE TABLE IF NOT EXISTS modules (
					id BIGINT PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					route VARCHAR(255) NOT NULL DEFAULT '',
					icon VARCHAR(255) NOT NULL DEFAULT '',
					visible BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     3,
			Description: "Create activations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS activations (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					module_id BIGINT NOT NULL REFERENCES modules(id),
					activated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, module_id)
				);

				CREATE INDEX IF NOT EXISTS idx_activations_module_id ON activations(module_id);
			`,
		},
		{
			Version:     4,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					color VARCHAR(16) NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					kind VARCHAR(16) NOT NULL DEFAULT 'custom'
						CHECK (kind IN ('admin', 'newcomer', 'member', 'custom')),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_roles_tenant_id ON roles(tenant_id);
				CREATE UNIQUE INDEX IF NOT EXISTS idx_roles_tenant_system_kind
					ON roles(tenant_id, kind) WHERE kind <> 'custom';
			`,
		},
		{
			Version:     5,
			Description: "Create affiliations and pertinences tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS affiliations (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, role_id)
				);

				CREATE INDEX IF NOT EXISTS idx_affiliations_role_id ON affiliations(role_id);

				CREATE TABLE IF NOT EXISTS pertinences (
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					activation_id BIGINT NOT NULL REFERENCES activations(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (role_id, activation_id)
				);

				CREATE INDEX IF NOT EXISTS idx_pertinences_activation_id ON pertinences(activation_id);
			`,
		},
		{
			Version:     6,
			Description: "Create audit_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id BIGSERIAL PRIMARY KEY,
					timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
					event_type VARCHAR(100) NOT NULL,
					status VARCHAR(20) NOT NULL,
					tenant_id BIGINT,
					user_id BIGINT,
					resource_type VARCHAR(50),
					resource_id VARCHAR(255),
					request_id VARCHAR(100),
					message TEXT,
					metadata JSONB
				);

				CREATE INDEX IF NOT EXISTS idx_audit_logs_tenant_time ON audit_logs(tenant_id, timestamp DESC);
			`,
		},
	}
}

// RunMigrations applies every migration not yet recorded in schema_migrations.
// Each migration runs in its own transaction.
func RunMigrations(ctx context.Context, db *sql.DB, logger logrus.FieldLogger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Running migration")

		if err := applyMigration(ctx, db, migration); err != nil {
			return err
		}
	}

	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("failed to run migration %d: %w", migration.Version, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
		migration.Version, migration.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}
	return nil
}
