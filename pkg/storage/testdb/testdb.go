// Package testdb provides an in-memory SQLite database carrying the modulink
// schema, for store and engine tests.
package testdb

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for tests
	"github.com/stretchr/testify/require"
)

// Schema mirrors the Postgres migrations with SQLite types.
const Schema = `
CREATE TABLE tenants (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	tax_id TEXT NOT NULL UNIQUE,
	address TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	postal_code TEXT NOT NULL DEFAULT '',
	province TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	logo_key TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id INTEGER NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	email TEXT NOT NULL,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX idx_users_email_lower ON users(LOWER(email));

CREATE TABLE modules (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	route TEXT NOT NULL DEFAULT '',
	icon TEXT NOT NULL DEFAULT '',
	visible BOOLEAN NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE activations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id INTEGER NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	module_id INTEGER NOT NULL REFERENCES modules(id),
	activated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(tenant_id, module_id)
);

CREATE TABLE roles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id INTEGER NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL DEFAULT 'custom' CHECK (kind IN ('admin', 'newcomer', 'member', 'custom')),
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX idx_roles_tenant_system_kind ON roles(tenant_id, kind) WHERE kind <> 'custom';

CREATE TABLE affiliations (
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, role_id)
);

CREATE TABLE pertinences (
	role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
	activation_id INTEGER NOT NULL REFERENCES activations(id) ON DELETE CASCADE,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (role_id, activation_id)
);

CREATE TABLE audit_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TIMESTAMP NOT NULL,
	event_type TEXT NOT NULL,
	status TEXT NOT NULL,
	tenant_id INTEGER,
	user_id INTEGER,
	resource_type TEXT,
	resource_id TEXT,
	request_id TEXT,
	message TEXT,
	metadata TEXT
);
`

// New opens a fresh in-memory database with the schema applied. The pool is
// limited to one connection because every connection to ":memory:" would
// otherwise see its own empty database.
func New(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err, "failed to open test database")
	db.SetMaxOpenConns(1)

	_, err = db.Exec(Schema)
	require.NoError(t, err, "failed to create schema")

	t.Cleanup(func() { db.Close() })
	return db
}

// InsertTenant adds a tenant and returns its id
func InsertTenant(t *testing.T, db *sql.DB, name, taxID string) int64 {
	t.Helper()

	res, err := db.Exec(`INSERT INTO tenants (name, tax_id, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		name, taxID, time.Now().UTC(), time.Now().UTC())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// InsertUser adds a user to a tenant and returns its id
func InsertUser(t *testing.T, db *sql.DB, tenantID int64, email string) int64 {
	t.Helper()

	res, err := db.Exec(`INSERT INTO users (tenant_id, email, created_at) VALUES ($1, $2, $3)`,
		tenantID, email, time.Now().UTC())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// InsertModule adds a catalog module
func InsertModule(t *testing.T, db *sql.DB, id int64, name string, visible bool) {
	t.Helper()

	_, err := db.Exec(`INSERT INTO modules (id, name, route, visible, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, name, "/dashboard/"+name, visible, time.Now().UTC(), time.Now().UTC())
	require.NoError(t, err)
}

// InsertRole adds a role row directly, bypassing the role store
func InsertRole(t *testing.T, db *sql.DB, tenantID int64, name, kind string) int64 {
	t.Helper()

	res, err := db.Exec(`INSERT INTO roles (tenant_id, name, kind, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		tenantID, name, kind, time.Now().UTC(), time.Now().UTC())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// InsertActivation adds an activation row directly and returns its id
func InsertActivation(t *testing.T, db *sql.DB, tenantID, moduleID int64) int64 {
	t.Helper()

	res, err := db.Exec(`INSERT INTO activations (tenant_id, module_id, activated_at) VALUES ($1, $2, $3)`,
		tenantID, moduleID, time.Now().UTC())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// Link inserts an affiliation (user, role) directly. Tests use it to build
// legacy or corrupted graphs.
func Link(t *testing.T, db *sql.DB, userID, roleID int64) {
	t.Helper()

	_, err := db.Exec(`INSERT INTO affiliations (user_id, role_id) VALUES ($1, $2)`, userID, roleID)
	require.NoError(t, err)
}

// Grant inserts a pertinence (role, activation) directly
func Grant(t *testing.T, db *sql.DB, roleID, activationID int64) {
	t.Helper()

	_, err := db.Exec(`INSERT INTO pertinences (role_id, activation_id) VALUES ($1, $2)`, roleID, activationID)
	require.NoError(t, err)
}

// Count returns the number of rows matched by a COUNT(*) query
func Count(t *testing.T, db *sql.DB, query string, args ...interface{}) int {
	t.Helper()

	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}
