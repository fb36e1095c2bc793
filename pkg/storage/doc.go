// Package storage holds the persistence plumbing shared by the modulink stores.
//
// # Overview
//
// Every store in modulink (catalog, activation, rbac, tenants) is written against
// the DBTX interface so the same code runs on a *sql.DB for plain reads and on a
// *sql.Tx when the entitlement engine needs several writes to commit atomically:
//
//	err := storage.WithTx(ctx, db, func(tx *sql.Tx) error {
//		roles := rbac.NewStore(tx)
//		return roles.ReplacePertinences(ctx, activationID, roleIDs)
//	})
//
// # Backends
//
//   - postgres/: lib/pq connection pool, versioned schema migrations, the Redis
//     client used by the shared decision cache and the S3 object store used for
//     tenant logos.
//   - testdb/: an in-memory SQLite database carrying the same schema, used by the
//     package tests.
//
// # Configuration
//
// Backends are configured through Config, usually filled by pkg/config from
// MODULINK_* environment variables:
//
//	cfg := storage.DefaultConfig()
//	cfg.PostgresURL = "postgres://localhost/modulink?sslmode=disable"
//	cfg.RedisURL = "redis://localhost:6379/0"
package storage
