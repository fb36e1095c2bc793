// Package audit records who changed the entitlement graph of a tenant.
//
// # Overview
//
// Every mutation performed by the entitlement engine (purchases, uninstalls,
// module role reassignments, role membership changes and role CRUD) and
// every denied access check produce an Event. Events are written to one or
// more Logger implementations:
//
//   - DBLogger writes to the audit_logs table and supports Search
//   - LogrusLogger writes structured log lines
//   - MultiLogger fans out to several loggers
//
// # Usage
//
//	dbLogger := audit.NewDBLogger(db)
//	logger := audit.NewMultiLogger(dbLogger, audit.NewLogrusLogger(log))
//
//	event := audit.NewEvent(ctx, audit.EventTypeModulePurchase, audit.EventStatusSuccess).
//		ForTenant(tenantID).
//		OnResource(audit.ResourceTypeModule, "7")
//	_ = logger.Log(ctx, event)
//
// Audit failures are never returned to the caller of the audited operation;
// the engine logs them and moves on.
package audit
