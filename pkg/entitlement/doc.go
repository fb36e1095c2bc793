// Package entitlement decides whether a user may open a module and owns
// every write to the entitlement graph.
//
// The graph has four edges, all scoped by tenant:
//
//	user --affiliation--> role --pertinence--> activation --> module
//
// A user can access module M iff some role the user is affiliated with has
// a pertinence to the activation of M for the user's own tenant. There is
// no superuser shortcut; the admin role sees a module only through its
// pertinence rows.
//
// Reads that meet an edge crossing tenants fail with an *IntegrityError
// instead of filtering the edge out. Writes run in a single transaction and
// invalidate the tenant's cached decisions after commit.
//
// # Usage
//
//	engine := entitlement.NewEngine(db,
//		entitlement.WithLogger(logger),
//		entitlement.WithCache(entitlement.NewMemoryCache(10000, time.Minute)),
//		entitlement.WithMetrics(metrics),
//	)
//	ok, err := engine.CanAccess(ctx, entitlement.Subject{UserID: 4, TenantID: 1}, 7)
//	roles, err := engine.SetModuleRoles(ctx, 1, 7, []int64{3}, entitlement.PolicyFallbackToAdmin)
package entitlement
