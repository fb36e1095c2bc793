// Package activation records which catalog modules each tenant has enabled.
//
// An activation is created exactly once per (tenant, module) pair. Purchase
// relies on the UNIQUE(tenant_id, module_id) constraint, so concurrent
// purchases of the same module collapse into a single row and the losers
// observe the winner's activation:
//
//	act, created, err := store.Purchase(ctx, tenantID, 7)
//	if err != nil {
//		return err
//	}
//	if !created {
//		// already active, nothing changed
//	}
//
// The store never touches pertinences. Callers that remove an activation are
// expected to clear its pertinence set in the same transaction.
package activation
