// Package rbac stores tenant-scoped roles and the two relations hanging off
// them: affiliations (user to role) and pertinences (role to activation).
//
// # Roles
//
// Every role belongs to exactly one tenant. Role ids are global, so every
// lookup that starts from caller input is filtered by tenant and an id owned
// by another tenant is reported exactly like a missing one:
//
//	roles, err := store.GetRolesByIDs(ctx, tenantID, []int64{3, 9})
//	if errors.Is(err, rbac.ErrRoleNotFound) {
//		// 9 is absent, or belongs to someone else
//	}
//
// Each tenant carries three system roles identified by their kind:
//
//	admin     "Responsabile"   the fallback owner of every module
//	newcomer  "Utente Nuovo"
//	member    "Utente"
//
// A partial unique index on (tenant_id, kind) keeps at most one of each.
// System roles can be renamed but not deleted.
//
// # Affiliations and pertinences
//
// A pertinence references an activation rather than a module, so a grant is
// always relative to the tenant that enabled the module. The stores here do
// not check tenant agreement between the two ends of a link; the
// entitlement engine validates both ends before writing and is the only
// caller that mutates these relations.
//
// All stores accept a *sql.DB or a *sql.Tx through storage.DBTX so that
// multi-statement replacements can run inside one transaction.
package rbac
