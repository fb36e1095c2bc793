package entitlement

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/modulink/pkg/activation"
	"github.com/platinummonkey/modulink/pkg/audit"
	"github.com/platinummonkey/modulink/pkg/notify"
	"github.com/platinummonkey/modulink/pkg/rbac"
	"github.com/platinummonkey/modulink/pkg/tenants"
)

// SetModuleRoles replaces the set of roles granted on the tenant's
// activation of moduleID with exactly roleIDs. An empty roleIDs is resolved
// by policy. It returns the roles granted after the call.
//
// Errors: activation.ErrModuleNotActivated when the tenant has not enabled
// the module, rbac.ErrRoleNotFound when any id is absent or belongs to
// another tenant. Concurrent calls for the same module serialize on the
// activation row; the last to commit wins.
func (e *Engine) SetModuleRoles(ctx context.Context, tenantID, moduleID int64, roleIDs []int64, policy Policy) (granted []*rbac.Role, err error) {
	ctx, span := startSpan(ctx, "SetModuleRoles",
		attribute.Int64("tenant.id", tenantID),
		attribute.Int64("module.id", moduleID),
		attribute.Int64Slice("role.ids", roleIDs),
		attribute.String("policy", policy.String()),
	)
	defer func() { finishSpan(span, err) }()

	if !policy.Valid() {
		return nil, fmt.Errorf("%w: empty role set policy %s", ErrInvalidInput, policy)
	}

	err = e.mutate(ctx, "set_module_roles", tenantID, func(tx *sql.Tx) error {
		activationID, err := activation.NewStore(tx).Lock(ctx, tenantID, moduleID)
		if err != nil {
			return err
		}

		roles := rbac.NewStore(tx)
		resolved, err := roles.GetRolesByIDs(ctx, tenantID, roleIDs)
		if err != nil {
			return err
		}

		if len(resolved) == 0 && policy == PolicyFallbackToAdmin {
			admin, err := adminRole(ctx, roles, tenantID)
			if err != nil {
				return err
			}
			resolved = []*rbac.Role{admin}
		}

		if err := rbac.NewPertinenceStore(tx).Replace(ctx, activationID, rbac.IDs(resolved)); err != nil {
			return err
		}
		granted = resolved
		return nil
	})
	if err != nil {
		e.recordFailure(ctx, audit.EventTypeModuleRolesSet, tenantID, audit.ResourceTypeModule, idString(moduleID), err)
		return nil, err
	}

	ids := rbac.IDs(granted)
	e.log(ctx).WithField("tenant_id", tenantID).WithField("module_id", moduleID).
		WithField("role_ids", ids).Info("Module roles replaced")
	e.notify(ctx, notify.EventModuleRolesChanged, tenantID, map[string]interface{}{
		"module_id": moduleID,
		"role_ids":  ids,
		"policy":    policy.String(),
	})
	e.record(ctx, audit.NewEvent(ctx, audit.EventTypeModuleRolesSet, audit.EventStatusSuccess).
		ForTenant(tenantID).
		OnResource(audit.ResourceTypeModule, idString(moduleID)).
		With("role_ids", ids).
		With("policy", policy.String()))
	return granted, nil
}

// ModuleRoles returns the roles currently granted on the tenant's
// activation of moduleID, ordered by id
func (e *Engine) ModuleRoles(ctx context.Context, tenantID, moduleID int64) (roles []*rbac.Role, err error) {
	ctx, span := startSpan(ctx, "ModuleRoles",
		attribute.Int64("tenant.id", tenantID),
		attribute.Int64("module.id", moduleID),
	)
	defer func() { finishSpan(span, err) }()

	act, err := activation.NewStore(e.db).Get(ctx, tenantID, moduleID)
	if err != nil {
		return nil, err
	}
	roles, err = rbac.NewPertinenceStore(e.db).Roles(ctx, act.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if r.TenantID != tenantID {
			return nil, e.reportViolation(ctx, Violation{
				Kind:          ViolationCrossTenantPertinence,
				TenantID:      r.TenantID,
				OtherTenantID: tenantID,
				RoleID:        r.ID,
				ActivationID:  act.ID,
			})
		}
	}
	if roles == nil {
		roles = []*rbac.Role{}
	}
	return roles, nil
}

// SetRoleMembers replaces the users affiliated with roleID. Every user must
// belong to the tenant; otherwise tenants.ErrUserNotFound is returned and
// nothing changes.
func (e *Engine) SetRoleMembers(ctx context.Context, tenantID, roleID int64, userIDs []int64) (err error) {
	ctx, span := startSpan(ctx, "SetRoleMembers",
		attribute.Int64("tenant.id", tenantID),
		attribute.Int64("role.id", roleID),
		attribute.Int("user.count", len(userIDs)),
	)
	defer func() { finishSpan(span, err) }()

	err = e.mutate(ctx, "set_role_members", tenantID, func(tx *sql.Tx) error {
		if _, err := rbac.NewStore(tx).GetRole(ctx, tenantID, roleID); err != nil {
			return err
		}
		if err := tenants.NewPostgresService(tx).RequireUsers(ctx, tenantID, userIDs); err != nil {
			return err
		}
		return rbac.NewAffiliationStore(tx).ReplaceMembers(ctx, roleID, userIDs)
	})
	if err != nil {
		e.recordFailure(ctx, audit.EventTypeRoleMembersSet, tenantID, audit.ResourceTypeRole, idString(roleID), err)
		return err
	}

	e.notify(ctx, notify.EventRoleMembersChanged, tenantID, map[string]interface{}{
		"role_id":  roleID,
		"user_ids": userIDs,
	})
	e.record(ctx, audit.NewEvent(ctx, audit.EventTypeRoleMembersSet, audit.EventStatusSuccess).
		ForTenant(tenantID).
		OnResource(audit.ResourceTypeRole, idString(roleID)).
		With("user_ids", userIDs))
	return nil
}

// RoleMembers returns the ids of the users affiliated with roleID
func (e *Engine) RoleMembers(ctx context.Context, tenantID, roleID int64) ([]int64, error) {
	if _, err := rbac.NewStore(e.db).GetRole(ctx, tenantID, roleID); err != nil {
		return nil, err
	}
	return rbac.NewAffiliationStore(e.db).Members(ctx, roleID)
}
