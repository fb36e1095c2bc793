package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/modulink/pkg/activation"
	"github.com/platinummonkey/modulink/pkg/audit"
	"github.com/platinummonkey/modulink/pkg/catalog"
	"github.com/platinummonkey/modulink/pkg/notify"
	"github.com/platinummonkey/modulink/pkg/rbac"
)

// adminRole resolves the tenant admin role. A missing admin role means the
// tenant was never bootstrapped or the graph was damaged; either way it is
// reported as an integrity violation.
func adminRole(ctx context.Context, roles *rbac.Store, tenantID int64) (*rbac.Role, error) {
	admin, err := roles.BuiltinAdminRole(ctx, tenantID)
	if errors.Is(err, rbac.ErrAdminRoleMissing) {
		return nil, &IntegrityError{
			Violation: Violation{Kind: ViolationMissingAdminRole, TenantID: tenantID},
			Cause:     err,
		}
	}
	return admin, err
}

// Purchase activates moduleID for tenantID. The first purchase also grants
// the module to the tenant admin role; repeating it is a no-op that returns
// the existing activation with created set to false.
func (e *Engine) Purchase(ctx context.Context, tenantID, moduleID int64) (act *activation.Activation, created bool, err error) {
	ctx, span := startSpan(ctx, "Purchase",
		attribute.Int64("tenant.id", tenantID),
		attribute.Int64("module.id", moduleID),
	)
	defer func() {
		span.SetAttributes(attribute.Bool("created", created))
		finishSpan(span, err)
	}()

	err = e.mutate(ctx, "purchase", tenantID, func(tx *sql.Tx) error {
		if _, err := catalog.NewStore(tx).Get(ctx, moduleID); err != nil {
			return err
		}

		a, isNew, err := activation.NewStore(tx).Purchase(ctx, tenantID, moduleID)
		if err != nil {
			return err
		}
		act, created = a, isNew
		if !created {
			return nil
		}

		admin, err := adminRole(ctx, rbac.NewStore(tx), tenantID)
		if err != nil {
			return err
		}
		return rbac.NewPertinenceStore(tx).Grant(ctx, admin.ID, act.ID)
	})
	if err != nil {
		e.recordFailure(ctx, audit.EventTypeModulePurchase, tenantID, audit.ResourceTypeModule, idString(moduleID), err)
		return nil, false, err
	}
	if !created {
		return act, false, nil
	}

	e.log(ctx).WithField("tenant_id", tenantID).WithField("module_id", moduleID).Info("Module purchased")
	e.notify(ctx, notify.EventModulePurchased, tenantID, map[string]interface{}{
		"module_id":     moduleID,
		"activation_id": act.ID,
	})
	e.record(ctx, audit.NewEvent(ctx, audit.EventTypeModulePurchase, audit.EventStatusSuccess).
		ForTenant(tenantID).
		OnResource(audit.ResourceTypeModule, idString(moduleID)))
	return act, true, nil
}

// Uninstall deactivates moduleID for tenantID and drops its grants. Hidden
// core modules cannot be uninstalled.
func (e *Engine) Uninstall(ctx context.Context, tenantID, moduleID int64) (err error) {
	ctx, span := startSpan(ctx, "Uninstall",
		attribute.Int64("tenant.id", tenantID),
		attribute.Int64("module.id", moduleID),
	)
	defer func() { finishSpan(span, err) }()

	err = e.mutate(ctx, "uninstall", tenantID, func(tx *sql.Tx) error {
		module, err := catalog.NewStore(tx).Get(ctx, moduleID)
		if err != nil {
			return err
		}
		if !module.Visible {
			return fmt.Errorf("%w: %s", activation.ErrModuleLocked, module.Name)
		}

		activations := activation.NewStore(tx)
		activationID, err := activations.Lock(ctx, tenantID, moduleID)
		if err != nil {
			return err
		}
		if err := rbac.NewPertinenceStore(tx).DeleteForActivation(ctx, activationID); err != nil {
			return err
		}
		return activations.Delete(ctx, tenantID, moduleID)
	})
	if err != nil {
		e.recordFailure(ctx, audit.EventTypeModuleUninstall, tenantID, audit.ResourceTypeModule, idString(moduleID), err)
		return err
	}

	e.log(ctx).WithField("tenant_id", tenantID).WithField("module_id", moduleID).Info("Module uninstalled")
	e.notify(ctx, notify.EventModuleUninstalled, tenantID, map[string]interface{}{"module_id": moduleID})
	e.record(ctx, audit.NewEvent(ctx, audit.EventTypeModuleUninstall, audit.EventStatusSuccess).
		ForTenant(tenantID).
		OnResource(audit.ResourceTypeModule, idString(moduleID)))
	return nil
}

// ListActivated returns the visible modules the tenant has enabled
func (e *Engine) ListActivated(ctx context.Context, tenantID int64) ([]*catalog.Module, error) {
	ctx, span := startSpan(ctx, "ListActivated", attribute.Int64("tenant.id", tenantID))
	modules, err := activation.NewStore(e.db).ListActivated(ctx, tenantID)
	finishSpan(span, err)
	if modules == nil && err == nil {
		modules = []*catalog.Module{}
	}
	return modules, err
}

// ListNotActivated returns the visible catalog modules the tenant has not
// enabled
func (e *Engine) ListNotActivated(ctx context.Context, tenantID int64) ([]*catalog.Module, error) {
	ctx, span := startSpan(ctx, "ListNotActivated", attribute.Int64("tenant.id", tenantID))
	modules, err := activation.NewStore(e.db).ListNotActivated(ctx, tenantID)
	finishSpan(span, err)
	if modules == nil && err == nil {
		modules = []*catalog.Module{}
	}
	return modules, err
}
