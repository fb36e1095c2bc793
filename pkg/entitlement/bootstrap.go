package entitlement

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/modulink/pkg/activation"
	"github.com/platinummonkey/modulink/pkg/audit"
	"github.com/platinummonkey/modulink/pkg/catalog"
	"github.com/platinummonkey/modulink/pkg/rbac"
	"github.com/platinummonkey/modulink/pkg/tenants"
)

// BootstrapResult describes the state of a tenant after BootstrapTenant
type BootstrapResult struct {
	TenantID    int64                    `json:"tenant_id"`
	AdminRole   *rbac.Role               `json:"admin_role"`
	SystemRoles []*rbac.Role             `json:"system_roles"`
	Activations []*activation.Activation `json:"activations"`
}

// BootstrapTenant creates the system roles, activates the default modules
// and grants each of them to the admin role. When ownerUserID is non-zero
// that user joins the admin role. Running it again repairs missing pieces
// and changes nothing else.
func (e *Engine) BootstrapTenant(ctx context.Context, tenantID, ownerUserID int64) (result *BootstrapResult, err error) {
	ctx, span := startSpan(ctx, "BootstrapTenant",
		attribute.Int64("tenant.id", tenantID),
		attribute.Int64("owner.id", ownerUserID),
	)
	defer func() { finishSpan(span, err) }()

	err = e.mutate(ctx, "bootstrap_tenant", tenantID, func(tx *sql.Tx) error {
		directory := tenants.NewPostgresService(tx)
		if _, err := directory.GetTenant(ctx, tenantID); err != nil {
			return err
		}

		systemRoles, err := rbac.NewStore(tx).EnsureSystemRoles(ctx, tenantID)
		if err != nil {
			return err
		}
		if len(systemRoles) == 0 || systemRoles[0].Kind != rbac.KindAdmin {
			return fmt.Errorf("%w: tenant %d", rbac.ErrAdminRoleMissing, tenantID)
		}
		admin := systemRoles[0]

		modules := catalog.NewStore(tx)
		activations := activation.NewStore(tx)
		pertinences := rbac.NewPertinenceStore(tx)
		acts := make([]*activation.Activation, 0, len(e.defaultModules))
		for _, moduleID := range e.defaultModules {
			if _, err := modules.Get(ctx, moduleID); err != nil {
				return fmt.Errorf("default module %d: %w", moduleID, err)
			}
			act, _, err := activations.Purchase(ctx, tenantID, moduleID)
			if err != nil {
				return err
			}
			if err := pertinences.Grant(ctx, admin.ID, act.ID); err != nil {
				return err
			}
			acts = append(acts, act)
		}

		if ownerUserID != 0 {
			if err := directory.RequireUsers(ctx, tenantID, []int64{ownerUserID}); err != nil {
				return err
			}
			if err := rbac.NewAffiliationStore(tx).Add(ctx, ownerUserID, admin.ID); err != nil {
				return err
			}
		}

		result = &BootstrapResult{
			TenantID:    tenantID,
			AdminRole:   admin,
			SystemRoles: systemRoles,
			Activations: acts,
		}
		return nil
	})
	if err != nil {
		e.recordFailure(ctx, audit.EventTypeTenantBootstrap, tenantID, audit.ResourceTypeTenant, idString(tenantID), err)
		return nil, err
	}

	e.log(ctx).WithField("tenant_id", tenantID).WithField("modules", len(result.Activations)).Info("Tenant bootstrapped")
	e.record(ctx, audit.NewEvent(ctx, audit.EventTypeTenantBootstrap, audit.EventStatusSuccess).
		ForTenant(tenantID).
		OnResource(audit.ResourceTypeTenant, idString(tenantID)).
		With("owner_user_id", ownerUserID))
	return result, nil
}
