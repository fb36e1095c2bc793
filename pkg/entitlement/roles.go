package entitlement

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/modulink/pkg/audit"
	"github.com/platinummonkey/modulink/pkg/notify"
	"github.com/platinummonkey/modulink/pkg/rbac"
)

// DefaultRoleColor is used when a role is created without a color
const DefaultRoleColor = "#6b7280"

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// RoleInput carries the editable fields of a role
type RoleInput struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// Validate trims the input and checks name and color
func (in *RoleInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	if len(in.Name) > 100 {
		return fmt.Errorf("%w: role name must be at most 100 characters", ErrInvalidInput)
	}
	if in.Color == "" {
		in.Color = DefaultRoleColor
	}
	if !colorPattern.MatchString(in.Color) {
		return fmt.Errorf("%w: role color %q is not #rrggbb", ErrInvalidInput, in.Color)
	}
	return nil
}

// ListRoles returns the tenant's roles ordered by id
func (e *Engine) ListRoles(ctx context.Context, tenantID int64) ([]*rbac.Role, error) {
	ctx, span := startSpan(ctx, "ListRoles", attribute.Int64("tenant.id", tenantID))
	roles, err := rbac.NewStore(e.db).ListRoles(ctx, tenantID)
	finishSpan(span, err)
	if roles == nil && err == nil {
		roles = []*rbac.Role{}
	}
	return roles, err
}

// GetRolesByIDs resolves ids within the tenant, failing with
// rbac.ErrRoleNotFound for absent and foreign ids alike
func (e *Engine) GetRolesByIDs(ctx context.Context, tenantID int64, ids []int64) ([]*rbac.Role, error) {
	return rbac.NewStore(e.db).GetRolesByIDs(ctx, tenantID, ids)
}

// BuiltinAdminRole returns the tenant's distinguished admin role
func (e *Engine) BuiltinAdminRole(ctx context.Context, tenantID int64) (*rbac.Role, error) {
	return adminRole(ctx, rbac.NewStore(e.db), tenantID)
}

// CreateRole adds a custom role to the tenant
func (e *Engine) CreateRole(ctx context.Context, tenantID int64, in RoleInput) (role *rbac.Role, err error) {
	ctx, span := startSpan(ctx, "CreateRole", attribute.Int64("tenant.id", tenantID))
	defer func() { finishSpan(span, err) }()

	if err := in.Validate(); err != nil {
		return nil, err
	}
	role = &rbac.Role{
		TenantID:    tenantID,
		Name:        in.Name,
		Color:       in.Color,
		Description: in.Description,
		Kind:        rbac.KindCustom,
	}
	if err := rbac.NewStore(e.db).CreateRole(ctx, role); err != nil {
		return nil, err
	}

	e.record(ctx, audit.NewEvent(ctx, audit.EventTypeRoleCreate, audit.EventStatusSuccess).
		ForTenant(tenantID).
		OnResource(audit.ResourceTypeRole, idString(role.ID)).
		With("name", role.Name))
	return role, nil
}

// UpdateRole renames or recolours a role. System roles may be edited but
// keep their kind.
func (e *Engine) UpdateRole(ctx context.Context, tenantID, roleID int64, in RoleInput) (role *rbac.Role, err error) {
	ctx, span := startSpan(ctx, "UpdateRole",
		attribute.Int64("tenant.id", tenantID),
		attribute.Int64("role.id", roleID),
	)
	defer func() { finishSpan(span, err) }()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	err = e.mutate(ctx, "update_role", tenantID, func(tx *sql.Tx) error {
		store := rbac.NewStore(tx)
		current, err := store.GetRole(ctx, tenantID, roleID)
		if err != nil {
			return err
		}
		current.Name = in.Name
		current.Color = in.Color
		current.Description = in.Description
		if err := store.UpdateRole(ctx, current); err != nil {
			return err
		}
		role = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.record(ctx, audit.NewEvent(ctx, audit.EventTypeRoleUpdate, audit.EventStatusSuccess).
		ForTenant(tenantID).
		OnResource(audit.ResourceTypeRole, idString(roleID)))
	return role, nil
}

// DeleteRole removes a custom role with its affiliations and grants. System
// roles fail with rbac.ErrSystemRole.
func (e *Engine) DeleteRole(ctx context.Context, tenantID, roleID int64) (err error) {
	ctx, span := startSpan(ctx, "DeleteRole",
		attribute.Int64("tenant.id", tenantID),
		attribute.Int64("role.id", roleID),
	)
	defer func() { finishSpan(span, err) }()

	err = e.mutate(ctx, "delete_role", tenantID, func(tx *sql.Tx) error {
		return rbac.NewStore(tx).DeleteRole(ctx, tenantID, roleID)
	})
	if err != nil {
		e.recordFailure(ctx, audit.EventTypeRoleDelete, tenantID, audit.ResourceTypeRole, idString(roleID), err)
		return err
	}

	e.notify(ctx, notify.EventRoleDeleted, tenantID, map[string]interface{}{"role_id": roleID})
	e.record(ctx, audit.NewEvent(ctx, audit.EventTypeRoleDelete, audit.EventStatusSuccess).
		ForTenant(tenantID).
		OnResource(audit.ResourceTypeRole, idString(roleID)))
	return nil
}
