package entitlement

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/modulink/pkg/catalog"
	"github.com/platinummonkey/modulink/pkg/observability"
	"github.com/platinummonkey/modulink/pkg/rbac"
)

// checkAffiliation validates that the subject's role belongs to its tenant
func checkAffiliation(subject Subject, roleID, roleTenant int64) *Violation {
	if roleTenant == subject.TenantID {
		return nil
	}
	return &Violation{
		Kind:          ViolationCrossTenantAffiliation,
		TenantID:      subject.TenantID,
		OtherTenantID: roleTenant,
		UserID:        subject.UserID,
		RoleID:        roleID,
	}
}

// checkPath validates one affiliation -> pertinence -> activation path
func checkPath(subject Subject, roleID, roleTenant, activationID, activationTenant int64) *Violation {
	if v := checkAffiliation(subject, roleID, roleTenant); v != nil {
		return v
	}
	if activationTenant != roleTenant {
		return &Violation{
			Kind:          ViolationCrossTenantPertinence,
			TenantID:      roleTenant,
			OtherTenantID: activationTenant,
			RoleID:        roleID,
			ActivationID:  activationID,
		}
	}
	return nil
}

// CanAccess reports whether subject may open catalog module moduleID. It
// fails with an *IntegrityError when any path from the user to the module
// crosses tenants.
func (e *Engine) CanAccess(ctx context.Context, subject Subject, moduleID int64) (allowed bool, err error) {
	ctx, span := startSpan(ctx, "CanAccess",
		attribute.Int64("tenant.id", subject.TenantID),
		attribute.Int64("user.id", subject.UserID),
		attribute.Int64("module.id", moduleID),
	)
	start := time.Now()
	cached := false
	defer func() {
		result := observability.DecisionDenied
		switch {
		case err != nil:
			result = observability.DecisionError
		case allowed:
			result = observability.DecisionGranted
		}
		span.SetAttributes(attribute.String("decision", result), attribute.Bool("cached", cached))
		e.metrics.ObserveDecision("can_access", result, cached, time.Since(start))
		finishSpan(span, err)
	}()

	gen, useCache := e.generation(ctx, subject.TenantID)
	if !useCache {
		return e.queryAccess(ctx, subject, moduleID)
	}

	key := decisionKey(subject.TenantID, gen, subject.UserID, moduleID)
	if e.cacheGet(ctx, key, "decision", &allowed) {
		cached = true
		return allowed, nil
	}

	v, err := e.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		ok, err := e.queryAccess(ctx, subject, moduleID)
		if err != nil {
			return false, err
		}
		e.cacheSet(ctx, key, ok)
		return ok, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (e *Engine) queryAccess(ctx context.Context, subject Subject, moduleID int64) (bool, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT r.id, r.tenant_id, a.id, a.tenant_id
		FROM affiliations af
		JOIN roles r ON r.id = af.role_id
		JOIN pertinences p ON p.role_id = r.id
		JOIN activations a ON a.id = p.activation_id
		WHERE af.user_id = $1 AND a.module_id = $2
	`, subject.UserID, moduleID)
	if err != nil {
		return false, fmt.Errorf("failed to check access: %w", err)
	}
	defer rows.Close()

	allowed := false
	for rows.Next() {
		var roleID, roleTenant, activationID, activationTenant int64
		if err := rows.Scan(&roleID, &roleTenant, &activationID, &activationTenant); err != nil {
			return false, fmt.Errorf("failed to scan access path: %w", err)
		}
		if v := checkPath(subject, roleID, roleTenant, activationID, activationTenant); v != nil {
			rows.Close()
			return false, e.reportViolation(ctx, *v)
		}
		allowed = true
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("failed to check access: %w", err)
	}
	return allowed, nil
}

// ListAccessible returns every module subject can open, hidden core modules
// included, ordered by id
func (e *Engine) ListAccessible(ctx context.Context, subject Subject) (modules []*catalog.Module, err error) {
	ctx, span := startSpan(ctx, "ListAccessible",
		attribute.Int64("tenant.id", subject.TenantID),
		attribute.Int64("user.id", subject.UserID),
	)
	start := time.Now()
	cached := false
	defer func() {
		result := observability.DecisionGranted
		if err != nil {
			result = observability.DecisionError
		}
		span.SetAttributes(attribute.Int("module_count", len(modules)), attribute.Bool("cached", cached))
		e.metrics.ObserveDecision("list_accessible", result, cached, time.Since(start))
		finishSpan(span, err)
	}()

	gen, useCache := e.generation(ctx, subject.TenantID)
	if !useCache {
		return e.queryAccessible(ctx, subject)
	}

	key := accessibleKey(subject.TenantID, gen, subject.UserID)
	if e.cacheGet(ctx, key, "modules", &modules) {
		cached = true
		return modules, nil
	}

	v, err := e.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		found, err := e.queryAccessible(ctx, subject)
		if err != nil {
			return nil, err
		}
		e.cacheSet(ctx, key, found)
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*catalog.Module), nil
}

// pathScanner appends the path columns after the module columns
type pathScanner struct {
	rows  *sql.Rows
	extra []interface{}
}

func (s pathScanner) Scan(dest ...interface{}) error {
	return s.rows.Scan(append(dest, s.extra...)...)
}

func (e *Engine) queryAccessible(ctx context.Context, subject Subject) ([]*catalog.Module, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT `+catalog.Columns("m")+`, r.id, r.tenant_id, a.id, a.tenant_id
		FROM affiliations af
		JOIN roles r ON r.id = af.role_id
		JOIN pertinences p ON p.role_id = r.id
		JOIN activations a ON a.id = p.activation_id
		JOIN modules m ON m.id = a.module_id
		WHERE af.user_id = $1
		ORDER BY m.id
	`, subject.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accessible modules: %w", err)
	}
	defer rows.Close()

	var roleID, roleTenant, activationID, activationTenant int64
	scanner := pathScanner{rows: rows, extra: []interface{}{&roleID, &roleTenant, &activationID, &activationTenant}}

	modules := []*catalog.Module{}
	seen := make(map[int64]bool)
	for rows.Next() {
		m, err := catalog.ScanModule(scanner)
		if err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		if v := checkPath(subject, roleID, roleTenant, activationID, activationTenant); v != nil {
			rows.Close()
			return nil, e.reportViolation(ctx, *v)
		}
		if !seen[m.ID] {
			seen[m.ID] = true
			modules = append(modules, m)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list accessible modules: %w", err)
	}
	return modules, nil
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

// IsTenantAdmin reports whether subject holds its tenant's admin role.
// Builtin features such as the module store are gated on it. An admin role
// of another tenant fails with an *IntegrityError.
func (e *Engine) IsTenantAdmin(ctx context.Context, subject Subject) (bool, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT r.id, r.tenant_id, u.tenant_id
		FROM affiliations af
		JOIN roles r ON r.id = af.role_id
		JOIN users u ON u.id = af.user_id
		WHERE af.user_id = $1 AND r.kind = $2
	`, subject.UserID, string(rbac.KindAdmin))
	if err != nil {
		return false, fmt.Errorf("failed to check admin role: %w", err)
	}
	defer rows.Close()

	admin := false
	for rows.Next() {
		var roleID, roleTenant, userTenant int64
		if err := rows.Scan(&roleID, &roleTenant, &userTenant); err != nil {
			return false, fmt.Errorf("failed to scan admin role: %w", err)
		}
		owner := Subject{UserID: subject.UserID, TenantID: userTenant}
		if v := checkAffiliation(owner, roleID, roleTenant); v != nil {
			rows.Close()
			return false, e.reportViolation(ctx, *v)
		}
		if roleTenant == subject.TenantID {
			admin = true
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("failed to check admin role: %w", err)
	}
	return admin, nil
}
