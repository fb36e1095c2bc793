package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/modulink/pkg/rbac"
)

// IntegrityReport is the outcome of a full scan of the entitlement graph
type IntegrityReport struct {
	ScannedAt  time.Time   `json:"scanned_at"`
	Violations []Violation `json:"violations"`
}

// OK reports whether the scan found nothing
func (r *IntegrityReport) OK() bool {
	return len(r.Violations) == 0
}

// Counts returns the number of violations per kind, every kind present
func (r *IntegrityReport) Counts() map[ViolationKind]int {
	counts := make(map[ViolationKind]int, len(ViolationKinds()))
	for _, kind := range ViolationKinds() {
		counts[kind] = 0
	}
	for _, v := range r.Violations {
		counts[v.Kind]++
	}
	return counts
}

// ScanIntegrity looks for edges crossing tenants and tenants without an
// admin role. It only reads; repairs are left to an operator.
func (e *Engine) ScanIntegrity(ctx context.Context) (report *IntegrityReport, err error) {
	ctx, span := startSpan(ctx, "ScanIntegrity")
	defer func() { finishSpan(span, err) }()

	report = &IntegrityReport{ScannedAt: time.Now().UTC(), Violations: []Violation{}}

	scans := []struct {
		kind  ViolationKind
		query string
		args  []interface{}
		scan  func(dest func(...interface{}) error) (Violation, error)
	}{
		{
			kind: ViolationCrossTenantAffiliation,
			query: `
				SELECT u.tenant_id, r.tenant_id, af.user_id, af.role_id
				FROM affiliations af
				JOIN users u ON u.id = af.user_id
				JOIN roles r ON r.id = af.role_id
				WHERE u.tenant_id <> r.tenant_id
				ORDER BY af.user_id, af.role_id`,
			scan: func(scan func(...interface{}) error) (Violation, error) {
				v := Violation{Kind: ViolationCrossTenantAffiliation}
				err := scan(&v.TenantID, &v.OtherTenantID, &v.UserID, &v.RoleID)
				return v, err
			},
		},
		{
			kind: ViolationCrossTenantPertinence,
			query: `
				SELECT r.tenant_id, a.tenant_id, p.role_id, p.activation_id
				FROM pertinences p
				JOIN roles r ON r.id = p.role_id
				JOIN activations a ON a.id = p.activation_id
				WHERE r.tenant_id <> a.tenant_id
				ORDER BY p.role_id, p.activation_id`,
			scan: func(scan func(...interface{}) error) (Violation, error) {
				v := Violation{Kind: ViolationCrossTenantPertinence}
				err := scan(&v.TenantID, &v.OtherTenantID, &v.RoleID, &v.ActivationID)
				return v, err
			},
		},
		{
			kind: ViolationMissingAdminRole,
			query: `
				SELECT t.id FROM tenants t
				WHERE NOT EXISTS (
					SELECT 1 FROM roles r WHERE r.tenant_id = t.id AND r.kind = $1
				)
				ORDER BY t.id`,
			args: []interface{}{string(rbac.KindAdmin)},
			scan: func(scan func(...interface{}) error) (Violation, error) {
				v := Violation{Kind: ViolationMissingAdminRole}
				err := scan(&v.TenantID)
				return v, err
			},
		},
	}

	for _, s := range scans {
		found, err := e.scanViolations(ctx, s.query, s.args, s.scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", s.kind, err)
		}
		report.Violations = append(report.Violations, found...)
	}

	counts := report.Counts()
	kinds := make([]string, 0, len(counts))
	byName := make(map[string]int, len(counts))
	for _, kind := range ViolationKinds() {
		kinds = append(kinds, string(kind))
		byName[string(kind)] = counts[kind]
	}
	e.metrics.SetScanFindings(kinds, byName, report.ScannedAt)

	for _, v := range report.Violations {
		e.log(ctx).WithField("kind", v.Kind).WithField("tenant_id", v.TenantID).Error(v.String())
	}
	return report, nil
}

func (e *Engine) scanViolations(ctx context.Context, query string, args []interface{}, scan func(func(...interface{}) error) (Violation, error)) ([]Violation, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []Violation
	for rows.Next() {
		v, err := scan(rows.Scan)
		if err != nil {
			return nil, err
		}
		found = append(found, v)
	}
	return found, rows.Err()
}
