package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modulink/pkg/catalog"
	"github.com/platinummonkey/modulink/pkg/entitlement"
	"github.com/platinummonkey/modulink/pkg/httputil"
	"github.com/platinummonkey/modulink/pkg/observability"
)

// AccessChecker decides access for catalog modules and admin-only builtins
type AccessChecker interface {
	CanAccess(ctx context.Context, subject entitlement.Subject, moduleID int64) (bool, error)
	IsTenantAdmin(ctx context.Context, subject entitlement.Subject) (bool, error)
}

// BuiltinRule decides access to one builtin feature
type BuiltinRule int

const (
	// RuleAuthenticated admits any authenticated user of the tenant
	RuleAuthenticated BuiltinRule = iota
	// RuleTenantAdmin admits holders of the tenant admin role
	RuleTenantAdmin
)

// BuiltinGate maps builtin tags to their rule. Tags missing from the map
// are denied.
type BuiltinGate map[catalog.BuiltinTag]BuiltinRule

// DefaultBuiltinGate lets only tenant admins manage roles and buy modules
func DefaultBuiltinGate() BuiltinGate {
	return BuiltinGate{
		catalog.BuiltinAdmin:   RuleTenantAdmin,
		catalog.BuiltinStore:   RuleTenantAdmin,
		catalog.BuiltinSupport: RuleAuthenticated,
		catalog.BuiltinNews:    RuleAuthenticated,
	}
}

// ModuleGate guards routes by module reference
type ModuleGate struct {
	checker  AccessChecker
	builtins BuiltinGate
	logger   logrus.FieldLogger
}

// NewModuleGate creates a gate; a nil builtins map means DefaultBuiltinGate
func NewModuleGate(checker AccessChecker, builtins BuiltinGate, logger logrus.FieldLogger) *ModuleGate {
	if builtins == nil {
		builtins = DefaultBuiltinGate()
	}
	return &ModuleGate{checker: checker, builtins: builtins, logger: logger}
}

// Allowed decides whether p may use ref
func (g *ModuleGate) Allowed(ctx context.Context, p *Principal, ref catalog.ModuleRef) (bool, error) {
	subject := entitlement.Subject{UserID: p.UserID, TenantID: p.TenantID}

	if id, ok := ref.CatalogID(); ok && ref.IsValid() {
		return g.checker.CanAccess(ctx, subject, id)
	}
	if tag, ok := ref.BuiltinTag(); ok && ref.IsValid() {
		rule, known := g.builtins[tag]
		if !known {
			return false, nil
		}
		switch rule {
		case RuleAuthenticated:
			return true, nil
		case RuleTenantAdmin:
			return g.checker.IsTenantAdmin(ctx, subject)
		}
	}
	return false, nil
}

// Require returns middleware admitting only callers allowed to use ref. It
// must run after Authenticate.
func (g *ModuleGate) Require(ref catalog.ModuleRef) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			log := observability.LoggerFromContext(r.Context(), g.logger).WithField("module", ref.String())
			allowed, err := g.Allowed(r.Context(), principal, ref)
			if errors.Is(err, entitlement.ErrIntegrityViolation) {
				httputil.WriteErrorMessage(w, http.StatusInternalServerError, "entitlement graph is inconsistent")
				return
			}
			if err != nil {
				log.WithError(err).Error("Failed to check module access")
				httputil.WriteInternalError(w)
				return
			}
			if !allowed {
				log.Debug("Module access denied")
				httputil.WriteForbidden(w, "access to "+ref.String()+" denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
