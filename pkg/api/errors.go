package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/modulink/pkg/activation"
	"github.com/platinummonkey/modulink/pkg/catalog"
	"github.com/platinummonkey/modulink/pkg/entitlement"
	"github.com/platinummonkey/modulink/pkg/httputil"
	"github.com/platinummonkey/modulink/pkg/observability"
	"github.com/platinummonkey/modulink/pkg/rbac"
	"github.com/platinummonkey/modulink/pkg/tenants"
)

// errorMapping pairs a domain error with its reply
type errorMapping struct {
	err    error
	status int
	code   string
}

// Checked in order; the first match wins
var errorMappings = []errorMapping{
	{entitlement.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{activation.ErrModuleNotActivated, http.StatusConflict, "module_not_activated"},
	{activation.ErrModuleLocked, http.StatusConflict, "module_locked"},
	{rbac.ErrSystemRole, http.StatusConflict, "system_role"},
	{rbac.ErrRoleNotFound, http.StatusNotFound, "role_not_found"},
	{catalog.ErrModuleNotFound, http.StatusNotFound, "module_not_found"},
	{tenants.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{tenants.ErrTenantNotFound, http.StatusNotFound, "tenant_not_found"},
}

// writeError maps err to a reply. Integrity violations and unknown errors
// are logged and answered without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log := observability.LoggerFromContext(r.Context(), s.logger).WithField("operation", op)

	if errors.Is(err, entitlement.ErrIntegrityViolation) {
		log.WithError(err).Error("Rejected request on inconsistent entitlement graph")
		httputil.WriteCodedError(w, r, http.StatusInternalServerError, "integrity_violation", entitlement.ErrIntegrityViolation.Error())
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			httputil.WriteCodedError(w, r, m.status, m.code, err.Error())
			return
		}
	}

	log.WithError(err).Error("Request failed")
	httputil.WriteInternalError(w)
}
