package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/modulink/pkg/catalog"
	"github.com/platinummonkey/modulink/pkg/entitlement"
	"github.com/platinummonkey/modulink/pkg/httputil"
	"github.com/platinummonkey/modulink/pkg/rbac"
)

// AccessResponse answers an access check
type AccessResponse struct {
	Module  string `json:"module"`
	Allowed bool   `json:"allowed"`
}

// SetModuleRolesRequest replaces the roles granted on a module
type SetModuleRolesRequest struct {
	RoleIDs []int64 `json:"role_ids"`
}

func (s *Server) listAccessible(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	modules, err := s.engine.ListAccessible(r.Context(), subjectOf(p))
	if err != nil {
		s.writeError(w, r, "list_accessible", err)
		return
	}
	if modules == nil {
		modules = []*catalog.Module{}
	}
	httputil.WriteSuccess(w, modules)
}

// checkAccess accepts a bare catalog id or a "builtin:<tag>" reference
func (s *Server) checkAccess(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	ref, err := catalog.ParseModuleRef(mux.Vars(r)["module"])
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	allowed, err := s.gate.Allowed(r.Context(), p, ref)
	if err != nil {
		s.writeError(w, r, "can_access", err)
		return
	}
	httputil.WriteSuccess(w, AccessResponse{Module: ref.String(), Allowed: allowed})
}

func (s *Server) moduleRoles(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	moduleID, ok := httputil.ParsePathInt64OrError(w, r, "moduleID")
	if !ok {
		return
	}

	roles, err := s.engine.ModuleRoles(r.Context(), p.TenantID, moduleID)
	if err != nil {
		s.writeError(w, r, "module_roles", err)
		return
	}
	writeRoles(w, roles)
}

// setModuleRoles resolves an empty role set by the policy query parameter,
// fallback-admin unless told otherwise
func (s *Server) setModuleRoles(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	moduleID, ok := httputil.ParsePathInt64OrError(w, r, "moduleID")
	if !ok {
		return
	}
	policy, err := entitlement.ParsePolicy(httputil.ParseQueryString(r, "policy", entitlement.PolicyFallbackToAdmin.String()))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	var req SetModuleRolesRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	granted, err := s.engine.SetModuleRoles(r.Context(), p.TenantID, moduleID, req.RoleIDs, policy)
	if err != nil {
		s.writeError(w, r, "set_module_roles", err)
		return
	}
	writeRoles(w, granted)
}

func writeRoles(w http.ResponseWriter, roles []*rbac.Role) {
	if roles == nil {
		roles = []*rbac.Role{}
	}
	httputil.WriteSuccess(w, roles)
}
