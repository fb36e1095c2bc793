package api

import (
	"net/http"

	"github.com/platinummonkey/modulink/pkg/entitlement"
	"github.com/platinummonkey/modulink/pkg/httputil"
)

// RoleMembersRequest replaces the users affiliated to a role
type RoleMembersRequest struct {
	UserIDs []int64 `json:"user_ids"`
}

// RoleMembersResponse lists the users affiliated to a role
type RoleMembersResponse struct {
	RoleID  int64   `json:"role_id"`
	UserIDs []int64 `json:"user_ids"`
}

func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	roles, err := s.engine.ListRoles(r.Context(), p.TenantID)
	if err != nil {
		s.writeError(w, r, "list_roles", err)
		return
	}
	writeRoles(w, roles)
}

func (s *Server) createRole(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in entitlement.RoleInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	role, err := s.engine.CreateRole(r.Context(), p.TenantID, in)
	if err != nil {
		s.writeError(w, r, "create_role", err)
		return
	}
	httputil.WriteCreated(w, role)
}

func (s *Server) updateRole(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "roleID")
	if !ok {
		return
	}
	var in entitlement.RoleInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	role, err := s.engine.UpdateRole(r.Context(), p.TenantID, roleID, in)
	if err != nil {
		s.writeError(w, r, "update_role", err)
		return
	}
	httputil.WriteSuccess(w, role)
}

func (s *Server) deleteRole(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "roleID")
	if !ok {
		return
	}

	if err := s.engine.DeleteRole(r.Context(), p.TenantID, roleID); err != nil {
		s.writeError(w, r, "delete_role", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) roleMembers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "roleID")
	if !ok {
		return
	}

	members, err := s.engine.RoleMembers(r.Context(), p.TenantID, roleID)
	if err != nil {
		s.writeError(w, r, "role_members", err)
		return
	}
	if members == nil {
		members = []int64{}
	}
	httputil.WriteSuccess(w, RoleMembersResponse{RoleID: roleID, UserIDs: members})
}

func (s *Server) setRoleMembers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "roleID")
	if !ok {
		return
	}
	var req RoleMembersRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserIDs == nil {
		req.UserIDs = []int64{}
	}

	if err := s.engine.SetRoleMembers(r.Context(), p.TenantID, roleID, req.UserIDs); err != nil {
		s.writeError(w, r, "set_role_members", err)
		return
	}
	httputil.WriteSuccess(w, RoleMembersResponse{RoleID: roleID, UserIDs: req.UserIDs})
}
