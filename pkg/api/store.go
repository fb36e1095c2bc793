package api

import (
	"net/http"

	"github.com/platinummonkey/modulink/pkg/catalog"
	"github.com/platinummonkey/modulink/pkg/httputil"
)

func (s *Server) listActivated(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	modules, err := s.engine.ListActivated(r.Context(), p.TenantID)
	if err != nil {
		s.writeError(w, r, "list_activated", err)
		return
	}
	writeModules(w, modules)
}

func (s *Server) listAvailable(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	modules, err := s.engine.ListNotActivated(r.Context(), p.TenantID)
	if err != nil {
		s.writeError(w, r, "list_not_activated", err)
		return
	}
	writeModules(w, modules)
}

// purchase answers 201 for a new activation and 200 when the module was
// already active
func (s *Server) purchase(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	moduleID, ok := httputil.ParsePathInt64OrError(w, r, "moduleID")
	if !ok {
		return
	}

	act, created, err := s.engine.Purchase(r.Context(), p.TenantID, moduleID)
	if err != nil {
		s.writeError(w, r, "purchase", err)
		return
	}
	if created {
		httputil.WriteCreated(w, act)
		return
	}
	httputil.WriteSuccess(w, act)
}

func (s *Server) uninstall(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	moduleID, ok := httputil.ParsePathInt64OrError(w, r, "moduleID")
	if !ok {
		return
	}

	if err := s.engine.Uninstall(r.Context(), p.TenantID, moduleID); err != nil {
		s.writeError(w, r, "uninstall", err)
		return
	}
	httputil.WriteNoContent(w)
}

func writeModules(w http.ResponseWriter, modules []*catalog.Module) {
	if modules == nil {
		modules = []*catalog.Module{}
	}
	httputil.WriteSuccess(w, modules)
}
