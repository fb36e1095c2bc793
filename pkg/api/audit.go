package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/platinummonkey/modulink/pkg/audit"
	"github.com/platinummonkey/modulink/pkg/httputil"
)

// AuditTrail searches recorded audit events
type AuditTrail interface {
	Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.Event, error)
}

// listAudit returns the caller's tenant events, newest first. Optional query
// parameters: type, since (RFC 3339) and limit.
func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	tenantID := p.TenantID
	filter := audit.SearchFilter{
		TenantID:  &tenantID,
		EventType: audit.EventType(q.Get("type")),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			httputil.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	events, err := s.audit.Search(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, "search_audit", err)
		return
	}
	if events == nil {
		events = []*audit.Event{}
	}
	httputil.WriteSuccess(w, events)
}
