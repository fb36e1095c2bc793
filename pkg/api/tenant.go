package api

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/platinummonkey/modulink/pkg/httputil"
	"github.com/platinummonkey/modulink/pkg/observability"
	"github.com/platinummonkey/modulink/pkg/tenants"
)

var logoContentTypes = map[string]bool{
	"image/png":     true,
	"image/jpeg":    true,
	"image/svg+xml": true,
	"image/webp":    true,
}

// MeResponse describes the caller
type MeResponse struct {
	UserID   int64  `json:"user_id"`
	TenantID int64  `json:"tenant_id"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

// LogoResponse carries the stored logo key
type LogoResponse struct {
	LogoKey string `json:"logo_key"`
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	isAdmin, err := s.engine.IsTenantAdmin(r.Context(), subjectOf(p))
	if err != nil {
		s.writeError(w, r, "is_tenant_admin", err)
		return
	}
	httputil.WriteSuccess(w, MeResponse{
		UserID:   p.UserID,
		TenantID: p.TenantID,
		Email:    p.Email,
		IsAdmin:  isAdmin,
	})
}

func (s *Server) getTenant(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	tenant, err := s.tenants.GetTenant(r.Context(), p.TenantID)
	if err != nil {
		s.writeError(w, r, "get_tenant", err)
		return
	}
	httputil.WriteSuccess(w, tenant)
}

// uploadLogo takes the raw image as the request body
func (s *Server) uploadLogo(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !logoContentTypes[contentType] {
		httputil.WriteErrorMessage(w, http.StatusUnsupportedMediaType, "logo must be png, jpeg, svg or webp")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, tenants.MaxLogoSize+1))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		httputil.WriteErrorMessage(w, http.StatusRequestEntityTooLarge, "logo is too large")
		return
	}
	if err != nil {
		httputil.WriteBadRequest(w, "failed to read logo")
		return
	}
	if len(data) == 0 {
		httputil.WriteBadRequest(w, "logo is empty")
		return
	}
	if len(data) > tenants.MaxLogoSize {
		httputil.WriteErrorMessage(w, http.StatusRequestEntityTooLarge, "logo is too large")
		return
	}

	key, err := s.logos.Upload(r.Context(), p.TenantID, data, contentType)
	if err != nil && key == "" {
		s.writeError(w, r, "upload_logo", err)
		return
	}
	if err != nil {
		observability.LoggerFromContext(r.Context(), s.logger).WithError(err).Warn("Logo replaced but old object remains")
	}
	httputil.WriteSuccess(w, LogoResponse{LogoKey: key})
}
