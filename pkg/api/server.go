package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/modulink/pkg/activation"
	"github.com/platinummonkey/modulink/pkg/catalog"
	"github.com/platinummonkey/modulink/pkg/entitlement"
	"github.com/platinummonkey/modulink/pkg/httputil"
	"github.com/platinummonkey/modulink/pkg/middleware"
	"github.com/platinummonkey/modulink/pkg/observability"
	"github.com/platinummonkey/modulink/pkg/rbac"
	"github.com/platinummonkey/modulink/pkg/tenants"
)

// Entitlements is the part of *entitlement.Engine the API serves
type Entitlements interface {
	middleware.AccessChecker

	ListAccessible(ctx context.Context, subject entitlement.Subject) ([]*catalog.Module, error)
	ListActivated(ctx context.Context, tenantID int64) ([]*catalog.Module, error)
	ListNotActivated(ctx context.Context, tenantID int64) ([]*catalog.Module, error)
	Purchase(ctx context.Context, tenantID, moduleID int64) (*activation.Activation, bool, error)
	Uninstall(ctx context.Context, tenantID, moduleID int64) error

	ModuleRoles(ctx context.Context, tenantID, moduleID int64) ([]*rbac.Role, error)
	SetModuleRoles(ctx context.Context, tenantID, moduleID int64, roleIDs []int64, policy entitlement.Policy) ([]*rbac.Role, error)

	ListRoles(ctx context.Context, tenantID int64) ([]*rbac.Role, error)
	CreateRole(ctx context.Context, tenantID int64, in entitlement.RoleInput) (*rbac.Role, error)
	UpdateRole(ctx context.Context, tenantID, roleID int64, in entitlement.RoleInput) (*rbac.Role, error)
	DeleteRole(ctx context.Context, tenantID, roleID int64) error
	RoleMembers(ctx context.Context, tenantID, roleID int64) ([]int64, error)
	SetRoleMembers(ctx context.Context, tenantID, roleID int64, userIDs []int64) error
}

// TenantDirectory reads tenant records
type TenantDirectory interface {
	GetTenant(ctx context.Context, id int64) (*tenants.Tenant, error)
}

// LogoUploader stores tenant logos
type LogoUploader interface {
	Upload(ctx context.Context, tenantID int64, data []byte, contentType string) (string, error)
}

// Config wires a Server. Logos, Audit and Limiter are optional.
type Config struct {
	Engine        Entitlements
	Tenants       TenantDirectory
	Logos         LogoUploader
	Audit         AuditTrail
	Authenticator middleware.Authenticator
	Builtins      middleware.BuiltinGate
	Limiter       middleware.Limiter
	Metrics       *observability.Metrics
	Logger        logrus.FieldLogger
	MaxBodyBytes  int64
}

// Server represents our API server
type Server struct {
	engine  Entitlements
	tenants TenantDirectory
	logos   LogoUploader
	audit   AuditTrail
	gate    *middleware.ModuleGate
	logger  logrus.FieldLogger

	router  *mux.Router
	handler http.Handler
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	if tenants.MaxLogoSize > maxBody {
		maxBody = tenants.MaxLogoSize
	}

	s := &Server{
		engine:  cfg.Engine,
		tenants: cfg.Tenants,
		logos:   cfg.Logos,
		audit:   cfg.Audit,
		gate:    middleware.NewModuleGate(cfg.Engine, cfg.Builtins, logger),
		logger:  logger,
		router:  mux.NewRouter(),
	}
	s.router.Use(observability.HTTPMetricsMiddleware(cfg.Metrics))
	s.setupRoutes(cfg)

	chain := httputil.Chain(
		httputil.RequestIDMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		httputil.LoggingMiddleware(logger),
		httputil.MaxBytesMiddleware(maxBody),
	)
	s.handler = otelhttp.NewHandler(chain(s.router), "modulink.api")
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(cfg Config) {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Authenticate(cfg.Authenticator, s.logger))

	admin := s.gate.Require(catalog.Builtin(catalog.BuiltinAdmin))
	store := s.gate.Require(catalog.Builtin(catalog.BuiltinStore))
	limit := func(next http.Handler) http.Handler { return next }
	if cfg.Limiter != nil {
		limit = middleware.RateLimit(cfg.Limiter, s.logger)
	}
	mutation := func(gate func(http.Handler) http.Handler) func(http.Handler) http.Handler {
		return httputil.Chain(gate, limit, httputil.ContentTypeMiddleware)
	}

	route := func(method, path string, h http.HandlerFunc, mw ...func(http.Handler) http.Handler) {
		api.Handle(path, httputil.Chain(mw...)(h)).Methods(method)
	}

	// Caller
	route(http.MethodGet, "/me", s.me)
	route(http.MethodGet, "/tenant", s.getTenant)
	if s.logos != nil {
		route(http.MethodPut, "/tenant/logo", s.uploadLogo, admin, limit)
	}

	// Navigation
	route(http.MethodGet, "/modules/accessible", s.listAccessible)
	route(http.MethodGet, "/modules/{module}/access", s.checkAccess)

	// Module grants
	route(http.MethodGet, "/modules/{moduleID:[0-9]+}/roles", s.moduleRoles, admin)
	route(http.MethodPut, "/modules/{moduleID:[0-9]+}/roles", s.setModuleRoles, mutation(admin))

	// Store
	route(http.MethodGet, "/store/activated", s.listActivated, store)
	route(http.MethodGet, "/store/available", s.listAvailable, store)
	route(http.MethodPost, "/store/modules/{moduleID:[0-9]+}/purchase", s.purchase, mutation(store))
	route(http.MethodDelete, "/store/modules/{moduleID:[0-9]+}", s.uninstall, store, limit)

	// Roles
	route(http.MethodGet, "/roles", s.listRoles, admin)
	route(http.MethodPost, "/roles", s.createRole, mutation(admin))
	route(http.MethodPut, "/roles/{roleID:[0-9]+}", s.updateRole, mutation(admin))
	route(http.MethodDelete, "/roles/{roleID:[0-9]+}", s.deleteRole, admin, limit)
	route(http.MethodGet, "/roles/{roleID:[0-9]+}/members", s.roleMembers, admin)
	route(http.MethodPut, "/roles/{roleID:[0-9]+}/members", s.setRoleMembers, mutation(admin))

	if s.audit != nil {
		route(http.MethodGet, "/audit", s.listAudit, admin)
	}
}

// Router exposes the router so other route groups can be mounted
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// principal returns the authenticated caller. Routes are mounted behind
// Authenticate, so a missing principal is answered with 401.
func principal(w http.ResponseWriter, r *http.Request) (*middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
	}
	return p, ok
}

func subjectOf(p *middleware.Principal) entitlement.Subject {
	return entitlement.Subject{UserID: p.UserID, TenantID: p.TenantID}
}
