package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modulink/pkg/contextkeys"
	"github.com/platinummonkey/modulink/pkg/httputil"
	"github.com/platinummonkey/modulink/pkg/observability"
	"github.com/platinummonkey/modulink/pkg/tenants"
)

// ErrUnauthenticated is returned when a request carries no usable identity
var ErrUnauthenticated = errors.New("unauthenticated")

// UserIDHeader is read by HeaderAuthenticator
const UserIDHeader = "X-User-ID"

// Principal is the authenticated caller. TenantID always comes from the
// user record, never from the request.
type Principal struct {
	UserID   int64  `json:"user_id"`
	TenantID int64  `json:"tenant_id"`
	Email    string `json:"email"`
}

// WithPrincipal stores p and its user id as the acting user
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = contextkeys.WithPrincipal(ctx, p)
	return contextkeys.WithActorID(ctx, p.UserID)
}

// PrincipalFromContext returns the authenticated caller
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextkeys.PrincipalKey).(*Principal)
	return p, ok && p != nil
}

// UserDirectory looks up the users an identity resolves to
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (*tenants.User, error)
	GetUserByEmail(ctx context.Context, email string) (*tenants.User, error)
}

// Authenticator resolves the caller of a request
type Authenticator interface {
	Authenticate(r *http.Request) (*Principal, error)
}

func principalOf(user *tenants.User) *Principal {
	return &Principal{UserID: user.ID, TenantID: user.TenantID, Email: user.Email}
}

// HeaderAuthenticator trusts a user id set by an authenticating proxy in
// front of the service
type HeaderAuthenticator struct {
	users  UserDirectory
	header string
}

// NewHeaderAuthenticator reads the user id from header, UserIDHeader when empty
func NewHeaderAuthenticator(users UserDirectory, header string) *HeaderAuthenticator {
	if header == "" {
		header = UserIDHeader
	}
	return &HeaderAuthenticator{users: users, header: header}
}

func (a *HeaderAuthenticator) Authenticate(r *http.Request) (*Principal, error) {
	raw := strings.TrimSpace(r.Header.Get(a.header))
	if raw == "" {
		return nil, fmt.Errorf("%w: missing %s header", ErrUnauthenticated, a.header)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: invalid %s header", ErrUnauthenticated, a.header)
	}

	user, err := a.users.GetUser(r.Context(), id)
	if errors.Is(err, tenants.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: unknown user %d", ErrUnauthenticated, id)
	}
	if err != nil {
		return nil, err
	}
	return principalOf(user), nil
}

// TokenVerifier turns a bearer token into the caller's verified email
type TokenVerifier interface {
	VerifyEmail(ctx context.Context, rawToken string) (string, error)
}

// BearerAuthenticator authenticates "Authorization: Bearer" tokens and maps
// the verified email to a user
type BearerAuthenticator struct {
	users    UserDirectory
	verifier TokenVerifier
}

// NewBearerAuthenticator creates a bearer token authenticator
func NewBearerAuthenticator(users UserDirectory, verifier TokenVerifier) *BearerAuthenticator {
	return &BearerAuthenticator{users: users, verifier: verifier}
}

func (a *BearerAuthenticator) Authenticate(r *http.Request) (*Principal, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("%w: missing authorization header", ErrUnauthenticated)
	}
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: invalid authorization header format", ErrUnauthenticated)
	}

	email, err := a.verifier.VerifyEmail(r.Context(), strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	user, err := a.users.GetUserByEmail(r.Context(), email)
	if errors.Is(err, tenants.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: no user for %s", ErrUnauthenticated, email)
	}
	if err != nil {
		return nil, err
	}
	return principalOf(user), nil
}

// Authenticate rejects requests without an identity with 401. Lookup
// failures other than an unknown identity are reported as 500.
func Authenticate(auth Authenticator, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := observability.LoggerFromContext(r.Context(), logger)

			principal, err := auth.Authenticate(r)
			if errors.Is(err, ErrUnauthenticated) {
				log.WithError(err).Debug("Rejected unauthenticated request")
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if err != nil {
				log.WithError(err).Error("Failed to resolve caller identity")
				httputil.WriteInternalError(w)
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			ctx = observability.WithLogger(ctx, log.WithFields(logrus.Fields{
				"user_id":   principal.UserID,
				"tenant_id": principal.TenantID,
			}))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
