// Package middleware resolves who is calling and what they may open.
//
// Authenticate turns a request into a Principal using one of two
// authenticators:
//
//   - HeaderAuthenticator trusts the user id an authenticating proxy puts
//     in X-User-ID
//   - BearerAuthenticator verifies an OIDC token and maps its email to a user
//
// Either way the tenant comes from the stored user, so a caller can never
// pick the tenant it acts on.
//
// ModuleGate.Require guards a route with a catalog.ModuleRef. Catalog refs
// are decided by the entitlement engine; builtin refs by a BuiltinGate:
//
//	gate := middleware.NewModuleGate(engine, nil, logger)
//	router.Handle("/store/activated", gate.Require(catalog.Builtin(catalog.BuiltinStore))(h))
//
// RateLimit bounds mutations per tenant, in memory or shared through Redis.
package middleware
