// Package api exposes the entitlement engine over HTTP.
//
// Every route lives under /api/v1 and is scoped to the caller's tenant: the
// identity middleware resolves the principal and handlers never read a
// tenant id from the request. Store routes are gated by the "store" builtin
// and role management by the "admin" builtin, both admin-only by default.
//
//	srv := api.NewServer(api.Config{
//		Engine:        engine,
//		Tenants:       directory,
//		Authenticator: middleware.NewHeaderAuthenticator(directory, ""),
//		Logger:        logger,
//	})
//	http.ListenAndServe(":8080", srv)
//
// Engine errors map to status codes in one place (writeError): missing
// activations, locked modules and system roles are conflicts, unknown ids
// are 404, and an inconsistent graph is a 500 that never leaks row ids.
package api
