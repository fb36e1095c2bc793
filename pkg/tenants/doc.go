// Package tenants manages the companies subscribing to modulink and the users
// that belong to them.
//
// # Overview
//
// A tenant is the root of data isolation: every role, activation and user
// hangs off exactly one tenant. Tax ids are unique across tenants and user
// emails are unique case-insensitively across the whole installation, so an
// email resolves to exactly one (user, tenant) pair at login.
//
// # Logos
//
// Tenant logos live in object storage. LogoStore uploads the image under a
// content-addressed key and records the key on the tenant row:
//
//	logos := tenants.NewLogoStore(service, s3Client)
//	key, err := logos.Upload(ctx, tenantID, data, "image/png")
//
// # Usage
//
//	service := tenants.NewPostgresService(db)
//	tenant := &tenants.Tenant{Name: "Acme S.r.l.", TaxID: "IT01234567890"}
//	if err := service.CreateTenant(ctx, tenant); errors.Is(err, tenants.ErrDuplicateTaxID) {
//		// already registered
//	}
package tenants
