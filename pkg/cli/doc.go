// Package cli implements modulink-admin, the operator CLI.
//
// Commands work directly against the database configured through the
// MODULINK_* environment and print JSON to stdout:
//
//	modulink-admin migrate
//	modulink-admin catalog sync --file catalog.yaml
//	modulink-admin tenant create --name Acme --tax-id IT001 --owner-email owner@acme.test
//	modulink-admin module purchase 12 7
//	modulink-admin module set-roles 12 7 3 4 --policy revoke-all
//	modulink-admin integrity scan
//
// Mutations go through the entitlement engine, so they are audited and
// invalidate the shared decision cache like API calls do.
package cli
