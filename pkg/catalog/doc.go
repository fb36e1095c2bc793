// Package catalog holds the global list of purchasable modules.
//
// The catalog is tenant independent: a module exists once and tenants enable it
// through an activation (see pkg/activation). Modules are seeded from a YAML
// file and can be re-synced at runtime by Watcher when the file changes.
//
// Features that are not catalog modules (the store, the admin console, support
// and news pages) are addressed through ModuleRef with a builtin tag, so they
// never share the catalog id space:
//
//	ref := catalog.Catalog(7)          // a purchasable module
//	ref := catalog.Builtin(catalog.BuiltinStore)
package catalog
