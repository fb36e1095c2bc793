package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/modulink/pkg/app"
	"github.com/platinummonkey/modulink/pkg/storage/postgres"
)

// Opener connects to the configured backends
type Opener func(ctx context.Context) (*app.App, error)

// Migrator applies schema migrations
type Migrator func(ctx context.Context, a *app.App) error

// PostgresMigrator runs the versioned Postgres migrations
func PostgresMigrator(ctx context.Context, a *app.App) error {
	return postgres.RunMigrations(ctx, a.DB, a.Logger)
}

// NewRootCommand creates the modulink-admin command tree
func NewRootCommand(open Opener, migrate Migrator) *cobra.Command {
	root := &cobra.Command{
		Use:           "modulink-admin",
		Short:         "Administer modulink tenants, modules and roles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCommand(open, migrate),
		newCatalogCommand(open),
		newTenantCommand(open),
		newModuleCommand(open),
		newRoleCommand(open),
		newAccessCommand(open),
		newIntegrityCommand(open),
		newAuditCommand(open),
	)
	return root
}

// withApp opens the backends for the duration of fn
func withApp(cmd *cobra.Command, open Opener, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(name, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return id, nil
}

func parseIDs(name string, args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseID(name, arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
