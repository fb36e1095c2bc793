package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/modulink/pkg/app"
)

func newMigrateCommand(open Opener, migrate Migrator) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				return migrate(ctx, a)
			})
		},
	}
}
