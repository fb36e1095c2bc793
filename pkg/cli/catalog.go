package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/modulink/pkg/app"
	"github.com/platinummonkey/modulink/pkg/catalog"
)

const (
	fileFlag  = "file"
	delayFlag = "delay"
)

func newCatalogCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the global module catalog",
	}
	cmd.AddCommand(newCatalogListCommand(open), newCatalogSyncCommand(open), newCatalogWatchCommand(open))
	return cmd
}

func newCatalogListCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				modules, err := catalog.NewStore(a.DB).List(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), modules)
			})
		},
	}
}

// seedPath prefers the flag and falls back to MODULINK_CATALOG_SEED_FILE
func seedPath(flag string, a *app.App) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if a.Config != nil && a.Config.Catalog.SeedFile != "" {
		return a.Config.Catalog.SeedFile, nil
	}
	return "", fmt.Errorf("no seed file: pass --%s or set MODULINK_CATALOG_SEED_FILE", fileFlag)
}

func newCatalogSyncCommand(open Opener) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		fileFlag: &cobraflags.StringFlag{
			Name:  fileFlag,
			Value: "",
			Usage: "Path to the YAML catalog seed",
		},
	}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upsert the modules of a seed file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				path, err := seedPath(flags[fileFlag].GetString(), a)
				if err != nil {
					return err
				}
				seed, err := catalog.LoadSeedFile(path)
				if err != nil {
					return err
				}
				if err := catalog.Sync(ctx, a.DB, seed); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"file":    path,
					"modules": len(seed.Modules),
				})
			})
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func newCatalogWatchCommand(open Opener) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		fileFlag: &cobraflags.StringFlag{
			Name:  fileFlag,
			Value: "",
			Usage: "Path to the YAML catalog seed",
		},
		delayFlag: &cobraflags.StringFlag{
			Name:  delayFlag,
			Value: "500ms",
			Usage: "Quiet period before a change is synced",
		},
	}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync the seed file now and again on every change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			delay, err := time.ParseDuration(flags[delayFlag].GetString())
			if err != nil {
				return fmt.Errorf("invalid --%s: %w", delayFlag, err)
			}
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				path, err := seedPath(flags[fileFlag].GetString(), a)
				if err != nil {
					return err
				}
				seed, err := catalog.LoadSeedFile(path)
				if err != nil {
					return err
				}
				if err := catalog.Sync(ctx, a.DB, seed); err != nil {
					return err
				}
				return catalog.NewWatcher(path, a.DB, a.Logger, delay).Run(ctx)
			})
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}
