package cli

import (
	"context"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/modulink/pkg/app"
	"github.com/platinummonkey/modulink/pkg/entitlement"
)

const policyFlag = "policy"

func newModuleCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "module",
		Short: "Activate modules for a tenant and grant them to roles",
	}
	cmd.AddCommand(
		newModuleListCommand(open),
		newModulePurchaseCommand(open),
		newModuleUninstallCommand(open),
		newModuleRolesCommand(open),
		newModuleSetRolesCommand(open),
	)
	return cmd
}

// tenantModuleArgs parses "<tenant-id> <module-id>"
func tenantModuleArgs(args []string) (int64, int64, error) {
	tenantID, err := parseID("tenant id", args[0])
	if err != nil {
		return 0, 0, err
	}
	moduleID, err := parseID("module id", args[1])
	if err != nil {
		return 0, 0, err
	}
	return tenantID, moduleID, nil
}

func newModuleListCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list <tenant-id>",
		Short: "List the tenant's activated and available store modules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseID("tenant id", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				activated, err := a.Engine.ListActivated(ctx, tenantID)
				if err != nil {
					return err
				}
				available, err := a.Engine.ListNotActivated(ctx, tenantID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"activated": activated,
					"available": available,
				})
			})
		},
	}
}

func newModulePurchaseCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "purchase <tenant-id> <module-id>",
		Short: "Activate a module; the tenant admin role is granted on first purchase",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, moduleID, err := tenantModuleArgs(args)
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				act, created, err := a.Engine.Purchase(ctx, tenantID, moduleID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"activation": act,
					"created":    created,
				})
			})
		},
	}
}

func newModuleUninstallCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <tenant-id> <module-id>",
		Short: "Remove an activation and its grants",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, moduleID, err := tenantModuleArgs(args)
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				return a.Engine.Uninstall(ctx, tenantID, moduleID)
			})
		},
	}
}

func newModuleRolesCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "roles <tenant-id> <module-id>",
		Short: "List the roles granted on a module",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, moduleID, err := tenantModuleArgs(args)
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				roles, err := a.Engine.ModuleRoles(ctx, tenantID, moduleID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), roles)
			})
		},
	}
}

func newModuleSetRolesCommand(open Opener) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		policyFlag: &cobraflags.StringFlag{
			Name:  policyFlag,
			Value: entitlement.PolicyFallbackToAdmin.String(),
			Usage: "What an empty role list means: fallback-admin or revoke-all",
		},
	}
	cmd := &cobra.Command{
		Use:   "set-roles <tenant-id> <module-id> [role-id...]",
		Short: "Replace the roles granted on a module",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, moduleID, err := tenantModuleArgs(args)
			if err != nil {
				return err
			}
			roleIDs, err := parseIDs("role id", args[2:])
			if err != nil {
				return err
			}
			policy, err := entitlement.ParsePolicy(flags[policyFlag].GetString())
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				granted, err := a.Engine.SetModuleRoles(ctx, tenantID, moduleID, roleIDs, policy)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), granted)
			})
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}
