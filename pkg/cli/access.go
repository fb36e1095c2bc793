package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/modulink/pkg/app"
	"github.com/platinummonkey/modulink/pkg/catalog"
	"github.com/platinummonkey/modulink/pkg/entitlement"
	"github.com/platinummonkey/modulink/pkg/middleware"
)

func newAccessCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Inspect what a user can reach",
	}
	cmd.AddCommand(newAccessCheckCommand(open), newAccessListCommand(open))
	return cmd
}

// principalFor resolves the user's tenant the same way the API does
func principalFor(ctx context.Context, a *app.App, userID int64) (*middleware.Principal, error) {
	user, err := a.Tenants.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &middleware.Principal{UserID: user.ID, TenantID: user.TenantID, Email: user.Email}, nil
}

func newAccessCheckCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "check <user-id> <module>",
		Short: "Decide access to a catalog id or builtin:<tag>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			ref, err := catalog.ParseModuleRef(args[1])
			if err != nil {
				return err
			}

			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				p, err := principalFor(ctx, a, userID)
				if err != nil {
					return err
				}
				allowed, err := middleware.NewModuleGate(a.Engine, nil, a.Logger).Allowed(ctx, p, ref)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"user_id":   p.UserID,
					"tenant_id": p.TenantID,
					"module":    ref.String(),
					"allowed":   allowed,
				})
			})
		},
	}
}

func newAccessListCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list <user-id>",
		Short: "List the modules a user can reach",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				p, err := principalFor(ctx, a, userID)
				if err != nil {
					return err
				}
				modules, err := a.Engine.ListAccessible(ctx, entitlement.Subject{UserID: p.UserID, TenantID: p.TenantID})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), modules)
			})
		},
	}
}
