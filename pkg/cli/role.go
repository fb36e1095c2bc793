package cli

import (
	"context"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/modulink/pkg/app"
	"github.com/platinummonkey/modulink/pkg/entitlement"
)

const (
	colorFlag       = "color"
	descriptionFlag = "description"
)

func newRoleCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage tenant roles and their members",
	}
	cmd.AddCommand(
		newRoleListCommand(open),
		newRoleCreateCommand(open),
		newRoleDeleteCommand(open),
		newRoleMembersCommand(open),
	)
	return cmd
}

func newRoleListCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list <tenant-id>",
		Short: "List the tenant's roles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseID("tenant id", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				roles, err := a.Engine.ListRoles(ctx, tenantID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), roles)
			})
		},
	}
}

func newRoleCreateCommand(open Opener) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		nameFlag: &cobraflags.StringFlag{
			Name:  nameFlag,
			Value: "",
			Usage: "Role name (required)",
		},
		colorFlag: &cobraflags.StringFlag{
			Name:  colorFlag,
			Value: entitlement.DefaultRoleColor,
			Usage: "Display color as #rrggbb",
		},
		descriptionFlag: &cobraflags.StringFlag{
			Name:  descriptionFlag,
			Value: "",
			Usage: "Free text description",
		},
	}
	cmd := &cobra.Command{
		Use:   "create <tenant-id>",
		Short: "Create a custom role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseID("tenant id", args[0])
			if err != nil {
				return err
			}
			in := entitlement.RoleInput{
				Name:        flags[nameFlag].GetString(),
				Color:       flags[colorFlag].GetString(),
				Description: flags[descriptionFlag].GetString(),
			}
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				role, err := a.Engine.CreateRole(ctx, tenantID, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), role)
			})
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func newRoleDeleteCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <tenant-id> <role-id>",
		Short: "Delete a custom role with its memberships and grants",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs("id", args)
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				return a.Engine.DeleteRole(ctx, ids[0], ids[1])
			})
		},
	}
}

// newRoleMembersCommand prints the members, or replaces them when user ids
// follow the role id
func newRoleMembersCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "members <tenant-id> <role-id> [user-id...]",
		Short: "Show or replace the users affiliated to a role",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs("id", args)
			if err != nil {
				return err
			}
			tenantID, roleID, userIDs := ids[0], ids[1], ids[2:]

			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				if len(userIDs) > 0 {
					if err := a.Engine.SetRoleMembers(ctx, tenantID, roleID, userIDs); err != nil {
						return err
					}
				}
				members, err := a.Engine.RoleMembers(ctx, tenantID, roleID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"role_id":  roleID,
					"user_ids": members,
				})
			})
		},
	}
}
