package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/modulink/pkg/app"
	"github.com/platinummonkey/modulink/pkg/entitlement"
	"github.com/platinummonkey/modulink/pkg/storage"
	"github.com/platinummonkey/modulink/pkg/tenants"
)

const (
	nameFlag           = "name"
	taxIDFlag          = "tax-id"
	ownerEmailFlag     = "owner-email"
	ownerFirstNameFlag = "owner-first-name"
	ownerLastNameFlag  = "owner-last-name"
)

func newTenantCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Create and bootstrap tenants",
	}
	cmd.AddCommand(newTenantListCommand(open), newTenantCreateCommand(open), newTenantBootstrapCommand(open))
	return cmd
}

func newTenantListCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				list, err := a.Tenants.ListTenants(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), list)
			})
		},
	}
}

// tenantCreated is printed by tenant create
type tenantCreated struct {
	Tenant    *tenants.Tenant              `json:"tenant"`
	Owner     *tenants.User                `json:"owner"`
	Bootstrap *entitlement.BootstrapResult `json:"bootstrap"`
}

func newTenantCreateCommand(open Opener) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		nameFlag: &cobraflags.StringFlag{
			Name:  nameFlag,
			Value: "",
			Usage: "Company name (required)",
		},
		taxIDFlag: &cobraflags.StringFlag{
			Name:  taxIDFlag,
			Value: "",
			Usage: "Tax id, unique across tenants (required)",
		},
		ownerEmailFlag: &cobraflags.StringFlag{
			Name:  ownerEmailFlag,
			Value: "",
			Usage: "Email of the first user, who joins the admin role (required)",
		},
		ownerFirstNameFlag: &cobraflags.StringFlag{
			Name:  ownerFirstNameFlag,
			Value: "",
			Usage: "First name of the first user",
		},
		ownerLastNameFlag: &cobraflags.StringFlag{
			Name:  ownerLastNameFlag,
			Value: "",
			Usage: "Last name of the first user",
		},
	}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant with its owner and bootstrap it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant := &tenants.Tenant{
				Name:  flags[nameFlag].GetString(),
				TaxID: flags[taxIDFlag].GetString(),
			}
			owner := &tenants.User{
				Email:     flags[ownerEmailFlag].GetString(),
				FirstName: flags[ownerFirstNameFlag].GetString(),
				LastName:  flags[ownerLastNameFlag].GetString(),
			}
			if owner.Email == "" {
				return fmt.Errorf("--%s is required", ownerEmailFlag)
			}

			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				err := storage.WithTx(ctx, a.DB, func(tx *sql.Tx) error {
					directory := tenants.NewPostgresService(tx)
					if err := directory.CreateTenant(ctx, tenant); err != nil {
						return err
					}
					owner.TenantID = tenant.ID
					return directory.CreateUser(ctx, owner)
				})
				if err != nil {
					return err
				}

				result, err := a.Engine.BootstrapTenant(ctx, tenant.ID, owner.ID)
				if err != nil {
					return fmt.Errorf("tenant %d created but not bootstrapped, rerun tenant bootstrap: %w", tenant.ID, err)
				}
				return printJSON(cmd.OutOrStdout(), tenantCreated{Tenant: tenant, Owner: owner, Bootstrap: result})
			})
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func newTenantBootstrapCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap <tenant-id> [owner-user-id]",
		Short: "Create missing system roles and default activations",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseID("tenant id", args[0])
			if err != nil {
				return err
			}
			var ownerID int64
			if len(args) == 2 {
				if ownerID, err = parseID("user id", args[1]); err != nil {
					return err
				}
			}

			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				result, err := a.Engine.BootstrapTenant(ctx, tenantID, ownerID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}
