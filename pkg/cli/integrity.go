package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/modulink/pkg/app"
)

// ErrViolationsFound makes integrity scan exit non-zero when the graph is
// inconsistent
var ErrViolationsFound = errors.New("integrity violations found")

func newIntegrityCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Check the entitlement graph",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "scan",
		Short: "Report cross-tenant edges and tenants without an admin role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				report, err := a.Engine.ScanIntegrity(ctx)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if !report.OK() {
					return fmt.Errorf("%w: %d", ErrViolationsFound, len(report.Violations))
				}
				return nil
			})
		},
	})
	return cmd
}
