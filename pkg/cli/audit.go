package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/modulink/pkg/app"
	"github.com/platinummonkey/modulink/pkg/audit"
)

const (
	eventTypeFlag = "type"
	sinceFlag     = "since"
	limitFlag     = "limit"
)

func newAuditCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}
	cmd.AddCommand(newAuditListCommand(open))
	return cmd
}

func newAuditListCommand(open Opener) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		eventTypeFlag: &cobraflags.StringFlag{
			Name:  eventTypeFlag,
			Value: "",
			Usage: "Only events of this type, e.g. store.module_purchase",
		},
		sinceFlag: &cobraflags.StringFlag{
			Name:  sinceFlag,
			Value: "",
			Usage: "Only events newer than this duration, e.g. 24h",
		},
		limitFlag: &cobraflags.StringFlag{
			Name:  limitFlag,
			Value: "50",
			Usage: "Maximum number of events (at most 1000)",
		},
	}

	cmd := &cobra.Command{
		Use:   "list <tenant-id>",
		Short: "List a tenant's audit events, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseID("tenant id", args[0])
			if err != nil {
				return err
			}
			filter := audit.SearchFilter{
				TenantID:  &tenantID,
				EventType: audit.EventType(flags[eventTypeFlag].GetString()),
			}
			if s := flags[sinceFlag].GetString(); s != "" {
				d, err := time.ParseDuration(s)
				if err != nil || d <= 0 {
					return fmt.Errorf("invalid --since %q", s)
				}
				filter.Since = time.Now().Add(-d)
			}
			limit, err := strconv.Atoi(flags[limitFlag].GetString())
			if err != nil || limit <= 0 {
				return fmt.Errorf("invalid --limit %q", flags[limitFlag].GetString())
			}
			filter.Limit = limit

			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				events, err := audit.NewDBLogger(a.DB).Search(ctx, filter)
				if err != nil {
					return err
				}
				if events == nil {
					events = []*audit.Event{}
				}
				return printJSON(cmd.OutOrStdout(), events)
			})
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}
