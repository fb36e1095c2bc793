package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/platinummonkey/modulink/pkg/app"
	"github.com/platinummonkey/modulink/pkg/cli"
	"github.com/platinummonkey/modulink/pkg/config"
	"github.com/platinummonkey/modulink/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	open := func(ctx context.Context) (*app.App, error) {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, err
		}
		// stdout carries the JSON output
		logger := observability.NewLogger(cfg.Observability.LogLevel, "text", os.Stderr)
		return app.New(ctx, cfg, logger)
	}

	if err := cli.NewRootCommand(open, cli.PostgresMigrator).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
