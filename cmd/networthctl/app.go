package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"networth/internal/backend"
	"networth/internal/cli"
	"networth/internal/config"
	"networth/internal/core"
	"networth/internal/services"
)

var logLevel = flag.String("log-level", "", "Log level (debug, info, warn, error). Defaults to warn.")

// openService opens the configured store. The returned close function
// must be called when the command is done.
func openService(ctx context.Context) (*services.NetWorthService, *config.Config, func(), error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if *logLevel != "" {
		cli.SetLogLevel(*logLevel)
	}
	if cfg.DataBackend == string(backend.MemoryBackend) {
		fmt.Fprintln(os.Stderr, "warning: DATA_BACKEND=memory, changes are lost when the command exits")
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	res, err := backend.NewFactory(slog.Default()).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() {
		if err := res.Cleanup(); err != nil {
			slog.Error("Backend cleanup error", "error", err)
		}
	}
	return res.Service, cfg, closeFn, nil
}

// printEntry writes one entry as a labelled block.
func printEntry(e core.Entry) {
	fmt.Printf("Date:      %s\n", e.Key())
	fmt.Printf("Assets:    %s\n", e.Assets.Display())
	fmt.Printf("Debts:     %s\n", e.Debts.Display())
	fmt.Printf("Net worth: %s\n", e.NetWorth().Display())
	if e.Notes != "" {
		fmt.Printf("Notes:     %s\n", e.Notes)
	}
}
