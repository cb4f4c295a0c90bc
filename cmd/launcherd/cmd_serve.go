package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/config"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/logging"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/server"
)

type cmdServe struct {
	global *cmdGlobal

	flagCatalog string
	flagDev     bool
}

func (c *cmdServe) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "serve"
	cmd.Short = "Run the daemon"
	cmd.Long = "Run the lifecycle daemon. SIGINT or SIGTERM closes every running application before exit."
	cmd.Args = cobra.NoArgs
	cmd.Flags().StringVar(&c.flagCatalog, "catalog", "", "Catalog file or directory (default from LAUNCHER_CATALOG)")
	cmd.Flags().BoolVar(&c.flagDev, "dev", false, "Development logging")
	cmd.RunE = c.run
	return cmd
}

func (c *cmdServe) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.global.flagAddr != "" {
		cfg.Server.Addr = c.global.flagAddr
	}
	if c.flagCatalog != "" {
		cfg.Catalog.Path = c.flagCatalog
	}
	if c.flagDev {
		cfg.Logging.Development = true
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Error("Failed to create server", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
