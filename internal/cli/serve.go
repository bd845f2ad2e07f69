package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"offline-cart-sync/internal/config"
	"offline-cart-sync/internal/logger"

	"github.com/spf13/cobra"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync engine daemon",
		Long: `Run the sync engine. Configuration comes from the environment and an
optional .env file; see ENGINE_*, STORE_*, REMOTE_*, CONNECTIVITY_* and
SYNC_* variables.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (defaults to ENGINE_HOST:ENGINE_PORT)")

	return cmd
}

func serve(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	level := cfg.Logging.Level
	if opts.Verbose {
		level = "DEBUG"
	}
	logger.Initialize(level, cfg.Logging.Format)
	defer logger.Sync()
	log := logger.For("engine")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := newEngine(ctx, cfg, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start engine", err)
	}

	addr := opts.Addr
	if addr == "" {
		addr = fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	}

	if err := e.Run(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine stopped with error", err)
	}

	log.Infow("Engine stopped gracefully")
	return nil
}
