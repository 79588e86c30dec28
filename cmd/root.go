package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/breakerguard/config"
	"github.com/angeloszaimis/breakerguard/internal/circuitbreaker"
	"github.com/angeloszaimis/breakerguard/internal/handler"
	"github.com/angeloszaimis/breakerguard/internal/httpserver"
	"github.com/angeloszaimis/breakerguard/internal/upstream"
	"github.com/angeloszaimis/breakerguard/pkg/logger"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "breakerguard",
		Short:         "HTTP guard that protects callers from failing upstreams with circuit breakers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the config file (default: ./config/config.yaml or ./config.yaml)")

	root.AddCommand(
		newServeCmd(&configPath),
		newValidateCmd(&configPath),
	)

	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the guard server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				slog.Error("failed to load config", slog.Any("err", err))
				return err
			}

			log := logger.New(cfg.Logging.Level, cfg.Logging.AddSource, cfg.Server.Environment)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := run(ctx, cfg, log); err != nil {
				log.Error("Guard stopped with error", slog.Any("err", err))
				return err
			}

			log.Info("Guard stopped")
			return nil
		},
	}
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and print the resolved upstreams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config is valid\n")
			fmt.Fprintf(out, "  Address:   %s\n", cfg.Server.Address)
			fmt.Fprintf(out, "  Upstreams: %d\n", len(cfg.Upstreams))
			for _, u := range cfg.Upstreams {
				settings := cfg.BreakerSettings(u)
				fmt.Fprintf(out, "    %s -> %s (threshold=%d, retry=%s, timeout=%s)\n",
					u.Name, u.URL, settings.FailureThreshold, settings.RetryTimePeriod, u.UpstreamTimeout())
			}

			return nil
		},
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	registry := newRegistry(cfg, log)

	upstreams, err := initializeUpstreams(cfg, registry, log)
	if err != nil {
		return fmt.Errorf("initialize upstreams: %w", err)
	}

	guard := handler.NewGuardHandler(log, upstreams)

	read, write, idle := cfg.Server.Timeouts()
	srv, err := httpserver.New(cfg.Server.Address, setupRouter(guard, registry, log), httpserver.Timeouts{
		Read:  read,
		Write: write,
		Idle:  idle,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	log.Info("Starting guard",
		slog.String("address", srv.Addr()),
		slog.Int("upstreams", len(upstreams)))

	return srv.Run(ctx)
}

// newRegistry creates the breaker registry owned by this process, with the
// per-upstream settings from cfg and transitions logged through log.
func newRegistry(cfg *config.Config, log *slog.Logger) *circuitbreaker.Registry {
	defaults := cfg.BreakerSettings(config.UpstreamConfig{})
	registry := circuitbreaker.NewRegistry(defaults, circuitbreaker.WithStateChangeHook(logTransition(log)))

	for _, u := range cfg.Upstreams {
		registry.Configure(u.Name, cfg.BreakerSettings(u))
	}

	return registry
}

func initializeUpstreams(cfg *config.Config, registry *circuitbreaker.Registry, log *slog.Logger) ([]*upstream.Upstream, error) {
	var upstreams []*upstream.Upstream

	for _, u := range cfg.Upstreams {
		parsed, err := url.Parse(u.URL)
		if err != nil {
			log.Error("Failed to parse URL",
				slog.String("upstream", u.Name),
				slog.String("url", u.URL),
				slog.String("error", err.Error()))
			continue
		}

		upstreams = append(upstreams, upstream.New(u.Name, parsed, u.UpstreamTimeout(), registry.Breaker(u.Name)))
	}

	if len(upstreams) == 0 {
		return nil, os.ErrInvalid
	}

	return upstreams, nil
}

func logTransition(log *slog.Logger) circuitbreaker.StateChangeHook {
	return func(name string, from, to circuitbreaker.Status) {
		attrs := []any{
			slog.String("upstream", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		}

		if to == circuitbreaker.StatusOpen {
			log.Warn("Circuit opened", attrs...)
			return
		}
		log.Info("Circuit state changed", attrs...)
	}
}
