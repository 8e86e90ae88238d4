package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"hindsight-hq/hindsight/pkg/cli"
	"hindsight-hq/hindsight/pkg/config"
	"hindsight-hq/hindsight/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the telemetry server",
	Long: `Start the hindsight telemetry server.

The server exposes the metric registry in the Prometheus text format and
serves liveness and readiness probes. When token sampling is enabled, raw
token counts are stored for "hindsight tokens report" and pruned on the
configured retention schedule.

When started with --config, the file is watched and telemetry.logging.level
changes apply without a restart. SIGHUP forces a reload.

Examples:
  # Start with defaults (127.0.0.1:9464)
  hindsight run

  # Start with custom config
  hindsight run --config /etc/hindsight/config.yaml

  # Override listen address
  hindsight run --listen 0.0.0.0:9464

  # Validate config without starting server
  hindsight run --config config.yaml --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" || runFlags.logLevel != "" {
		if runFlags.listenAddress != "" {
			cfg.Server.ListenAddress = runFlags.listenAddress
		}
		if runFlags.logLevel != "" {
			cfg.Telemetry.Logging.Level = runFlags.logLevel
		}
		if err := config.Validate(cfg); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger.Logger)

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	svc, err := newService(ctx, cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	if cfgFile != "" {
		stopWatch, err := watchConfig(ctx, cfgFile, cfg, svc, logger)
		if err != nil {
			logger.Warn("config reload disabled", "error", err)
		} else {
			defer stopWatch()
		}
	}

	printBanner(out, cfg)

	runErr := svc.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := svc.Close(closeCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		return cli.NewCommandError("run", runErr)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

func newLogger(cfg *config.Config, w io.Writer) (*logging.Logger, error) {
	return logging.New(logging.Config{
		Level:      cfg.Telemetry.Logging.Level,
		Format:     cfg.Telemetry.Logging.Format,
		AddSource:  cfg.Telemetry.Logging.AddSource,
		RedactKeys: cfg.Telemetry.Logging.RedactKeys,
		Writer:     w,
	})
}

// watchConfig reloads the config file on change and on SIGHUP until ctx
// is cancelled.
func watchConfig(ctx context.Context, path string, cfg *config.Config, svc *service, logger *logging.Logger) (func(), error) {
	watcher, err := config.NewWatcher(path, cfg, 0, logger.Logger)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := watcher.Watch(ctx, svc.ApplyConfig); err != nil {
			logger.Error("config watcher stopped", "error", err)
		}
	}()

	hup, stopHUP := cli.ReloadSignals()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("received SIGHUP, reloading configuration")
				watcher.Reload(svc.ApplyConfig)
			}
		}
	}()

	return func() {
		stopHUP()
		if err := watcher.Stop(); err != nil {
			logger.Warn("failed to stop config watcher", "error", err)
		}
	}, nil
}

func printBanner(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Hindsight v%s\n", Version)
	if cfgFile != "" {
		fmt.Fprintf(w, "✓ Configuration loaded from %s\n", cfgFile)
	} else {
		fmt.Fprintln(w, "✓ Using default configuration")
	}

	addr := cfg.Server.ListenAddress
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(w, "✓ Metrics endpoint: http://%s%s\n", addr, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintf(w, "✓ Health endpoint: http://%s%s\n", addr, cfg.Telemetry.Health.LivenessPath)
	fmt.Fprintf(w, "✓ Readiness endpoint: http://%s%s\n", addr, cfg.Telemetry.Health.ReadinessPath)
	if cfg.Telemetry.Tracing.Enabled {
		fmt.Fprintf(w, "✓ Tracing to %s (%s sampler)\n", cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.Sampler)
	}
	if ts := cfg.Telemetry.TokenStats; ts.Enabled {
		fmt.Fprintf(w, "✓ Token sampling enabled (%s backend, rate %.2f)\n", ts.Backend, ts.SampleRate)
	}
	fmt.Fprintln(w, "\nPress Ctrl+C to stop")
}
