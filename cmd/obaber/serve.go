package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obaber/internal/config"
	"github.com/KilimcininKorOglu/obaber/internal/logging"
	"github.com/KilimcininKorOglu/obaber/internal/metrics"
	"github.com/KilimcininKorOglu/obaber/internal/server"
)

// shutdownTimeout bounds a graceful stop after SIGINT or SIGTERM.
const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	configFile string
	address    string
	logLevel   string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the LDAP front end",
		Long: `Start the LDAP front end with the specified configuration.

Without --config the built-in defaults are used. When a configuration file
is given it is watched, and a changed logging level is applied without a
restart.

Examples:
  obaber serve --config /etc/obaber/config.yaml
  obaber serve --address 127.0.0.1:1389 --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServeConfig(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, opts.configFile)
		},
	}

	cmd.Flags().StringVar(&opts.configFile, "config", "", "Path to configuration file")
	cmd.Flags().StringVar(&opts.address, "address", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	return cmd
}

// loadServeConfig loads the configuration, applies command-line overrides,
// and validates the result.
func loadServeConfig(opts serveOptions) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configFile != "" {
		loaded, err := config.LoadConfig(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	// command-line flags take priority over the file
	if opts.address != "" {
		cfg.Server.Address = opts.address
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		return nil, errors.Join(append([]error{errors.New("invalid configuration")}, errs...)...)
	}
	return cfg, nil
}

// serve runs the LDAP server, and the metrics endpoint when enabled, until
// ctx is done.
func serve(ctx context.Context, cfg *config.Config, configFile string) error {
	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	var m *metrics.Metrics
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		metricsServer = metrics.NewHTTPServer(cfg.Metrics.Address, cfg.Metrics.Path, reg)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err.Error())
			}
		}()
		logger.Info("metrics endpoint started",
			"address", cfg.Metrics.Address,
			"path", cfg.Metrics.Path)
	}

	srv := server.NewServer(cfg, logger, m)

	if configFile != "" {
		watcher, err := config.NewConfigWatcher(&config.WatcherConfig{
			FilePath: configFile,
			Logger:   logger,
			OnChange: func(oldCfg, newCfg *config.Config) {
				applyReload(srv, logger, oldCfg, newCfg)
			},
		})
		if err != nil {
			logger.Warn("failed to create config watcher", "error", err.Error())
		} else if err := watcher.Start(); err != nil {
			logger.Warn("failed to start config watcher", "error", err.Error())
		} else {
			logger.Info("config file watcher started", "file", configFile)
			defer watcher.Stop()
		}
	}

	err := srv.ListenAndServe(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if stopErr := metricsServer.Shutdown(shutdownCtx); stopErr != nil {
			logger.Warn("metrics server shutdown", "error", stopErr.Error())
		}
	}
	return err
}

// applyReload applies the settings that can change while serving. The
// logging level is the only one; other changes are reported and wait for a
// restart.
func applyReload(srv *server.Server, logger logging.Logger, oldCfg, newCfg *config.Config) {
	if oldCfg.Logging.Level != newCfg.Logging.Level {
		srv.SetLogLevel(logging.ParseLevel(newCfg.Logging.Level))
		logger.Info("log level changed", "old", oldCfg.Logging.Level, "new", newCfg.Logging.Level)
	}

	if oldCfg.Server != newCfg.Server || oldCfg.Codec != newCfg.Codec ||
		oldCfg.Directory != newCfg.Directory || oldCfg.Metrics != newCfg.Metrics ||
		oldCfg.Logging.Format != newCfg.Logging.Format || oldCfg.Logging.Output != newCfg.Logging.Output {
		logger.Warn("config changes other than the log level take effect after a restart")
	}
}
