package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/oshokin/bundle-deployer/internal/config"
	"github.com/oshokin/bundle-deployer/internal/host"
	"github.com/oshokin/bundle-deployer/internal/layout"
	"github.com/oshokin/bundle-deployer/internal/logger"
	"github.com/oshokin/bundle-deployer/internal/metrics"
	"github.com/oshokin/bundle-deployer/internal/native"
	"github.com/oshokin/bundle-deployer/internal/repository/metadata"
	"github.com/oshokin/bundle-deployer/internal/service/deployer"
)

const metricsNamespace = "bundle_deployer"

var errUnknownLogLevel = errors.New("unknown log level")

// app holds everything a subcommand needs.
type app struct {
	cfg      *config.Config
	layout   *layout.Layout
	engine   *deployer.Engine
	registry *prometheus.Registry
}

// runWithApp wraps a subcommand so that it runs with a wired engine and
// flushes metrics when done, whatever the outcome.
func runWithApp(name string, run func(ctx context.Context, cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := logger.WithName(cmd.Context(), name)

		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}

		runErr := run(ctx, cmd, a)

		if a.cfg.MetricsFile != "" {
			if err = metrics.WriteTextfile(a.cfg.MetricsFile, a.registry); err != nil {
				logger.ErrorKV(ctx, "Unable to write metrics", "path", a.cfg.MetricsFile, "error", err)
			}
		}

		return runErr
	}
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownLogLevel, level)
	}

	logger.SetLevel(parsed)

	registry := prometheus.NewRegistry()

	recorder, err := metrics.NewProm(metricsNamespace, registry)
	if err != nil {
		return nil, err
	}

	l := layout.New(cfg.DataRoot)
	h := host.New(cfg.HostStatePath(), host.WithPublicKeyFile(cfg.PublicKeyFile))

	engine, err := deployer.New(l, metadata.NewFileStore(l), deployer.Collaborators{
		Host:       h,
		Keys:       h,
		Hasher:     native.NewDirectoryHasher(),
		Signatures: native.NewJWTSignatureDecoder(),
		Installer:  h,
		Unzipper:   native.NewZipExtractor(),
	},
		deployer.WithBundleDir(cfg.BundlePath()),
		deployer.WithDefaultInstallOptions(cfg.Install),
		deployer.WithMetrics(recorder),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize deployer: %w", err)
	}

	return &app{
		cfg:      cfg,
		layout:   l,
		engine:   engine,
		registry: registry,
	}, nil
}

// loadConfig reads the settings file. A missing default file means defaults,
// a missing file named explicitly is an error.
func loadConfig(ctx context.Context, cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err == nil {
		return cfg, nil
	}

	if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		logger.DebugKV(ctx, "Settings file not found, using defaults", "path", configPath)
		return config.Default(), nil
	}

	return nil, fmt.Errorf("load settings: %w", err)
}
