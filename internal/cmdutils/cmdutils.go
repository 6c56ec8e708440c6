package cmdutils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"syscall"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/openkcm/common-sdk/pkg/health"
	"github.com/openkcm/common-sdk/pkg/logger"
	"github.com/openkcm/common-sdk/pkg/otlp"
	"github.com/openkcm/common-sdk/pkg/status"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/config"
)

const (
	healthStatusTimeout = 5 * time.Second
)

// Invocation is what a command was called with.
type Invocation struct {
	Args []string
	Out  io.Writer
}

type BusinessFunc func(context.Context, *config.Config, Invocation) error

type WrapperFunc func(context.Context, BusinessFunc, *config.Config, Invocation) error

// ConfigLoader loads and validates the configuration.
type ConfigLoader func(buildInfo string) (*config.Config, error)

func CobraCommand(
	use, short, long, buildInfo string,
	wrapperFunc WrapperFunc,
	businessFunc BusinessFunc,
) *cobra.Command {
	return cobraCommand(use, short, long, buildInfo, loadConfig, wrapperFunc, businessFunc)
}

func cobraCommand(
	use, short, long, buildInfo string,
	load ConfigLoader,
	wrapperFunc WrapperFunc,
	businessFunc BusinessFunc,
) *cobra.Command {
	return &cobra.Command{
		Use:          use,
		Short:        short,
		Long:         long,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(buildInfo)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			inv := Invocation{Args: args, Out: cmd.OutOrStdout()}
			if err := wrapperFunc(cmd.Context(), businessFunc, cfg, inv); err != nil {
				return fmt.Errorf("running %s: %w", use, err)
			}

			return nil
		},
	}
}

// RunAsService runs fn with telemetry and a status server until it returns.
func RunAsService(ctx context.Context, fn BusinessFunc, cfg *config.Config, inv Invocation) error {
	return run(ctx, true, true, fn, cfg, inv)
}

// RunAsJob runs fn once with logging only.
func RunAsJob(ctx context.Context, fn BusinessFunc, cfg *config.Config, inv Invocation) error {
	return run(ctx, false, false, fn, cfg, inv)
}

func run(ctx context.Context, withTelemetry, withStatusServer bool, fn BusinessFunc, cfg *config.Config, inv Invocation) error {
	// LoggerConfig
	err := logger.InitAsDefault(cfg.Logger, cfg.Application)
	if err != nil {
		return oops.In("main").
			Wrapf(err, "Failed to initialise the logger")
	}
	slogctx.Debug(ctx, "Starting the application", slog.Any("config", cfg))

	// OpenTelemetry
	if withTelemetry {
		err = otlp.Init(ctx, &cfg.Application, &cfg.Telemetry, &cfg.Logger)
		if err != nil {
			return oops.In("main").Wrapf(err, "Failed to load the telemetry")
		}
	}

	// Status Server
	if withStatusServer {
		go func() {
			err := startStatusServer(ctx, cfg)
			if err != nil {
				slogctx.Error(ctx, "Failure on the status server", "error", err)
				_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
			}
		}()
	}

	// Business Logic
	err = fn(ctx, cfg, inv)
	if err != nil {
		return oops.In("main").Wrapf(err, "Failed to run the command")
	}

	return nil
}

func loadConfig(buildInfo string) (*config.Config, error) {
	defaultValues := map[string]any{}
	cfg := &config.Config{}

	err := commoncfg.LoadConfig(
		cfg,
		defaultValues,
		"/etc/session-client",
		"$HOME/.session-client",
		".",
	)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	// Update Version
	err = commoncfg.UpdateConfigVersion(
		&cfg.BaseConfig,
		buildInfo,
	)
	if err != nil {
		return nil, fmt.Errorf("updating the version configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func startStatusServer(ctx context.Context, cfg *config.Config) error {
	liveness := status.WithLiveness(
		health.NewHandler(
			health.NewChecker(health.WithDisabledAutostart()),
		),
	)

	readiness := status.WithReadiness(
		health.NewHandler(
			health.NewChecker(
				health.WithDisabledAutostart(),
				health.WithTimeout(healthStatusTimeout),
				health.WithStatusListener(statusListener),
			),
		),
	)

	err := status.Start(ctx, &cfg.BaseConfig, liveness, readiness)
	if err != nil {
		return fmt.Errorf("starting status server: %w", err)
	}

	return nil
}

func statusListener(ctx context.Context, state health.State) {
	attrs := []any{"status", state.Status}
	for name, check := range state.CheckState {
		attrs = append(attrs, slog.Group(name, "status", check.Status, "error", check.Result))
	}

	slogctx.Info(ctx, "readiness status changed", attrs...)
}
