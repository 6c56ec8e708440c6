package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/openkcm/common-sdk/pkg/utils"
	"github.com/spf13/cobra"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/cmd/session-client/call"
	"github.com/openkcm/session-client/cmd/session-client/login"
	"github.com/openkcm/session-client/cmd/session-client/logout"
	"github.com/openkcm/session-client/cmd/session-client/settings"
	"github.com/openkcm/session-client/cmd/session-client/status"
	"github.com/openkcm/session-client/cmd/session-client/upload"
	"github.com/openkcm/session-client/cmd/session-client/watch"
	"github.com/openkcm/session-client/internal/serviceerr"
)

var (
	// BuildInfo will be set by the build system
	BuildInfo = "{}"

	isVersionCmd     bool
	gracefulShutdown time.Duration
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Session Client Version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		isVersionCmd = true

		value, err := utils.ExtractFromComplexValue(BuildInfo)
		if err != nil {
			return err
		}

		slog.InfoContext(cmd.Context(), value)

		return nil
	},
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "session-client",
		Short:         "Session Client",
		Long:          "Parent portal session client: stores the bearer token, guards the session and issues authenticated API calls.",
		SilenceErrors: true,
	}

	cmd.PersistentFlags().DurationVar(&gracefulShutdown, "graceful-shutdown", 0, "graceful shutdown")

	cmd.AddCommand(
		versionCmd,
		login.Cmd(BuildInfo),
		logout.Cmd(BuildInfo),
		status.Cmd(BuildInfo),
		call.Cmd(BuildInfo),
		upload.Cmd(BuildInfo),
		settings.Cmd(BuildInfo),
		watch.Cmd(BuildInfo),
	)

	return cmd
}

func execute() error {
	ctx, cancelOnSignal := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancelOnSignal()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		slogctx.Error(ctx, "command failed", "error", err)
		_, _ = fmt.Fprintln(os.Stderr, serviceerr.Normalize(err))

		return err
	}

	if !isVersionCmd && gracefulShutdown > 0 {
		_, _ = fmt.Fprintf(os.Stderr, "Graceful shutdown in %s\n", gracefulShutdown)
		time.Sleep(gracefulShutdown)
	}

	return nil
}

func main() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}
