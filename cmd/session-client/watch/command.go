package watch

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/session-client/internal/business"
	"github.com/openkcm/session-client/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	cmd := cmdutils.CobraCommand(
		"watch",
		"Keep validating the session",
		"Validates the stored session token every session.watchInterval and clears it once it expires. Runs until interrupted.",
		buildInfo,
		cmdutils.RunAsService,
		business.WatchMain,
	)
	cmd.Args = cobra.NoArgs

	return cmd
}
