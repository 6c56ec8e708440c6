package status

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/session-client/internal/business"
	"github.com/openkcm/session-client/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	cmd := cmdutils.CobraCommand(
		"status",
		"Show the session state",
		"Validates the stored session token, clears it when it is malformed or expired, and prints the session state.",
		buildInfo,
		cmdutils.RunAsJob,
		business.StatusMain,
	)
	cmd.Args = cobra.NoArgs

	return cmd
}
