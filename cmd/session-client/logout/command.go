package logout

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/session-client/internal/business"
	"github.com/openkcm/session-client/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	cmd := cmdutils.CobraCommand(
		"logout",
		"Clear the session token",
		"Removes the stored session token. Logging out without a session succeeds.",
		buildInfo,
		cmdutils.RunAsJob,
		business.LogoutMain,
	)
	cmd.Args = cobra.NoArgs

	return cmd
}
