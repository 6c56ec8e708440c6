package login

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/session-client/internal/business"
	"github.com/openkcm/session-client/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	cmd := cmdutils.CobraCommand(
		"login TOKEN",
		"Store a session token",
		"Checks the shape and expiry of TOKEN and stores it sealed in the keystore. Use - to read the token from stdin.",
		buildInfo,
		cmdutils.RunAsJob,
		business.LoginMain,
	)
	cmd.Args = cobra.ExactArgs(1)

	return cmd
}
