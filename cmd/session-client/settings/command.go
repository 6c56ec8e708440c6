package settings

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/session-client/internal/business"
	"github.com/openkcm/session-client/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"settings [push|sound|vibration|badge=true|false]...",
		"Show or change notification settings",
		"Prints the notification settings. Arguments of the form name=true|false are applied and saved first.",
		buildInfo,
		cmdutils.RunAsJob,
		business.SettingsMain,
	)
}
