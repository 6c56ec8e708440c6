package upload

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/session-client/internal/business"
	"github.com/openkcm/session-client/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	req := &business.UploadRequest{}
	var output string

	cmd := cmdutils.CobraCommand(
		"upload PATH FILE",
		"Upload a file as multipart/form-data",
		"Posts FILE to PATH as multipart/form-data with the stored session token and prints the response body.",
		buildInfo,
		cmdutils.RunAsJob,
		business.UploadMain(req),
	)
	cmd.Args = cobra.ExactArgs(2)
	cmd.PreRun = func(*cobra.Command, []string) {
		req.Output = business.OutputFormat(output)
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Field, "field", "", "form field name of the file, defaults to api.uploadField")
	flags.StringVar(&req.ContentType, "content-type", "", "content type of the file, guessed from the extension when empty")
	flags.StringArrayVarP(&req.Fields, "form", "F", nil, "additional form value as key=value, repeatable")
	flags.StringVarP(&output, "output", "o", string(business.OutputJSON), "output format: json or yaml")

	return cmd
}
