package call

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/session-client/internal/business"
	"github.com/openkcm/session-client/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	req := &business.CallRequest{}
	var output string

	cmd := cmdutils.CobraCommand(
		"call METHOD PATH",
		"Send an authenticated API request",
		"Sends METHOD PATH to the portal API with the stored session token and prints the response body.",
		buildInfo,
		cmdutils.RunAsJob,
		business.CallMain(req),
	)
	cmd.Args = cobra.ExactArgs(2)
	cmd.PreRun = func(*cobra.Command, []string) {
		req.Output = business.OutputFormat(output)
	}

	flags := cmd.Flags()
	flags.StringVarP(&req.Body, "data", "d", "", "JSON request body")
	flags.StringArrayVarP(&req.Query, "query", "q", nil, "query parameter as key=value, repeatable")
	flags.StringArrayVarP(&req.Headers, "header", "H", nil, "request header as 'Name: value', repeatable")
	flags.DurationVar(&req.Timeout, "timeout", 0, "request timeout, overrides api.timeout")
	flags.StringVarP(&output, "output", "o", string(business.OutputJSON), "output format: json or yaml")

	return cmd
}
