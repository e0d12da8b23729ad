package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/grantcarthew/cdpclient/internal/cli/format"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List debuggable targets",
	Long: `List the targets the browser exposes at /json.

The index shown in brackets is the value accepted by --tab.

Examples:
  cdpctl targets              # Text listing
  cdpctl targets --yaml       # YAML document
  cdpctl targets --json       # {"ok":true,"data":[...]}`,
	Args: cobra.NoArgs,
	RunE: runTargets,
}

func init() {
	targetsCmd.Flags().Bool("yaml", false, "Output as YAML")
	rootCmd.AddCommand(targetsCmd)
}

func runTargets(cmd *cobra.Command, args []string) error {
	asYAML, _ := cmd.Flags().GetBool("yaml")

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	targets, err := newClient().Targets(ctx)
	if err != nil {
		return outputError(err)
	}

	switch {
	case JSONOutput:
		return outputSuccess(targets)
	case asYAML:
		return format.YAML(os.Stdout, targets)
	default:
		return format.Targets(os.Stdout, targets, format.NewOutputOptions(JSONOutput, NoColor))
	}
}
