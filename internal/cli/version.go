package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/grantcarthew/cdpclient/internal/cli/format"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show browser and protocol version",
	Long: `Show the browser's /json/version information: product, protocol
version, user agent and the browser-level websocket URL.`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	info, err := newClient().Version(ctx)
	if err != nil {
		return outputError(err)
	}

	if JSONOutput {
		return outputSuccess(info)
	}
	return format.Version(os.Stdout, info)
}
