package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"

	"github.com/grantcarthew/cdpclient/internal/cdp"
	"github.com/grantcarthew/cdpclient/internal/cli/format"
)

var sendCmd = &cobra.Command{
	Use:   "send <method> [params]",
	Short: "Send one CDP command and print its result",
	Long: `Send a CDP command to a target and print the result object.

Params are a JSON object. Comments and trailing commas are accepted.
Use "-" to read params from stdin.

Examples:
  cdpctl send DOM.enable
  cdpctl send Network.getCookies '{"urls": ["https://example.com"]}'
  cdpctl send Page.navigate '{"url": "https://example.com"}' --tab 1
  cdpctl send Page.reload --page
  cdpctl send Target.getTargets --ws ws://localhost:9222/devtools/browser/ID
  cat params.jsonc | cdpctl send Runtime.evaluate -`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

func init() {
	addTargetFlags(sendCmd)
	sendCmd.Flags().String("session", "", "Session ID for flattened target sessions")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	method := args[0]

	var params json.RawMessage
	if len(args) > 1 {
		p, err := readParams(cmd.InOrStdin(), args[1])
		if err != nil {
			return outputError(err)
		}
		params = p
	}
	sessionID, _ := cmd.Flags().GetString("session")

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	conn, err := connect(ctx, cmd)
	if err != nil {
		return outputError(err)
	}
	defer conn.Close()

	pending, err := conn.SendSessionAsync(ctx, sessionID, method, params)
	if err != nil {
		return outputError(err)
	}
	logger.Debug().Uint64("id", uint64(pending.ID())).Str("method", method).Msg("sent")

	result, err := conn.AwaitResult(ctx, pending)
	if err != nil {
		var cdpErr *cdp.Error
		if errors.As(err, &cdpErr) {
			return outputProtocolError(cdpErr)
		}
		return outputError(err)
	}

	if JSONOutput {
		return outputSuccess(result)
	}
	opts := format.NewOutputOptions(JSONOutput, NoColor)
	return format.Result(os.Stdout, result, opts)
}

// readParams resolves the params argument to a JSON object.
func readParams(stdin io.Reader, arg string) (json.RawMessage, error) {
	data := []byte(arg)
	if arg == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read params: %w", err)
		}
		data = b
	}

	data = jsonc.ToJSON(data)
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("params must be a JSON object: %w", err)
	}
	return json.RawMessage(data), nil
}

// outputProtocolError reports a command the browser rejected.
func outputProtocolError(e *cdp.Error) error {
	if JSONOutput {
		resp := map[string]any{
			"ok":    false,
			"error": e.Message,
			"code":  e.Code,
		}
		if detail := e.Detail(); detail != "" {
			resp["data"] = e.Data
		}
		_ = outputJSON(os.Stderr, resp)
	} else {
		_ = format.ProtocolError(os.Stderr, e, format.OutputOptions{UseColor: shouldUseColor()})
	}
	return &printedError{err: e}
}
