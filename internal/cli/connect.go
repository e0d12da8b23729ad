package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grantcarthew/cdpclient/internal/cdp"
)

// addTargetFlags registers the flags that choose which target to attach to.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().Int("tab", 0, "Target index from 'cdpctl targets'")
	cmd.Flags().Bool("page", false, "First target of type page")
	cmd.Flags().String("target", "", "Target ID")
	cmd.Flags().String("ws", "", "WebSocket debugger URL")
	cmd.Flags().StringArray("header", nil, "Extra WebSocket handshake header as 'Name: value' (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("tab", "page", "target", "ws")
}

// parseHeaders turns 'Name: value' flag values into a header set.
func parseHeaders(values []string) (http.Header, error) {
	header := http.Header{}
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want 'Name: value'", v)
		}
		header.Add(name, strings.TrimSpace(value))
	}
	return header, nil
}

// connect opens a connection to the target selected by the command's flags.
// Without flags it attaches to the first target.
func connect(ctx context.Context, cmd *cobra.Command) (*cdp.Connection, error) {
	flags := cmd.Flags()
	tab, _ := flags.GetInt("tab")
	page, _ := flags.GetBool("page")
	targetID, _ := flags.GetString("target")
	wsURL, _ := flags.GetString("ws")
	headers, _ := flags.GetStringArray("header")

	if tab < 0 {
		return nil, errors.New("--tab must not be negative")
	}

	var opts []cdp.Option
	if len(headers) > 0 {
		header, err := parseHeaders(headers)
		if err != nil {
			return nil, err
		}
		opts = append(opts, cdp.WithHeader(header))
	}

	client := newClient(opts...)
	switch {
	case wsURL != "":
		logger.Debug().Str("url", wsURL).Msg("connecting")
		return client.ConnectURL(ctx, wsURL)
	case targetID != "":
		logger.Debug().Str("target", targetID).Msg("connecting")
		return client.ConnectToTarget(ctx, targetID)
	case page:
		logger.Debug().Msg("connecting to first page")
		return client.ConnectToPage(ctx)
	default:
		logger.Debug().Int("tab", tab).Msg("connecting")
		return client.ConnectToTab(ctx, tab)
	}
}
