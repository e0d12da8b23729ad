package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grantcarthew/cdpclient/internal/cdp"
	"github.com/grantcarthew/cdpclient/internal/cli/format"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Stream CDP events from a target",
	Long: `Attach to a target and print events as they arrive, in wire order.

Domains named with --enable are enabled first. Streaming stops on
Ctrl-C, after --count matching events, after --wait elapses, or when
the browser closes the connection.

In --json mode each event is printed as one JSON object per line.

Examples:
  cdpctl events --enable Page --enable Network
  cdpctl events --enable Page --method Page.loadEventFired --count 1
  cdpctl events --enable Network --wait 10s --json`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	addTargetFlags(eventsCmd)
	eventsCmd.Flags().StringSlice("enable", nil, "Domains to enable before streaming (repeatable)")
	eventsCmd.Flags().String("method", "", "Only print events with this method")
	eventsCmd.Flags().Int("count", 0, "Stop after this many events (0 = unlimited)")
	eventsCmd.Flags().Duration("wait", 0, "Stop streaming after this duration (0 = until interrupted)")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	domains, _ := flags.GetStringSlice("enable")
	method, _ := flags.GetString("method")
	count, _ := flags.GetInt("count")
	wait, _ := flags.GetDuration("wait")

	if count < 0 {
		return outputError(errors.New("--count must not be negative"))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := attach(ctx, cmd, domains)
	if err != nil {
		return outputError(err)
	}
	defer conn.Close()

	streamCtx := ctx
	if wait > 0 {
		var cancel context.CancelFunc
		streamCtx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	opts := format.NewOutputOptions(JSONOutput, NoColor)
	seen := 0
	for count == 0 || seen < count {
		var evt *cdp.Event
		if method != "" {
			evt, err = conn.WaitEvent(streamCtx, method)
		} else {
			evt, err = conn.WaitMessageContext(streamCtx)
		}
		if err != nil {
			return streamEnded(err, seen, count)
		}

		seen++
		if JSONOutput {
			if err := outputEventJSON(evt); err != nil {
				return err
			}
			continue
		}
		if err := format.Event(os.Stdout, evt, opts); err != nil {
			return err
		}
	}
	return nil
}

// attach connects with the command timeout and enables each domain.
func attach(ctx context.Context, cmd *cobra.Command, domains []string) (*cdp.Connection, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	conn, err := connect(ctx, cmd)
	if err != nil {
		return nil, err
	}

	for _, domain := range domains {
		domain = strings.TrimSpace(domain)
		if domain == "" {
			continue
		}
		if _, err := conn.SendContext(ctx, domain+".enable", nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable %s: %w", domain, err)
		}
		logger.Debug().Str("domain", domain).Msg("domain enabled")
	}
	return conn, nil
}

// streamEnded maps the error that stopped the stream to the command result.
// Interruption and an elapsed --wait end the stream normally unless a
// --count was requested and not reached.
func streamEnded(err error, seen, count int) error {
	switch {
	case errors.Is(err, cdp.ErrTimeout), errors.Is(err, context.Canceled):
		if count > 0 && seen < count {
			return outputError(fmt.Errorf("received %d of %d events", seen, count))
		}
		return nil
	case errors.Is(err, cdp.ErrConnectionClosed):
		return outputError(fmt.Errorf("connection closed after %d events: %w", seen, err))
	default:
		return outputError(err)
	}
}

func outputEventJSON(evt *cdp.Event) error {
	line := map[string]any{
		"method": evt.Method,
	}
	if len(evt.Params) > 0 {
		line["params"] = evt.Params
	}
	if evt.SessionID != "" {
		line["sessionId"] = evt.SessionID
	}
	return outputJSON(os.Stdout, line)
}
