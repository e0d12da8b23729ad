package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/grantcarthew/cdpclient/internal/browser"
	"github.com/grantcarthew/cdpclient/internal/cdp"
)

// Color helper functions that respect color.NoColor flag
func colorFprint(w io.Writer, c color.Attribute, s string) {
	color.New(c).Fprint(w, s)
}

func colorFprintf(w io.Writer, c color.Attribute, format string, args ...interface{}) {
	color.New(c).Fprintf(w, format, args...)
}

// OutputOptions controls text formatting behavior.
type OutputOptions struct {
	UseColor bool // Enable ANSI color codes
	Indent   bool // Pretty-print JSON payloads
}

// NewOutputOptions returns output options based on flags and environment.
// Priority: jsonOutput > noColorFlag > NO_COLOR env > TTY detection.
func NewOutputOptions(jsonOutput bool, noColorFlag bool) OutputOptions {
	tty := term.IsTerminal(int(os.Stdout.Fd()))

	// JSON output never has colors
	if jsonOutput {
		return OutputOptions{UseColor: false, Indent: tty}
	}

	// --no-color flag disables colors
	if noColorFlag {
		return OutputOptions{UseColor: false, Indent: tty}
	}

	// NO_COLOR environment variable disables colors
	if os.Getenv("NO_COLOR") != "" {
		return OutputOptions{UseColor: false, Indent: tty}
	}

	return OutputOptions{UseColor: tty, Indent: tty}
}

// ActionError outputs "Error: <message>" for failed commands.
func ActionError(w io.Writer, msg string, opts OutputOptions) error {
	if opts.UseColor {
		colorFprint(w, color.FgRed, "Error:")
		fmt.Fprintf(w, " %s\n", msg)
	} else {
		fmt.Fprintf(w, "Error: %s\n", msg)
	}
	return nil
}

// ProtocolError outputs a browser-reported command failure.
// Format: "cdp error <code>: <message>"
func ProtocolError(w io.Writer, e *cdp.Error, opts OutputOptions) error {
	if opts.UseColor {
		colorFprintf(w, color.FgRed, "cdp error %d", e.Code)
	} else {
		fmt.Fprintf(w, "cdp error %d", e.Code)
	}
	fmt.Fprintf(w, ": %s", e.Message)
	if detail := e.Detail(); detail != "" {
		fmt.Fprintf(w, " (%s)", detail)
	}
	_, err := fmt.Fprintln(w)
	return err
}

// Targets outputs the target list in text format, one line per target
// prefixed with the index accepted by --tab.
func Targets(w io.Writer, targets []browser.Target, opts OutputOptions) error {
	for i, target := range targets {
		// Truncate title to 40 chars
		title := strings.TrimSpace(target.Title)
		if len(title) > 40 {
			title = title[:37] + "..."
		}

		if opts.UseColor {
			colorFprintf(w, color.FgCyan, "[%d]", i)
			fmt.Fprintf(w, " %-15s %s - %s [", target.Type, target.URL, title)
			colorFprint(w, color.FgCyan, target.ID)
			fmt.Fprintln(w, "]")
		} else {
			fmt.Fprintf(w, "[%d] %-15s %s - %s [%s]\n", i, target.Type, target.URL, title, target.ID)
		}
	}
	return nil
}

// Version outputs browser version information in text format.
func Version(w io.Writer, info *browser.VersionInfo) error {
	rows := []struct{ label, value string }{
		{"Browser", info.Browser},
		{"Protocol", info.ProtocolVer},
		{"V8", info.V8Version},
		{"WebKit", info.WebKitVersion},
		{"User-Agent", info.UserAgent},
		{"WebSocket", info.WebSocketURL},
	}
	for _, row := range rows {
		if row.value == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%-11s %s\n", row.label+":", row.value); err != nil {
			return err
		}
	}
	return nil
}

// Event outputs one CDP event: the method name followed by its params.
func Event(w io.Writer, evt *cdp.Event, opts OutputOptions) error {
	if opts.UseColor {
		colorFprint(w, color.FgYellow, evt.Method)
	} else {
		fmt.Fprint(w, evt.Method)
	}
	if evt.SessionID != "" {
		fmt.Fprintf(w, " [%s]", evt.SessionID)
	}
	if len(evt.Params) > 0 && string(evt.Params) != "null" {
		fmt.Fprint(w, " ")
		return Result(w, evt.Params, OutputOptions{})
	}
	_, err := fmt.Fprintln(w)
	return err
}

// Result outputs a raw JSON payload, indented when opts.Indent is set.
func Result(w io.Writer, raw json.RawMessage, opts OutputOptions) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	var buf bytes.Buffer
	var err error
	if opts.Indent {
		err = json.Indent(&buf, raw, "", "  ")
	} else {
		err = json.Compact(&buf, raw)
	}
	if err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}

// YAML outputs v as a YAML document.
func YAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
