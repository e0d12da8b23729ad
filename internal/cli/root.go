package cli

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/grantcarthew/cdpclient/internal/cdp"
	"github.com/grantcarthew/cdpclient/internal/cli/format"
	"github.com/grantcarthew/cdpclient/internal/config"
	"github.com/grantcarthew/cdpclient/internal/logging"
)

// Version is set at build time.
var Version = "dev"

// Debug enables verbose debug output.
var Debug bool

// JSONOutput enables JSON output format (default is text).
var JSONOutput bool

// NoColor disables color output.
var NoColor bool

var (
	configPath  string
	hostFlag    string
	portFlag    int
	timeoutFlag time.Duration
)

// cfg and logger are resolved once per invocation by loadSettings.
var (
	cfg    = config.Default()
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "cdpctl",
	Short: "Chrome DevTools Protocol client",
	Long: `cdpctl talks to a browser started with --remote-debugging-port.

It lists debuggable targets, sends raw CDP commands and streams events.
Settings come from defaults, then the config file, then flags.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default "+config.DefaultPath()+")")
	flags.StringVar(&hostFlag, "host", "", "Browser debugging host")
	flags.IntVar(&portFlag, "port", 0, "Browser debugging port")
	flags.DurationVar(&timeoutFlag, "timeout", 0, "Command timeout")
	flags.BoolVar(&Debug, "debug", false, "Enable verbose debug output")
	flags.BoolVar(&JSONOutput, "json", false, "Output in JSON format (default is text)")
	flags.BoolVar(&NoColor, "no-color", false, "Disable color output")
	rootCmd.SetVersionTemplate(`cdpctl version {{.Version}}
`)
}

// loadSettings layers the config file and flags over the defaults and
// builds the logger.
func loadSettings(cmd *cobra.Command, args []string) error {
	path, optional := configPath, false
	if path == "" {
		path, optional = config.DefaultPath(), true
	}

	loaded, err := config.Load(path, optional)
	if err != nil {
		return outputError(err)
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		loaded.Host = hostFlag
	}
	if flags.Changed("port") {
		loaded.Port = portFlag
	}
	if flags.Changed("timeout") {
		loaded.Timeout = timeoutFlag
	}
	if Debug {
		loaded.LogLevel = "debug"
	}
	if err := loaded.Validate(); err != nil {
		return outputError(err)
	}

	cfg = loaded
	logger = logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat != "json")
	logger.Debug().Str("host", cfg.Host).Int("port", cfg.Port).Dur("timeout", cfg.Timeout).Msg("settings loaded")
	return nil
}

// newClient returns a CDP client for the configured browser endpoint.
func newClient(opts ...cdp.Option) *cdp.Client {
	opts = append([]cdp.Option{
		cdp.WithLogger(logger),
		cdp.WithTimeout(cfg.Timeout),
		cdp.WithReadLimit(cfg.ReadLimit),
	}, opts...)
	return cdp.NewCustomClient(cfg.Host, cfg.Port, opts...)
}

// Exit codes returned by cdpctl.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2 // the command line was rejected
	ExitProtocol = 3 // the browser answered with a protocol error
	ExitClosed   = 4 // the connection closed under a command
)

// Execute runs cdpctl with the process arguments and returns the exit code.
func Execute() int {
	return run(os.Args[1:])
}

// run executes one command line. Every failure is reported on stderr
// exactly once. Supports command abbreviation via unique prefix matching.
func run(args []string) int {
	if len(args) > 0 {
		if expanded := tryExpandCommand(args[0]); expanded != "" {
			args = append([]string{expanded}, args[1:]...)
		}
	}
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	if err != nil && !isPrintedError(err) {
		// cobra rejected the arguments before a command could run
		_ = outputError(errors.New(usageMessage(err)))
		return ExitUsage
	}
	return ExitCode(err)
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	var cdpErr *cdp.Error
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &cdpErr):
		return ExitProtocol
	case errors.Is(err, cdp.ErrConnectionClosed):
		return ExitClosed
	default:
		return ExitFailure
	}
}

var flagGroupRe = regexp.MustCompile(`\[([^\]]+)\] were all set`)

// usageMessage shortens cobra's flag group errors to the flags that clashed.
func usageMessage(err error) string {
	m := flagGroupRe.FindStringSubmatch(err.Error())
	if m == nil {
		return err.Error()
	}
	names := strings.Fields(m[1])
	for i, name := range names {
		names[i] = "--" + name
	}
	return strings.Join(names, " and ") + " cannot be used together"
}

// tryExpandCommand attempts to expand a command abbreviation.
// Returns the expanded command if exactly one match is found, empty string otherwise.
func tryExpandCommand(prefix string) string {
	var matches []string
	for _, cmd := range rootCmd.Commands() {
		name := cmd.Name()
		if name == prefix {
			// Exact match, no expansion needed
			return ""
		}
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}

	// Return expanded command only if exactly one match
	if len(matches) == 1 {
		return matches[0]
	}
	return ""
}

// printedError marks an error already reported to the user.
type printedError struct {
	err error
}

func (e *printedError) Error() string { return e.err.Error() }

func (e *printedError) Unwrap() error { return e.err }

// isPrintedError reports whether err was already written to stderr.
func isPrintedError(err error) bool {
	var pe *printedError
	return errors.As(err, &pe)
}

// isStdoutTTY returns true if stdout is a terminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// outputJSON writes a JSON response to the given writer.
// Pretty prints if stdout is a TTY, compact otherwise.
func outputJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	if isStdoutTTY() {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}

// outputSuccess writes a successful response to stdout in JSON mode.
func outputSuccess(data any) error {
	resp := map[string]any{
		"ok": true,
	}
	if data != nil {
		resp["data"] = data
	}
	return outputJSON(os.Stdout, resp)
}

// outputError writes err to stderr and returns it marked as printed.
// Uses text format by default, JSON if --json flag is set.
func outputError(err error) error {
	if JSONOutput {
		resp := map[string]any{
			"ok":    false,
			"error": err.Error(),
		}
		_ = outputJSON(os.Stderr, resp)
	} else {
		_ = format.ActionError(os.Stderr, err.Error(), format.OutputOptions{UseColor: shouldUseColor()})
	}
	return &printedError{err: err}
}

// shouldUseColor determines if color output should be used based on flags and environment.
func shouldUseColor() bool {
	if JSONOutput {
		return false
	}
	if NoColor {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
