package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
)

// DefaultHost is the default CDP debugging host.
const DefaultHost = "localhost"

// DefaultPort is the default CDP debugging port.
const DefaultPort = 9222

// ErrDiscovery is returned when the target list or version info cannot be
// fetched or parsed. Discovery is never retried internally.
var ErrDiscovery = errors.New("target discovery failed")

// ErrIndexOutOfRange is returned when a target index does not exist.
var ErrIndexOutOfRange = errors.New("target index out of range")

// ErrNoPageTarget is returned when no page target is available.
var ErrNoPageTarget = errors.New("no page target found")

// Target represents a CDP target (page, worker, etc).
type Target struct {
	ID           string `json:"id" yaml:"id"`
	Type         string `json:"type" yaml:"type"`
	Title        string `json:"title" yaml:"title"`
	URL          string `json:"url" yaml:"url"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	WebSocketURL string `json:"webSocketDebuggerUrl" yaml:"webSocketDebuggerUrl"`
}

// VersionInfo contains browser version information from /json/version.
type VersionInfo struct {
	Browser       string `json:"Browser" yaml:"browser"`
	ProtocolVer   string `json:"Protocol-Version" yaml:"protocolVersion"`
	UserAgent     string `json:"User-Agent" yaml:"userAgent"`
	V8Version     string `json:"V8-Version" yaml:"v8Version"`
	WebKitVersion string `json:"WebKit-Version" yaml:"webkitVersion"`
	WebSocketURL  string `json:"webSocketDebuggerUrl" yaml:"webSocketDebuggerUrl"`
}

// endpoint builds the discovery URL for a path such as /json.
func endpoint(host string, port int, path string) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + path
}

// PageURL returns the debugger websocket URL of a page target by id, for
// connecting without listing targets first.
func PageURL(host string, port int, targetID string) string {
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/devtools/page/" + targetID
}

// getJSON performs a GET against the discovery endpoint and decodes the body
// into v. All failures match ErrDiscovery.
func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ErrDiscovery, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status: %d", ErrDiscovery, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrDiscovery, err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: parse response: %w", ErrDiscovery, err)
	}
	return nil
}

// FetchTargets retrieves the list of available targets from the CDP endpoint,
// in the order the browser reports them.
// Uses http.DefaultClient which has no timeout; callers must provide a context
// with timeout.
func FetchTargets(ctx context.Context, host string, port int) ([]Target, error) {
	return fetchTargets(ctx, nil, host, port)
}

func fetchTargets(ctx context.Context, client *http.Client, host string, port int) ([]Target, error) {
	var targets []Target
	if err := getJSON(ctx, client, endpoint(host, port, "/json"), &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// FetchVersion retrieves browser version info from the CDP endpoint.
// Uses http.DefaultClient which has no timeout; callers must provide a context
// with timeout.
func FetchVersion(ctx context.Context, host string, port int) (*VersionInfo, error) {
	return fetchVersion(ctx, nil, host, port)
}

func fetchVersion(ctx context.Context, client *http.Client, host string, port int) (*VersionInfo, error) {
	var info VersionInfo
	if err := getJSON(ctx, client, endpoint(host, port, "/json/version"), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SelectTarget returns the n-th target.
func SelectTarget(targets []Target, n int) (*Target, error) {
	if n < 0 || n >= len(targets) {
		return nil, fmt.Errorf("%w: index %d, %d targets available", ErrIndexOutOfRange, n, len(targets))
	}
	return &targets[n], nil
}

// FindPageTarget returns the first page-type target from the list.
func FindPageTarget(targets []Target) *Target {
	for i := range targets {
		if targets[i].Type == "page" {
			return &targets[i]
		}
	}
	return nil
}
