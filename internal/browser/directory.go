package browser

import (
	"context"
	"fmt"
	"net/http"
)

// Directory lists the debuggable targets of one browser instance.
type Directory struct {
	host   string
	port   int
	client *http.Client
}

// NewDirectory returns a Directory for the browser at host:port.
// A nil client uses http.DefaultClient.
func NewDirectory(host string, port int, client *http.Client) *Directory {
	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}
	return &Directory{host: host, port: port, client: client}
}

// Host returns the CDP debugging host.
func (d *Directory) Host() string {
	return d.host
}

// Port returns the CDP debugging port.
func (d *Directory) Port() int {
	return d.port
}

// Targets fetches the list of available CDP targets.
func (d *Directory) Targets(ctx context.Context) ([]Target, error) {
	return fetchTargets(ctx, d.client, d.host, d.port)
}

// Target fetches the target list and returns the n-th entry.
func (d *Directory) Target(ctx context.Context, n int) (*Target, error) {
	targets, err := d.Targets(ctx)
	if err != nil {
		return nil, err
	}
	return SelectTarget(targets, n)
}

// PageTarget returns the first page-type target.
func (d *Directory) PageTarget(ctx context.Context) (*Target, error) {
	targets, err := d.Targets(ctx)
	if err != nil {
		return nil, err
	}

	target := FindPageTarget(targets)
	if target == nil {
		return nil, ErrNoPageTarget
	}

	return target, nil
}

// Version fetches the browser version information.
func (d *Directory) Version(ctx context.Context) (*VersionInfo, error) {
	return fetchVersion(ctx, d.client, d.host, d.port)
}

// PageURL returns the debugger URL for a page target id on this browser.
func (d *Directory) PageURL(targetID string) string {
	return PageURL(d.host, d.port, targetID)
}

// WebSocketURL returns the debugger URL of the n-th target.
func (d *Directory) WebSocketURL(ctx context.Context, n int) (string, error) {
	target, err := d.Target(ctx, n)
	if err != nil {
		return "", err
	}

	if target.WebSocketURL == "" {
		return "", fmt.Errorf("target %s has no WebSocket URL", target.ID)
	}

	return target.WebSocketURL, nil
}
