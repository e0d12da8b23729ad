package cdp

import (
	"context"
	"fmt"

	"github.com/grantcarthew/cdpclient/internal/browser"
)

// Client locates targets on one browser and opens Connections to them.
// It holds no socket itself; every Connect call returns a new Connection.
type Client struct {
	dir  *browser.Directory
	opts []Option
}

// NewClient returns a Client for the default endpoint, localhost:9222.
func NewClient(opts ...Option) *Client {
	return NewCustomClient(browser.DefaultHost, browser.DefaultPort, opts...)
}

// NewCustomClient returns a Client for the browser at host:port.
// opts are applied to every Connection the client opens; WithHTTPClient
// also applies to target discovery.
func NewCustomClient(host string, port int, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		dir:  browser.NewDirectory(host, port, o.httpClient),
		opts: opts,
	}
}

// Directory returns the target directory backing this client.
func (c *Client) Directory() *browser.Directory {
	return c.dir
}

// Targets lists the debuggable targets in browser order.
func (c *Client) Targets(ctx context.Context) ([]browser.Target, error) {
	return c.dir.Targets(ctx)
}

// Version fetches browser version information.
func (c *Client) Version(ctx context.Context) (*browser.VersionInfo, error) {
	return c.dir.Version(ctx)
}

// ConnectToTab lists targets and connects to the n-th one.
func (c *Client) ConnectToTab(ctx context.Context, n int) (*Connection, error) {
	wsURL, err := c.dir.WebSocketURL(ctx, n)
	if err != nil {
		return nil, err
	}
	return c.ConnectURL(ctx, wsURL)
}

// ConnectToPage connects to the first target of type "page", skipping
// workers and extensions that may be listed ahead of it.
func (c *Client) ConnectToPage(ctx context.Context) (*Connection, error) {
	target, err := c.dir.PageTarget(ctx)
	if err != nil {
		return nil, err
	}
	if target.WebSocketURL == "" {
		return nil, fmt.Errorf("target %s has no WebSocket URL", target.ID)
	}
	return c.ConnectURL(ctx, target.WebSocketURL)
}

// ConnectToTarget connects to a page target by id without listing targets.
func (c *Client) ConnectToTarget(ctx context.Context, targetID string) (*Connection, error) {
	if targetID == "" {
		return nil, fmt.Errorf("empty target id")
	}
	return c.ConnectURL(ctx, c.dir.PageURL(targetID))
}

// ConnectBrowser connects to the browser-level endpoint from /json/version.
func (c *Client) ConnectBrowser(ctx context.Context) (*Connection, error) {
	info, err := c.dir.Version(ctx)
	if err != nil {
		return nil, err
	}
	if info.WebSocketURL == "" {
		return nil, fmt.Errorf("browser reported no WebSocket URL")
	}
	return c.ConnectURL(ctx, info.WebSocketURL)
}

// ConnectURL connects to an explicit debugger websocket URL.
func (c *Client) ConnectURL(ctx context.Context, wsURL string) (*Connection, error) {
	return Dial(ctx, wsURL, c.opts...)
}
