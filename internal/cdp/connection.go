package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// DefaultTimeout is the default timeout for CDP commands.
const DefaultTimeout = 30 * time.Second

// DefaultReadLimit is the maximum frame size accepted from the browser.
// CDP results such as screenshots are far larger than the websocket default.
const DefaultReadLimit = 64 << 20

// State is the lifecycle state of a Connection.
type State int32

const (
	// StateConnecting indicates the websocket handshake is in progress.
	StateConnecting State = iota
	// StateOpen indicates the receive loop is running.
	StateOpen
	// StateClosed is terminal.
	StateClosed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var errClosedByClient = errors.New("closed by client")

// Option configures a Connection.
type Option func(*options)

type options struct {
	logger     zerolog.Logger
	timeout    time.Duration
	readLimit  int64
	httpClient *http.Client
	header     http.Header
}

func defaultOptions() options {
	return options{
		logger:    zerolog.Nop(),
		timeout:   DefaultTimeout,
		readLimit: DefaultReadLimit,
	}
}

// WithLogger sets the logger used by the receive loop.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTimeout sets the timeout used by Send. Values <= 0 are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithReadLimit sets the maximum accepted frame size in bytes.
func WithReadLimit(n int64) Option {
	return func(o *options) { o.readLimit = n }
}

// WithHTTPClient sets the HTTP client used for the websocket handshake.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithHeader adds headers to the websocket handshake request.
func WithHeader(h http.Header) Option {
	return func(o *options) { o.header = h }
}

// Connection is a CDP connection to a single target.
//
// A receive loop owns the socket's read side. It resolves pending commands
// and queues events in wire order. Any number of goroutines may send
// concurrently; writes are serialized.
type Connection struct {
	conn    Conn
	writeMu sync.Mutex
	msgID   atomic.Uint64
	state   atomic.Int32

	pending *pendingTable
	events  *eventQueue

	log     zerolog.Logger
	timeout time.Duration

	teardownOnce  sync.Once
	connCloseOnce sync.Once
	closeMu       sync.Mutex
	closeErr      error
	closedCh      chan struct{}

	// done signals that the read loop has exited
	done chan struct{}
}

func newConnection(o options) *Connection {
	c := &Connection{
		pending:  newPendingTable(),
		events:   newEventQueue(),
		log:      o.logger,
		timeout:  o.timeout,
		closedCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// NewConnection wraps an established socket and starts the receive loop.
func NewConnection(conn Conn, opts ...Option) *Connection {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c := newConnection(o)
	c.start(conn)
	return c
}

// Dial connects to a CDP websocket endpoint and returns an open Connection.
func Dial(ctx context.Context, wsURL string, opts ...Option) (*Connection, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c := newConnection(o)

	ws, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: o.httpClient,
		HTTPHeader: o.header,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CDP endpoint: %w", err)
	}
	if o.readLimit > 0 {
		ws.SetReadLimit(o.readLimit)
	}

	c.start(ws)
	c.log.Debug().Str("url", wsURL).Msg("cdp connection open")
	return c, nil
}

func (c *Connection) start(conn Conn) {
	c.conn = conn
	c.state.Store(int32(StateOpen))
	go c.readLoop()
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// SendAsync writes a command and returns a handle for its result.
// It does not wait for the response; ctx bounds only the socket write.
func (c *Connection) SendAsync(ctx context.Context, method string, params any) (*Pending, error) {
	return c.SendSessionAsync(ctx, "", method, params)
}

// SendSessionAsync is SendAsync for a flattened target session.
func (c *Connection) SendSessionAsync(ctx context.Context, sessionID, method string, params any) (*Pending, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	payload, err := encodeParams(params)
	if err != nil {
		return nil, err
	}

	id := CommandID(c.msgID.Add(1))
	w, err := c.pending.register(id)
	if err != nil {
		if errors.Is(err, ErrDuplicateID) {
			c.log.Error().Err(err).Msg("command id allocation is inconsistent")
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrNotConnected, err)
	}

	data := Encode(id, method, payload, sessionID)

	c.writeMu.Lock()
	err = c.conn.Write(ctx, websocket.MessageText, data)
	c.writeMu.Unlock()
	if err != nil {
		c.pending.remove(id)
		if c.State() == StateClosed {
			return nil, fmt.Errorf("%w: %w", ErrNotConnected, c.Err())
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return &Pending{id: id, method: method, w: w, table: c.pending}, nil
}

// AwaitResult waits for a pending command. See Pending.Wait.
func (c *Connection) AwaitResult(ctx context.Context, p *Pending) (json.RawMessage, error) {
	return p.Wait(ctx)
}

// Send sends a CDP command and waits for the response.
// Uses the connection's default timeout.
func (c *Connection) Send(method string, params any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.SendContext(ctx, method, params)
}

// SendContext sends a CDP command with a context for cancellation.
func (c *Connection) SendContext(ctx context.Context, method string, params any) (json.RawMessage, error) {
	p, err := c.SendAsync(ctx, method, params)
	if err != nil {
		return nil, err
	}
	return p.Wait(ctx)
}

// WaitMessage returns the oldest queued event, waiting up to timeout.
// A timeout <= 0 waits until an event arrives or the connection closes.
func (c *Connection) WaitMessage(timeout time.Duration) (*Event, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.WaitMessageContext(ctx)
}

// WaitMessageContext returns the oldest queued event.
// Queued events are still returned after close; once drained the error
// matches ErrConnectionClosed.
func (c *Connection) WaitMessageContext(ctx context.Context) (*Event, error) {
	evt, err := c.events.pop(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, timeoutError("wait for event", err)
		}
		return nil, err
	}
	return evt, nil
}

// WaitEvent consumes events until one with the given method arrives.
// Events that do not match are dropped.
func (c *Connection) WaitEvent(ctx context.Context, method string) (*Event, error) {
	return c.WaitFor(ctx, func(e *Event) bool { return e.Method == method })
}

// WaitFor consumes events until match returns true for one of them.
// Events that do not match are dropped.
func (c *Connection) WaitFor(ctx context.Context, match func(*Event) bool) (*Event, error) {
	for {
		evt, err := c.WaitMessageContext(ctx)
		if err != nil {
			return nil, err
		}
		if match(evt) {
			return evt, nil
		}
	}
}

// Done is closed when the connection reaches StateClosed.
func (c *Connection) Done() <-chan struct{} {
	return c.closedCh
}

// Err returns the error that closed the connection, or nil while open.
// The error always matches ErrConnectionClosed.
func (c *Connection) Err() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closeErr
}

// Close closes the connection and stops the read loop.
// Pending commands fail with ErrConnectionClosed.
func (c *Connection) Close() error {
	initiated := c.teardown(errClosedByClient)

	var err error
	c.connCloseOnce.Do(func() {
		err = c.conn.Close(websocket.StatusNormalClosure, "client closing")
	})

	// Wait for read loop to exit
	<-c.done

	if !initiated {
		return nil
	}
	return err
}

func (c *Connection) checkOpen() error {
	switch c.State() {
	case StateOpen:
		return nil
	case StateClosed:
		return fmt.Errorf("%w: %w", ErrNotConnected, c.Err())
	default:
		return ErrNotConnected
	}
}

// teardown moves the connection to StateClosed exactly once, failing every
// pending command and closing the event queue. It reports whether this call
// performed the transition.
func (c *Connection) teardown(cause error) bool {
	initiated := false
	c.teardownOnce.Do(func() {
		initiated = true
		err := closedError(cause)

		c.closeMu.Lock()
		c.closeErr = err
		c.closeMu.Unlock()

		c.state.Store(int32(StateClosed))
		c.pending.failAll(err)
		c.events.close(err)
		close(c.closedCh)

		c.log.Debug().Err(cause).Msg("cdp connection closed")
	})
	return initiated
}

// readLoop reads frames from the connection and dispatches them in wire order.
func (c *Connection) readLoop() {
	defer close(c.done)

	ctx := context.Background()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.teardown(err)
			return
		}

		frame, err := Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Int("bytes", len(data)).Msg("skipping malformed CDP frame")
			continue
		}

		switch f := frame.(type) {
		case *Response:
			if !c.pending.fulfill(f) {
				c.log.Debug().Uint64("id", uint64(f.ID)).Msg("discarding response with no waiter")
			}
		case *Event:
			c.events.push(f)
		}
	}
}
