package cdp

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when an operation needs an open connection.
	ErrNotConnected = errors.New("not connected")

	// ErrConnectionClosed is returned for every pending and future operation
	// once the connection has closed. A new Connection is required to continue.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrTimeout is returned when a local deadline elapses while waiting.
	// The connection stays open.
	ErrTimeout = errors.New("timed out")

	// ErrDuplicateID indicates a command id was registered twice.
	// It can only happen if id allocation is broken.
	ErrDuplicateID = errors.New("duplicate command id")

	// ErrDecode is matched by every *FrameDecodeError.
	ErrDecode = errors.New("malformed frame")

	errUnknownFormat = errors.New("frame has neither id nor method")
)

// FrameDecodeError reports an incoming frame that could not be decoded.
type FrameDecodeError struct {
	Data []byte
	Err  error
}

func (e *FrameDecodeError) Error() string {
	return fmt.Sprintf("failed to decode CDP frame (%d bytes): %v", len(e.Data), e.Err)
}

func (e *FrameDecodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDecode) true for any decode failure.
func (e *FrameDecodeError) Is(target error) bool { return target == ErrDecode }

// closedError builds the terminal error for a connection, keeping the cause.
func closedError(cause error) error {
	if cause == nil || errors.Is(cause, ErrConnectionClosed) {
		return ErrConnectionClosed
	}
	return fmt.Errorf("%w: %w", ErrConnectionClosed, cause)
}

// timeoutError wraps a context error so it matches ErrTimeout as well as the
// original context error.
func timeoutError(what string, ctxErr error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return fmt.Errorf("%s %w: %w", what, ErrTimeout, ctxErr)
	}
	return fmt.Errorf("%s abandoned: %w", what, ctxErr)
}
