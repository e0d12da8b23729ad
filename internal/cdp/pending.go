package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// waiter is a single-use handoff between the receive loop and one caller.
// It is resolved exactly once; later resolve calls are ignored.
type waiter struct {
	once sync.Once
	done chan struct{}
	resp *Response
	err  error
}

func newWaiter() *waiter {
	return &waiter{done: make(chan struct{})}
}

func (w *waiter) resolve(resp *Response, err error) {
	w.once.Do(func() {
		w.resp = resp
		w.err = err
		close(w.done)
	})
}

// pendingTable maps in-flight command IDs to their waiters.
// An entry is removed before its waiter is resolved, so exactly one of
// fulfill, remove or failAll ever owns it.
type pendingTable struct {
	mu      sync.Mutex
	waiters map[CommandID]*waiter
	closed  error
}

func newPendingTable() *pendingTable {
	return &pendingTable{waiters: make(map[CommandID]*waiter)}
}

// register adds a waiter for id. It fails with ErrDuplicateID if id is in
// flight, or with the close error once failAll has run.
func (t *pendingTable) register(id CommandID) (*waiter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed != nil {
		return nil, t.closed
	}
	if _, ok := t.waiters[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	w := newWaiter()
	t.waiters[id] = w
	return w, nil
}

// fulfill delivers resp to the waiter registered under resp.ID.
// It reports false when no waiter exists; the response is then dropped.
func (t *pendingTable) fulfill(resp *Response) bool {
	t.mu.Lock()
	w, ok := t.waiters[resp.ID]
	if ok {
		delete(t.waiters, resp.ID)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	w.resolve(resp, nil)
	return true
}

// remove drops the entry for id without resolving it.
// It reports false if another path already took ownership.
func (t *pendingTable) remove(id CommandID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.waiters[id]; !ok {
		return false
	}
	delete(t.waiters, id)
	return true
}

// failAll resolves every outstanding waiter with err and rejects all later
// registrations.
func (t *pendingTable) failAll(err error) {
	t.mu.Lock()
	if t.closed == nil {
		t.closed = err
	}
	drained := t.waiters
	t.waiters = make(map[CommandID]*waiter)
	t.mu.Unlock()

	for _, w := range drained {
		w.resolve(nil, err)
	}
}

// len returns the number of in-flight commands.
func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}

// Pending is the handle for a command that has been written to the socket.
// Wait may be called any number of times; all calls observe the same outcome.
type Pending struct {
	id     CommandID
	method string
	w      *waiter
	table  *pendingTable
}

// ID returns the command id allocated for this request.
func (p *Pending) ID() CommandID { return p.id }

// Method returns the command method name.
func (p *Pending) Method() string { return p.method }

// Done is closed once the command has an outcome.
func (p *Pending) Done() <-chan struct{} { return p.w.done }

// Wait blocks until the command resolves or ctx ends.
// A protocol-level failure is returned as *Error. If ctx ends first the
// command is abandoned: its table entry is removed so a late response is
// discarded, and the returned error matches ErrTimeout when the deadline
// passed.
func (p *Pending) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-p.w.done:
		return p.outcome()
	case <-ctx.Done():
	}

	if p.table.remove(p.id) {
		p.w.resolve(nil, timeoutError(fmt.Sprintf("command %s (id %d)", p.method, p.id), ctx.Err()))
	}
	// Either we resolved it above or the owner is about to.
	<-p.w.done
	return p.outcome()
}

// WaitTimeout is Wait with a relative timeout. A timeout <= 0 waits until the
// command resolves or the connection closes.
func (p *Pending) WaitTimeout(timeout time.Duration) (json.RawMessage, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.Wait(ctx)
}

func (p *Pending) outcome() (json.RawMessage, error) {
	if p.w.err != nil {
		return nil, p.w.err
	}
	if p.w.resp.Error != nil {
		return nil, p.w.resp.Error
	}
	return p.w.resp.Result, nil
}
