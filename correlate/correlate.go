// Package correlate pairs outbound completion requests with the shell's
// asynchronous replies.
//
// The shell answers on one shared channel with no request ids, so at most one
// request may be in flight. A second request made while one is pending joins
// it and receives the same result.
package correlate

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	termsuggest "github.com/Paranoid-AF/termsuggest"
)

// Result is what a request resolves to. OK is false when completions are
// unavailable, which is distinct from an empty list.
type Result struct {
	Items []termsuggest.CompletionItem
	OK    bool
}

// Correlator is Idle until Request arms a flight, then Awaiting until
// Resolve or Close fulfils it.
type Correlator struct {
	group singleflight.Group

	mu      sync.Mutex
	pending *flight
	closed  bool
	// gen names the flight in the singleflight group. Every armed flight gets
	// a new name, so a request made after a resolution never joins the
	// finished flight.
	gen uint64
}

// flight is one armed request. done is closed once res is set.
type flight struct {
	key  string
	done chan struct{}
	res  Result
}

// New returns an idle correlator.
func New() *Correlator {
	return &Correlator{}
}

// Request waits for the next resolution. When no request is pending it arms
// a flight and calls start, which emits whatever triggers the shell needs.
// Joining callers do not call start.
//
// ctx only bounds this caller's wait; the flight stays pending for others.
func (c *Correlator) Request(ctx context.Context, start func()) ([]termsuggest.CompletionItem, bool, error) {
	f, ok := c.arm()
	if !ok {
		return nil, false, nil
	}

	ch := c.group.DoChan(f.key, func() (any, error) {
		select {
		case <-f.done:
		default:
			if start != nil {
				start()
			}
			<-f.done
		}
		return f.res, nil
	})

	select {
	case r := <-ch:
		res := r.Val.(Result)
		return res.Items, res.OK, r.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Pending reports whether a request is awaiting resolution.
func (c *Correlator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Resolve fulfils the pending request. It returns false when none is pending.
func (c *Correlator) Resolve(items []termsuggest.CompletionItem, ok bool) bool {
	c.mu.Lock()
	f := c.pending
	c.pending = nil
	c.mu.Unlock()

	if f == nil {
		return false
	}
	f.res = Result{Items: items, OK: ok}
	close(f.done)
	return true
}

// Close resolves any pending request as unavailable. Later requests resolve
// immediately as unavailable too.
func (c *Correlator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Resolve(nil, false)
}

// arm returns the pending flight, creating one when Idle.
func (c *Correlator) arm() (*flight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false
	}
	if c.pending == nil {
		c.gen++
		c.pending = &flight{
			key:  strconv.FormatUint(c.gen, 10),
			done: make(chan struct{}),
		}
	}
	return c.pending, true
}
