package correlate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	termsuggest "github.com/Paranoid-AF/termsuggest"
)

type outcome struct {
	items []termsuggest.CompletionItem
	ok    bool
	err   error
}

func request(c *Correlator, ctx context.Context, start func()) <-chan outcome {
	out := make(chan outcome, 1)
	go func() {
		items, ok, err := c.Request(ctx, start)
		out <- outcome{items, ok, err}
	}()
	return out
}

func waitPending(t *testing.T, c *Correlator) {
	t.Helper()
	require.Eventually(t, c.Pending, time.Second, time.Millisecond)
}

func TestResolveWhileIdle(t *testing.T) {
	c := New()
	assert.False(t, c.Pending())
	assert.False(t, c.Resolve(nil, true))
}

func TestRequestResolve(t *testing.T) {
	c := New()
	var starts atomic.Int32
	done := request(c, context.Background(), func() { starts.Add(1) })
	waitPending(t, c)

	items := []termsuggest.CompletionItem{{Label: "git"}}
	require.True(t, c.Resolve(items, true))

	got := <-done
	require.NoError(t, got.err)
	assert.True(t, got.ok)
	assert.Equal(t, items, got.items)
	assert.Equal(t, int32(1), starts.Load())
	assert.False(t, c.Pending())
}

func TestConcurrentRequestsShareOneFlight(t *testing.T) {
	c := New()
	var starts atomic.Int32
	start := func() { starts.Add(1) }

	first := request(c, context.Background(), start)
	waitPending(t, c)

	var wg sync.WaitGroup
	joined := make([]<-chan outcome, 3)
	for i := range joined {
		joined[i] = request(c, context.Background(), start)
	}
	// Give the joiners time to attach to the flight.
	time.Sleep(20 * time.Millisecond)

	require.True(t, c.Resolve([]termsuggest.CompletionItem{{Label: "ls"}}, true))
	for _, ch := range append([]<-chan outcome{first}, joined...) {
		wg.Add(1)
		go func(ch <-chan outcome) {
			defer wg.Done()
			got := <-ch
			assert.True(t, got.ok)
			assert.Equal(t, "ls", got.items[0].Label)
		}(ch)
	}
	wg.Wait()
	assert.Equal(t, int32(1), starts.Load())
	assert.False(t, c.Resolve(nil, true), "resolver must be single-use")
}

func TestUnavailableDiffersFromEmpty(t *testing.T) {
	c := New()

	done := request(c, context.Background(), nil)
	waitPending(t, c)
	c.Resolve(nil, false)
	got := <-done
	assert.False(t, got.ok)

	done = request(c, context.Background(), nil)
	waitPending(t, c)
	c.Resolve([]termsuggest.CompletionItem{}, true)
	got = <-done
	assert.True(t, got.ok)
	assert.Empty(t, got.items)
}

func TestContextCancelLeavesFlightPending(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := request(c, ctx, nil)
	waitPending(t, c)

	cancel()
	got := <-done
	assert.ErrorIs(t, got.err, context.Canceled)
	assert.True(t, c.Pending())

	// A new caller joins the still-pending flight.
	again := request(c, context.Background(), func() { t.Error("start must not run for a joined flight") })
	time.Sleep(20 * time.Millisecond)
	require.True(t, c.Resolve(nil, true))
	assert.True(t, (<-again).ok)
}

func TestClose(t *testing.T) {
	c := New()
	done := request(c, context.Background(), nil)
	waitPending(t, c)

	c.Close()
	got := <-done
	require.NoError(t, got.err)
	assert.False(t, got.ok)

	var started bool
	items, ok, err := c.Request(context.Background(), func() { started = true })
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, items)
	assert.False(t, started)
}

func TestRequestAfterResolveStartsNewFlight(t *testing.T) {
	c := New()
	for i := 0; i < 200; i++ {
		first := request(c, context.Background(), nil)
		waitPending(t, c)
		require.True(t, c.Resolve([]termsuggest.CompletionItem{{Label: "old"}}, true))

		// No waiting for the first flight to unwind: the next request must
		// not see its result.
		var started atomic.Bool
		next := request(c, context.Background(), func() { started.Store(true) })
		require.Eventually(t, started.Load, time.Second, time.Millisecond, "round %d: start not called", i)
		require.True(t, c.Resolve([]termsuggest.CompletionItem{{Label: "new"}}, true))

		assert.Equal(t, "old", (<-first).items[0].Label)
		got := <-next
		require.Len(t, got.items, 1)
		assert.Equal(t, "new", got.items[0].Label, "round %d", i)
	}
}
