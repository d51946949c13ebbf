package addon

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	termsuggest "github.com/Paranoid-AF/termsuggest"
	"github.com/Paranoid-AF/termsuggest/cache"
	"github.com/Paranoid-AF/termsuggest/normalize"
	"github.com/Paranoid-AF/termsuggest/protocol"
	"github.com/Paranoid-AF/termsuggest/store"
)

type shellRecorder struct {
	mu     sync.Mutex
	writes []string
}

func (r *shellRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, string(p))
	return len(p), nil
}

func (r *shellRecorder) count(tr protocol.Trigger) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, w := range r.writes {
		if w == string(tr) {
			n++
		}
	}
	return n
}

func (r *shellRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = nil
}

// fakeClock advances one millisecond per reading so events are strictly ordered.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type result struct {
	items []termsuggest.CompletionItem
	ok    bool
	err   error
}

func boolPtr(b bool) *bool { return &b }

func configWith(git, code bool) *termsuggest.Config {
	cfg := termsuggest.DefaultConfig()
	cfg.Suggest.Builtin.Git = boolPtr(git)
	cfg.Suggest.Builtin.Code = boolPtr(code)
	return cfg
}

func snapshot(value string) termsuggest.PromptSnapshot {
	return termsuggest.PromptSnapshot{
		Value:          value,
		Prefix:         value,
		CursorIndex:    len(value),
		GhostTextIndex: -1,
	}
}

type fixture struct {
	addon *Addon
	shell *shellRecorder
	cache *cache.GlobalCommands
	store *store.MemoryStore
}

func newFixture(t *testing.T, cfg *termsuggest.Config) *fixture {
	t.Helper()
	st := store.NewMemory()
	c := cache.New(st, cache.Options{})
	shell := &shellRecorder{}
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	a := New(Options{Shell: shell, Cache: c, Config: cfg, Now: clock.Now})
	t.Cleanup(func() {
		a.Close()
		c.Close()
	})
	return &fixture{addon: a, shell: shell, cache: c, store: st}
}

func (f *fixture) request(t *testing.T) <-chan result {
	t.Helper()
	out := make(chan result, 1)
	go func() {
		items, ok, err := f.addon.RequestCompletions(context.Background())
		out <- result{items, ok, err}
	}()
	return out
}

func (f *fixture) waitTrigger(t *testing.T, tr protocol.Trigger, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.shell.count(tr) >= n },
		time.Second, time.Millisecond, "waiting for %s trigger", tr)
}

func frame(data string) []byte {
	return protocol.EncodeSequence([]byte(data))
}

func receive(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("request did not resolve")
		return result{}
	}
}

func TestGlobalTriggerOnlyWhileCacheEmpty(t *testing.T) {
	f := newFixture(t, configWith(false, false))
	ctx := context.Background()
	f.addon.SetFocused(true)
	f.addon.SetPrompt(StaticPrompt(snapshot("gi")))
	f.addon.Keystroke()

	done := f.request(t)
	f.waitTrigger(t, protocol.TriggerContextual, 1)
	assert.Equal(t, 1, f.shell.count(protocol.TriggerGlobal))

	out := f.addon.Feed(ctx, frame(`CompletionsPwshCommands;commands;[["git",2,"git.exe"],["gitk",2]]`))
	assert.Empty(t, out)
	assert.Equal(t, 2, f.cache.Len(ctx))

	f.addon.Feed(ctx, frame("Completions;0;0;2;"))
	got := receive(t, done)
	require.NoError(t, got.err)
	require.True(t, got.ok)
	require.Len(t, got.items, 2)
	assert.Equal(t, "git", got.items[0].Label)
	assert.Equal(t, "git.exe", got.items[0].Detail)
	assert.Equal(t, 2, got.items[0].ReplacementLength)

	// Populated cache: no second global refresh.
	f.shell.reset()
	f.addon.Keystroke()
	done = f.request(t)
	f.waitTrigger(t, protocol.TriggerContextual, 1)
	assert.Zero(t, f.shell.count(protocol.TriggerGlobal))
	f.addon.Feed(ctx, frame("Completions;0;0;2;[]"))
	assert.True(t, receive(t, done).ok)
}

func TestExtraSourcesRequestedOnce(t *testing.T) {
	f := newFixture(t, configWith(true, true))
	ctx := context.Background()
	f.addon.SetFocused(true)
	f.addon.SetPrompt(StaticPrompt(snapshot("git ")))

	for i := 0; i < 2; i++ {
		f.addon.Keystroke()
		done := f.request(t)
		f.waitTrigger(t, protocol.TriggerContextual, i+1)
		f.addon.Feed(ctx, frame("Completions;0;4;0;[]"))
		receive(t, done)
	}
	assert.Equal(t, 1, f.shell.count(protocol.TriggerGit))
	assert.Equal(t, 1, f.shell.count(protocol.TriggerCode))
	// Nothing filled the cache, so both requests refreshed it.
	assert.Equal(t, 2, f.shell.count(protocol.TriggerGlobal))
}

func TestUnfocusedIsUnavailableNotEmpty(t *testing.T) {
	f := newFixture(t, configWith(false, false))
	ctx := context.Background()
	f.addon.SetPrompt(StaticPrompt(snapshot("ls ")))
	f.addon.Keystroke()

	done := f.request(t)
	f.waitTrigger(t, protocol.TriggerContextual, 1)
	handled, err := f.addon.HandleSequence(ctx, "Completions;0;3;0;[]")
	require.NoError(t, err)
	assert.True(t, handled)
	got := receive(t, done)
	assert.False(t, got.ok)
	assert.Nil(t, got.items)

	f.addon.SetFocused(true)
	f.addon.Keystroke()
	done = f.request(t)
	f.waitTrigger(t, protocol.TriggerContextual, 2)
	_, err = f.addon.HandleSequence(ctx, "Completions;0;3;0;[]")
	require.NoError(t, err)
	got = receive(t, done)
	assert.True(t, got.ok)
	assert.NotNil(t, got.items)
	assert.Empty(t, got.items)
}

func TestDetachedPromptIsUnavailable(t *testing.T) {
	f := newFixture(t, configWith(false, false))
	f.addon.SetFocused(true)
	f.addon.Keystroke()

	done := f.request(t)
	f.waitTrigger(t, protocol.TriggerContextual, 1)
	_, err := f.addon.HandleSequence(context.Background(), "Completions;0;0;0;[]")
	require.NoError(t, err)
	assert.False(t, receive(t, done).ok)
}

func TestContextualNeedsKeystrokeAfterAccept(t *testing.T) {
	f := newFixture(t, configWith(false, false))
	f.addon.SetFocused(true)
	f.addon.SetPrompt(StaticPrompt(snapshot("cd ")))

	var events []EventType
	var mu sync.Mutex
	f.addon.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.Type)
	})

	f.addon.Keystroke()
	f.addon.Accept(termsuggest.CompletionItem{Label: "src/", IsDirectory: true, ReplacementIndex: 3})

	done := f.request(t)
	f.waitTrigger(t, protocol.TriggerGlobal, 1)
	assert.Zero(t, f.shell.count(protocol.TriggerContextual))

	_, err := f.addon.HandleSequence(context.Background(), "Completions;0;3;0;[]")
	require.NoError(t, err)
	receive(t, done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{SuggestionAccepted, CompletionsReceived}, events)
}

func TestEventsAreDelivered(t *testing.T) {
	f := newFixture(t, configWith(false, false))
	ctx := context.Background()
	f.addon.SetFocused(true)
	f.addon.SetPrompt(StaticPrompt(snapshot("git ch")))

	var mu sync.Mutex
	var got []Event
	unsubscribe := f.addon.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
	})

	f.addon.Keystroke()
	done := f.request(t)
	f.waitTrigger(t, protocol.TriggerContextual, 1)
	f.addon.Feed(ctx, frame(`Completions;0;4;2;[{"CompletionText":"checkout","ResultType":8}]`))
	items := receive(t, done).items
	require.Len(t, items, 1)

	accepted := f.addon.Accept(items[0])
	assert.Equal(t, "eckout", string(accepted))

	f.addon.Feed(ctx, []byte("\x07"))

	unsubscribe()
	f.addon.Feed(ctx, []byte("\x07"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 4)
	assert.Equal(t, CompletionsRequested, got[0].Type)
	assert.Equal(t, CompletionsReceived, got[1].Type)
	assert.Equal(t, "checkout", got[1].Items[0].Label)
	assert.Equal(t, SuggestionAccepted, got[2].Type)
	assert.Equal(t, "eckout", string(got[2].Data))
	assert.Equal(t, Bell, got[3].Type)
}

func TestHandleSequence(t *testing.T) {
	f := newFixture(t, configWith(false, false))
	ctx := context.Background()

	handled, err := f.addon.HandleSequence(ctx, "A")
	require.NoError(t, err)
	assert.False(t, handled)

	handled, err = f.addon.HandleSequence(ctx, "Completions;0;x;0;[]")
	assert.True(t, handled)
	assert.True(t, errors.Is(err, protocol.ErrProtocolDecode))

	handled, err = f.addon.HandleSequence(ctx, `CompletionsPwshCommands;commands;{"CompletionText":`)
	assert.True(t, handled)
	assert.True(t, errors.Is(err, protocol.ErrProtocolDecode))
}

func TestFeedPassesThroughForeignFrames(t *testing.T) {
	f := newFixture(t, configWith(false, false))
	ctx := context.Background()

	var bells int
	f.addon.Subscribe(func(e Event) {
		if e.Type == Bell {
			bells++
		}
	})

	out := f.addon.Feed(ctx, []byte("ls\r\n\x1b]633;E;ls\x07\x1b]0;title\x07\x07done\x1b]633;Comp"))
	assert.Equal(t, "ls\r\n\x1b]633;E;ls\x07\x1b]0;title\x07done", string(out))
	assert.Equal(t, 1, bells)

	// The split frame completes on the next read; malformed ones are dropped.
	out = f.addon.Feed(ctx, []byte("letions;0;x;0;[]\x07tail"))
	assert.Equal(t, "tail", string(out))

	out = f.addon.Feed(ctx, []byte("\x1b]633;unterminated"))
	assert.Empty(t, out)
	assert.Equal(t, "\x1b]633;unterminated", string(f.addon.Flush(ctx)))
}

func TestGlobalCommandsReplaceAndPersist(t *testing.T) {
	f := newFixture(t, configWith(false, false))
	ctx := context.Background()
	f.addon.Feed(ctx, frame(`CompletionsPwshCommands;commands;[{"CompletionText":"old","ResultType":2}]`))
	f.addon.Feed(ctx, frame(`CompletionsPwshCommands;commands;[["Get-ChildItem",2],["gci",2]]`))

	snap := f.cache.Snapshot(ctx)
	require.Len(t, snap, 2)
	assert.Equal(t, "Get-ChildItem", snap[0].Label)

	data, err := f.store.Get(ctx, cache.StorageKey)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "gci"))
	assert.False(t, strings.Contains(string(data), `"old"`))
}

func TestDisablingClearsCacheAndFailsRequests(t *testing.T) {
	f := newFixture(t, configWith(false, false))
	ctx := context.Background()
	require.NoError(t, f.cache.Replace(ctx, []termsuggest.CompletionItem{{Label: "git"}}))

	f.addon.SetFocused(true)
	f.addon.SetPrompt(StaticPrompt(snapshot("g")))
	f.addon.Keystroke()
	done := f.request(t)
	f.waitTrigger(t, protocol.TriggerContextual, 1)

	cfg := configWith(false, false)
	cfg.Suggest.Enabled = boolPtr(false)
	f.addon.ApplyConfig(ctx, cfg)

	assert.False(t, receive(t, done).ok)
	assert.Zero(t, f.cache.Len(ctx))
	_, err := f.store.Get(ctx, cache.StorageKey)
	assert.ErrorIs(t, err, store.ErrNotFound)

	items, ok, err := f.addon.RequestCompletions(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, items)

	// Global command pushes are ignored while disabled.
	f.addon.Feed(ctx, frame(`CompletionsPwshCommands;commands;[["git",2]]`))
	assert.Zero(t, f.cache.Len(ctx))
}

func TestSeparatorTracking(t *testing.T) {
	f := newFixture(t, configWith(false, false))
	ctx := context.Background()
	f.addon.SetFocused(true)
	f.addon.SetPrompt(StaticPrompt(snapshot("cd src/")))
	f.addon.Keystroke()

	done := f.request(t)
	f.waitTrigger(t, protocol.TriggerContextual, 1)
	f.addon.Feed(ctx, frame(`Completions;0;3;4;[["src\\cmd",4],["src\\docs",4]]`))
	items := receive(t, done).items

	require.Len(t, items, 2)
	assert.Equal(t, `src\cmd\`, items[0].Label)
	assert.Equal(t, normalize.Backslash, f.addon.Separator())
	assert.Equal(t, `cd src\`, f.addon.LeadingText())
}

func TestClearCache(t *testing.T) {
	f := newFixture(t, configWith(false, false))
	ctx := context.Background()
	require.NoError(t, f.cache.Replace(ctx, []termsuggest.CompletionItem{{Label: "git"}}))
	require.NoError(t, f.addon.ClearCache(ctx))
	assert.Zero(t, f.cache.Len(ctx))
}

func TestPrivateCacheWhenNoneShared(t *testing.T) {
	a := New(Options{})
	defer a.Close()
	_, err := a.HandleSequence(context.Background(), `CompletionsPwshCommands;commands;[["git",2]]`)
	require.NoError(t, err)
	assert.Equal(t, 1, a.cache.Len(context.Background()))
}

func TestRequestAfterBatchSendsFreshTrigger(t *testing.T) {
	f := newFixture(t, configWith(false, false))
	f.cache.Add(termsuggest.CompletionItem{Label: "git"})
	f.addon.SetFocused(true)
	f.addon.SetPrompt(StaticPrompt(snapshot("ls a")))

	for i := 1; i <= 50; i++ {
		f.addon.Keystroke()
		done := f.request(t)
		f.waitTrigger(t, protocol.TriggerContextual, i)

		label := "alpha"
		if i%2 == 0 {
			label = "beta"
		}
		_, err := f.addon.HandleSequence(context.Background(), `Completions;;3;1;[["`+label+`",3]]`)
		require.NoError(t, err)

		r := receive(t, done)
		require.True(t, r.ok)
		require.Len(t, r.items, 1)
		assert.Equal(t, label, r.items[0].Label, "round %d got a stale batch", i)
	}
	assert.Zero(t, f.shell.count(protocol.TriggerGlobal))
}
