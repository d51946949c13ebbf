// Package addon connects one terminal session to the shell's completion
// protocol.
//
// An Addon watches the terminal output for shell integration frames, sends
// trigger sequences to the shell when the UI asks for completions, and
// resolves the pending request with the shaped batch. The global command
// cache is shared between addons and injected through Options.
package addon

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	termsuggest "github.com/Paranoid-AF/termsuggest"
	"github.com/Paranoid-AF/termsuggest/cache"
	"github.com/Paranoid-AF/termsuggest/correlate"
	"github.com/Paranoid-AF/termsuggest/normalize"
	"github.com/Paranoid-AF/termsuggest/protocol"
	"github.com/Paranoid-AF/termsuggest/redact"
	"github.com/Paranoid-AF/termsuggest/track"
)

// PromptSource provides the live input line.
type PromptSource interface {
	Prompt() termsuggest.PromptSnapshot
}

// StaticPrompt is a PromptSource that always returns the same snapshot.
type StaticPrompt termsuggest.PromptSnapshot

func (p StaticPrompt) Prompt() termsuggest.PromptSnapshot {
	return termsuggest.PromptSnapshot(p)
}

// Options configures an Addon.
type Options struct {
	// Shell receives trigger sequences. Writes are fire-and-forget.
	Shell io.Writer
	// Cache is the shared global command cache. Nil means a private,
	// memory-only cache.
	Cache  *cache.GlobalCommands
	Config *termsuggest.Config
	Logger *zap.Logger
	// Now is the clock used for keystroke gating.
	Now func() time.Time
}

// Addon is the per-session completion state.
type Addon struct {
	shell     io.Writer
	cache     *cache.GlobalCommands
	ownsCache bool
	logger    *zap.Logger
	now       func() time.Time
	corr      *correlate.Correlator

	mu      sync.Mutex
	scanner protocol.Scanner
	tracker *track.Tracker
	prompt  PromptSource
	focused bool

	enabled  bool
	git      bool
	code     bool
	sentGit  bool
	sentCode bool

	lastKeystroke time.Time
	lastAccept    time.Time

	// batchPrompt is the prompt the last batch was computed against.
	batchPrompt termsuggest.PromptSnapshot
	haveBatch   bool

	listeners    map[int]Listener
	nextListener int
}

// New returns an addon. It starts unfocused with no prompt source.
func New(opts Options) *Addon {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	a := &Addon{
		shell:     opts.Shell,
		cache:     opts.Cache,
		logger:    logger.Named("addon"),
		now:       now,
		corr:      correlate.New(),
		tracker:   track.New(),
		listeners: make(map[int]Listener),
	}
	if a.cache == nil {
		a.cache = cache.New(nil, cache.Options{Logger: logger})
		a.ownsCache = true
	}
	a.applyLocked(opts.Config)
	return a
}

// Close resolves any pending request as unavailable.
func (a *Addon) Close() {
	a.corr.Close()
	if a.ownsCache {
		a.cache.Close()
	}
}

// Subscribe registers l and returns a function that removes it.
func (a *Addon) Subscribe(l Listener) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextListener
	a.nextListener++
	a.listeners[id] = l
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

// SetPrompt attaches the live input line. Nil detaches it.
func (a *Addon) SetPrompt(src PromptSource) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompt = src
}

// SetFocused records whether the terminal has focus.
func (a *Addon) SetFocused(focused bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.focused = focused
}

// Keystroke records user input. A contextual request is only sent when
// input arrived after the last accepted completion.
func (a *Addon) Keystroke() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastKeystroke = a.now()
}

// LeadingText is the tracked input before the cursor, separators normalized.
func (a *Addon) LeadingText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tracker.LeadingText()
}

// Separator is the path separator detected from directory completions.
func (a *Addon) Separator() normalize.Separator {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tracker.Separator()
}

// ApplyConfig updates feature switches. Turning suggestions off clears the
// global command cache and fails any pending request as unavailable.
func (a *Addon) ApplyConfig(ctx context.Context, cfg *termsuggest.Config) {
	a.mu.Lock()
	was := a.enabled
	a.applyLocked(cfg)
	disabled := was && !a.enabled
	a.mu.Unlock()

	if disabled {
		a.corr.Resolve(nil, false)
		if err := a.cache.Clear(ctx); err != nil {
			a.logger.Warn("failed to clear global commands", zap.Error(err))
		}
	}
}

func (a *Addon) applyLocked(cfg *termsuggest.Config) {
	if cfg == nil {
		cfg = termsuggest.DefaultConfig()
	}
	a.enabled = termsuggest.SuggestEnabled(cfg)
	a.git = termsuggest.BuiltinGitEnabled(cfg)
	a.code = termsuggest.BuiltinCodeEnabled(cfg)
	a.tracker.SetPreferred(normalize.Separator(termsuggest.ResolveSeparator(cfg)))
}

// ClearCache empties the shared global command cache and its persisted copy.
func (a *Addon) ClearCache(ctx context.Context) error {
	return a.cache.Clear(ctx)
}

// RequestCompletions asks the shell for completions and waits for the reply.
// ok is false when completions are unavailable. A request made while another
// is pending shares its result.
func (a *Addon) RequestCompletions(ctx context.Context) ([]termsuggest.CompletionItem, bool, error) {
	a.mu.Lock()
	enabled := a.enabled
	a.mu.Unlock()
	if !enabled {
		return nil, false, nil
	}
	// Trigger emission outlives the first caller's context.
	bg := context.WithoutCancel(ctx)
	return a.corr.Request(ctx, func() { a.sendTriggers(bg) })
}

func (a *Addon) sendTriggers(ctx context.Context) {
	empty := a.cache.Len(ctx) == 0

	a.mu.Lock()
	var triggers []protocol.Trigger
	if a.git && !a.sentGit {
		triggers = append(triggers, protocol.TriggerGit)
		a.sentGit = true
	}
	if a.code && !a.sentCode {
		triggers = append(triggers, protocol.TriggerCode)
		a.sentCode = true
	}
	if empty {
		triggers = append(triggers, protocol.TriggerGlobal)
	}
	var events []Event
	if a.lastKeystroke.After(a.lastAccept) {
		triggers = append(triggers, protocol.TriggerContextual)
		events = append(events, Event{Type: CompletionsRequested})
	}
	a.mu.Unlock()

	a.emit(events...)
	for _, t := range triggers {
		a.logger.Debug("sending trigger", zap.Stringer("trigger", t))
		a.writeShell(t.Bytes())
	}
}

// HandleSequence processes the data of one shell integration frame.
// handled is false for commands this addon does not own.
func (a *Addon) HandleSequence(ctx context.Context, data string) (bool, error) {
	msg, ok, err := protocol.ParseMessage(data)
	if !ok {
		return false, nil
	}
	if err != nil {
		return true, err
	}
	switch m := msg.(type) {
	case *protocol.CompletionsMessage:
		a.handleCompletions(ctx, m)
	case *protocol.GlobalCommandsMessage:
		a.handleGlobalCommands(ctx, m)
	}
	return true, nil
}

func (a *Addon) handleCompletions(ctx context.Context, msg *protocol.CompletionsMessage) {
	a.mu.Lock()
	if !a.enabled || !a.focused || a.prompt == nil {
		a.mu.Unlock()
		a.logger.Debug("no active prompt, completions unavailable")
		a.corr.Resolve(nil, false)
		return
	}
	snap := a.prompt.Prompt()
	a.mu.Unlock()

	var cached []termsuggest.CompletionItem
	if track.Classify(snap.LeadingText()) == track.Global {
		cached = a.cache.Snapshot(ctx)
	}

	a.mu.Lock()
	batch := a.tracker.Assemble(snap, msg, cached)
	a.batchPrompt = snap
	a.haveBatch = true
	a.mu.Unlock()

	a.logger.Debug("completions received",
		zap.Stringer("scope", batch.Scope),
		zap.String("leading", redact.Line(snap.LeadingText())),
		zap.Int("items", len(batch.Items)),
		zap.Int("cached", len(cached)))

	a.corr.Resolve(batch.Items, true)
	a.emit(Event{Type: CompletionsReceived, Items: batch.Items})
}

func (a *Addon) handleGlobalCommands(ctx context.Context, msg *protocol.GlobalCommandsMessage) {
	a.mu.Lock()
	enabled := a.enabled
	fallback := a.tracker.Fallback()
	a.mu.Unlock()
	if !enabled {
		return
	}

	items := normalize.Batch(msg.Completions, 0, 0, fallback)
	if err := a.cache.Replace(ctx, items); err != nil {
		a.logger.Warn("failed to persist global commands", zap.Error(err))
	}
	a.logger.Debug("global commands replaced",
		zap.String("batch_type", msg.BatchType), zap.Int("count", len(items)))
}

// Accept emits the keystrokes that insert item and returns them.
func (a *Addon) Accept(item termsuggest.CompletionItem) []byte {
	a.mu.Lock()
	cur := a.batchPrompt
	if a.prompt != nil {
		cur = a.prompt.Prompt()
	}
	base := a.batchPrompt
	if !a.haveBatch {
		base = cur
	}
	data := acceptSequence(base, cur, item)
	a.tracker.Accepted(item)
	a.lastAccept = a.now()
	a.mu.Unlock()

	a.emit(Event{Type: SuggestionAccepted, Data: data, Items: []termsuggest.CompletionItem{item}})
	return data
}

// Feed scans terminal output, handles shell integration frames and returns
// the bytes left for display. Frames this addon does not own are passed
// through unchanged.
func (a *Addon) Feed(ctx context.Context, p []byte) []byte {
	a.mu.Lock()
	segs := a.scanner.Feed(p)
	a.mu.Unlock()
	return a.route(ctx, segs)
}

// Flush returns output withheld for an unterminated frame.
func (a *Addon) Flush(ctx context.Context) []byte {
	a.mu.Lock()
	segs := a.scanner.Flush()
	a.mu.Unlock()
	return a.route(ctx, segs)
}

func (a *Addon) route(ctx context.Context, segs []protocol.Segment) []byte {
	var out []byte
	for _, seg := range segs {
		switch seg.Kind {
		case protocol.SegmentOutput:
			out = append(out, seg.Data...)
		case protocol.SegmentBell:
			a.emit(Event{Type: Bell})
		case protocol.SegmentSequence:
			handled, err := a.HandleSequence(ctx, string(seg.Data))
			if err != nil {
				a.logger.Warn("dropping malformed shell message",
					zap.Error(err), zap.Bool("decode", errors.Is(err, protocol.ErrProtocolDecode)))
				continue
			}
			if !handled {
				out = append(out, protocol.EncodeSequence(seg.Data)...)
			}
		}
	}
	return out
}

func (a *Addon) writeShell(b []byte) {
	if a.shell == nil {
		return
	}
	if _, err := a.shell.Write(b); err != nil {
		a.logger.Warn("failed to write to shell", zap.Error(err))
	}
}

func (a *Addon) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	a.mu.Lock()
	ls := make([]Listener, 0, len(a.listeners))
	for id := 0; id < a.nextListener; id++ {
		if l, ok := a.listeners[id]; ok {
			ls = append(ls, l)
		}
	}
	a.mu.Unlock()

	for _, e := range events {
		for _, l := range ls {
			l(e)
		}
	}
}
