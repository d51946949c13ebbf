package repl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	termsuggest "github.com/Paranoid-AF/termsuggest"
	"github.com/Paranoid-AF/termsuggest/addon"
	"github.com/Paranoid-AF/termsuggest/protocol"
	"github.com/Paranoid-AF/termsuggest/track"
)

// triggerLog stands in for the shell: it records the trigger sequences the
// addon writes.
type triggerLog struct {
	ch chan protocol.Trigger
}

func newTriggerLog() *triggerLog {
	return &triggerLog{ch: make(chan protocol.Trigger, 16)}
}

func (l *triggerLog) Write(p []byte) (int, error) {
	select {
	case l.ch <- protocol.Trigger(p):
	default:
	}
	return len(p), nil
}

func (l *triggerLog) drain() {
	for {
		select {
		case <-l.ch:
		default:
			return
		}
	}
}

// session plays the shell's side of the protocol for an addon.
type session struct {
	addon   *addon.Addon
	shell   *triggerLog
	timeout time.Duration

	// respond is the Completions message data sent for the next contextual
	// trigger. Empty means an empty batch.
	respond string
}

// Entry is the outcome of one completion round.
type Entry struct {
	Timestamp time.Time `toml:"timestamp"`
	Input     string    `toml:"input"`
	Cursor    int       `toml:"cursor_pos"`
	Scope     string    `toml:"scope"`
	Leading   string    `toml:"leading_text"`
	Separator string    `toml:"separator,omitempty"`
	Triggers  []string  `toml:"triggers"`
	Available bool      `toml:"available"`
	Error     string    `toml:"error,omitempty"`
	Items     []Item    `toml:"items,omitempty"`
}

// Item is a CompletionItem as written to the TOML log.
type Item struct {
	Label             string `toml:"label"`
	Detail            string `toml:"detail"`
	Icon              string `toml:"icon"`
	IsFile            bool   `toml:"is_file,omitempty"`
	IsDirectory       bool   `toml:"is_directory,omitempty"`
	IsKeyword         bool   `toml:"is_keyword,omitempty"`
	ReplacementIndex  int    `toml:"replacement_index"`
	ReplacementLength int    `toml:"replacement_length"`
}

func toItem(it termsuggest.CompletionItem) Item {
	return Item{
		Label:             it.Label,
		Detail:            it.Detail,
		Icon:              string(it.Icon),
		IsFile:            it.IsFile,
		IsDirectory:       it.IsDirectory,
		IsKeyword:         it.IsKeyword,
		ReplacementIndex:  it.ReplacementIndex,
		ReplacementLength: it.ReplacementLength,
	}
}

// complete runs one request for text with the cursor at cursor. The items
// returned are those whose label extends the text they replace.
func (s *session) complete(ctx context.Context, text string, cursor int) (*Entry, []termsuggest.CompletionItem, error) {
	if cursor < 0 || cursor > len(text) {
		cursor = len(text)
	}
	snap := termsuggest.PromptSnapshot{
		Value:          text,
		Prefix:         text[:cursor],
		Suffix:         text[cursor:],
		CursorIndex:    cursor,
		GhostTextIndex: -1,
	}
	s.addon.SetPrompt(addon.StaticPrompt(snap))
	s.addon.SetFocused(true)
	s.addon.Keystroke()
	s.shell.drain()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		items []termsuggest.CompletionItem
		ok    bool
		err   error
	}
	done := make(chan result, 1)
	go func() {
		items, ok, err := s.addon.RequestCompletions(ctx)
		done <- result{items, ok, err}
	}()

	entry := &Entry{
		Timestamp: time.Now(),
		Input:     text,
		Cursor:    cursor,
		Scope:     track.Classify(snap.LeadingText()).String(),
	}
	for {
		select {
		case t := <-s.shell.ch:
			entry.Triggers = append(entry.Triggers, t.String())
			if t == protocol.TriggerContextual {
				if err := s.answer(ctx, cursor); err != nil {
					entry.Error = err.Error()
				}
			}
		case r := <-done:
			if r.err != nil {
				return nil, nil, errors.Wrap(r.err, "request completions")
			}
			items := matching(text, r.items)
			entry.Available = r.ok
			entry.Leading = s.addon.LeadingText()
			entry.Separator = s.addon.Separator().String()
			for _, it := range items {
				entry.Items = append(entry.Items, toItem(it))
			}
			return entry, items, nil
		}
	}
}

// answer sends the queued response, or an empty batch. A response that
// fails to parse is reported and replaced by an empty batch so the pending
// request still resolves.
func (s *session) answer(ctx context.Context, cursor int) error {
	empty := fmt.Sprintf("Completions;0;%d;0;", cursor)
	data := s.respond
	s.respond = ""
	if data == "" {
		data = empty
	}

	handled, err := s.addon.HandleSequence(ctx, data)
	if err == nil && handled {
		return nil
	}
	if err == nil {
		err = errors.Newf("not a completion message: %q", data)
	}
	if _, fallbackErr := s.addon.HandleSequence(ctx, empty); fallbackErr != nil {
		return errors.CombineErrors(err, fallbackErr)
	}
	return err
}

// matching keeps the items whose label starts with the text they replace,
// ignoring case.
func matching(text string, items []termsuggest.CompletionItem) []termsuggest.CompletionItem {
	out := make([]termsuggest.CompletionItem, 0, len(items))
	for _, it := range items {
		start := min(it.ReplacementIndex, len(text))
		end := min(start+it.ReplacementLength, len(text))
		if strings.HasPrefix(strings.ToLower(it.Label), strings.ToLower(text[start:end])) {
			out = append(out, it)
		}
	}
	return out
}
