// Package track follows the prompt line of one terminal session and shapes
// each completion batch for it.
package track

import (
	"strings"

	termsuggest "github.com/Paranoid-AF/termsuggest"
	"github.com/Paranoid-AF/termsuggest/normalize"
	"github.com/Paranoid-AF/termsuggest/protocol"
)

// Scope tells whether a batch completes the command name or an argument.
type Scope int

const (
	// Contextual batches replace the span the shell supplied.
	Contextual Scope = iota
	// Global batches complete the command name itself.
	Global
)

func (s Scope) String() string {
	if s == Global {
		return "global"
	}
	return "contextual"
}

// Classify returns Global when nothing but a command name has been typed.
// Bracketed input such as "[Console]::" is never global.
func Classify(leading string) Scope {
	if strings.Contains(leading, " ") || strings.HasPrefix(leading, "[") {
		return Contextual
	}
	return Global
}

// Batch is one shaped completion batch.
type Batch struct {
	Scope             Scope
	ReplacementIndex  int
	ReplacementLength int
	Items             []termsuggest.CompletionItem
}

// Tracker is the per-session state. It is not safe for concurrent use; the
// owning session serializes access.
type Tracker struct {
	leading   string
	detected  normalize.Separator
	preferred normalize.Separator
	carried   *termsuggest.CompletionItem
}

// New returns a tracker with no detected separator.
func New() *Tracker {
	return &Tracker{}
}

// SetPreferred sets the separator used when none has been detected.
// None means the host separator.
func (t *Tracker) SetPreferred(sep normalize.Separator) {
	t.preferred = sep
}

// LeadingText is the prompt text before the cursor as last observed, with
// separators rewritten to the detected style.
func (t *Tracker) LeadingText() string {
	return t.leading
}

// Separator returns the detected separator, or None.
func (t *Tracker) Separator() normalize.Separator {
	return t.detected
}

// Fallback is the separator appended to directory labels without one.
func (t *Tracker) Fallback() normalize.Separator {
	return t.detected.Or(t.preferred).Or(normalize.HostSeparator())
}

// Accepted records the candidate the user picked. Only directories are
// carried into the next batch.
func (t *Tracker) Accepted(item termsuggest.CompletionItem) {
	if !item.IsDirectory {
		t.carried = nil
		return
	}
	carried := item
	t.carried = &carried
}

// Assemble turns one Completions message into the batch handed to the UI.
// cached is only consulted for global batches.
func (t *Tracker) Assemble(prompt termsuggest.PromptSnapshot, msg *protocol.CompletionsMessage, cached []termsuggest.CompletionItem) Batch {
	t.leading = prompt.LeadingText()
	scope := Classify(t.leading)

	index, length := msg.ReplacementIndex, msg.ReplacementLength
	if scope == Global {
		index, length = 0, len(t.leading)
	}

	items := normalize.Batch(msg.Completions, index, length, t.Fallback())
	if scope == Global {
		for _, it := range cached {
			it.ReplacementIndex = index
			it.ReplacementLength = length
			items = append(items, it)
		}
	}
	items = t.carryOver(items, index, length)
	t.trackDirectories(items)

	return Batch{
		Scope:             scope,
		ReplacementIndex:  index,
		ReplacementLength: length,
		Items:             items,
	}
}

// carryOver appends the last accepted directory when the batch is made of
// directories only. The carried item is consumed either way.
func (t *Tracker) carryOver(items []termsuggest.CompletionItem, index, length int) []termsuggest.CompletionItem {
	carried := t.carried
	t.carried = nil
	if carried == nil || len(items) == 0 {
		return items
	}
	for _, it := range items {
		if !it.IsDirectory {
			return items
		}
	}
	it := *carried
	it.ReplacementIndex = index
	it.ReplacementLength = length
	return append(items, it)
}

// trackDirectories adopts the separator of the first directory label that has
// one and rewrites the leading text to it.
func (t *Tracker) trackDirectories(items []termsuggest.CompletionItem) {
	for _, it := range items {
		if !it.IsDirectory {
			continue
		}
		if sep, ok := normalize.DetectSeparator(it.Label); ok {
			t.detected = sep
			t.leading = normalize.ReplaceSeparators(t.leading, sep)
			return
		}
	}
}
