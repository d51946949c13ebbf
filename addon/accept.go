package addon

import (
	"strings"
	"unicode/utf8"

	termsuggest "github.com/Paranoid-AF/termsuggest"
)

const (
	keyRight     = "\x1b[C"
	keyLeft      = "\x1b[D"
	keyBackspace = "\x7f"
)

// acceptSequence builds the keystrokes that replace item's span with its label.
//
// base is the prompt the batch was computed against and cur the prompt now.
// Text typed since base extends the span. Ghost text is never part of it.
func acceptSequence(base, cur termsuggest.PromptSnapshot, item termsuggest.CompletionItem) []byte {
	value := cur.Value[:cur.InputEnd()]

	typed := cur.CursorIndex - base.CursorIndex
	if typed < 0 {
		typed = 0
	}
	start := clamp(item.ReplacementIndex, 0, len(value))
	end := clamp(item.ReplacementIndex+item.ReplacementLength+typed, start, len(value))
	cursor := clamp(cur.CursorIndex, 0, len(value))

	var b strings.Builder
	switch {
	case end > cursor:
		b.WriteString(strings.Repeat(keyRight, utf8.RuneCountInString(value[cursor:end])))
	case end < cursor:
		b.WriteString(strings.Repeat(keyLeft, utf8.RuneCountInString(value[end:cursor])))
	}

	replaced := value[start:end]
	if strings.HasPrefix(item.Label, replaced) {
		b.WriteString(item.Label[len(replaced):])
	} else {
		b.WriteString(strings.Repeat(keyBackspace, utf8.RuneCountInString(replaced)))
		b.WriteString(item.Label)
	}
	return []byte(b.String())
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
