// Package normalize maps raw shell completion records to CompletionItems.
//
// Normalization is total: every kind value, known or not, produces an item.
package normalize

import (
	"strings"

	termsuggest "github.com/Paranoid-AF/termsuggest"
	"github.com/Paranoid-AF/termsuggest/protocol"
)

// Normalize converts one raw record. fallback is the separator appended to
// directory labels that carry none of their own; None means the host separator.
func Normalize(raw protocol.RawCompletion, replacementIndex, replacementLength int, fallback Separator) termsuggest.CompletionItem {
	label := raw.Text
	if raw.Kind == termsuggest.KindDirectory && needsTrailingSeparator(label) {
		sep, ok := DetectSeparator(label)
		if !ok {
			sep = fallback.Or(HostSeparator())
		}
		label += sep.String()
	}

	detail := label
	if raw.Tooltip != nil {
		detail = *raw.Tooltip
	}

	// The icon keeps the original kind; flags use the reclassified one.
	icon := iconFor(raw.Kind, raw.CustomIcon)
	kind := raw.Kind
	if kind == termsuggest.KindCommand && hasShortExtension(raw.Text) {
		kind = termsuggest.KindFile
	}

	return termsuggest.CompletionItem{
		Label:             label,
		Detail:            detail,
		Icon:              icon,
		IsFile:            kind == termsuggest.KindFile,
		IsDirectory:       kind == termsuggest.KindDirectory,
		IsKeyword:         kind.IsKeyword(),
		ReplacementIndex:  replacementIndex,
		ReplacementLength: replacementLength,
	}
}

// Batch normalizes every record with the same replacement span.
// The result is never nil.
func Batch(raws []protocol.RawCompletion, replacementIndex, replacementLength int, fallback Separator) []termsuggest.CompletionItem {
	items := make([]termsuggest.CompletionItem, 0, len(raws))
	for _, raw := range raws {
		items = append(items, Normalize(raw, replacementIndex, replacementLength, fallback))
	}
	return items
}

// needsTrailingSeparator reports whether a directory label should get a separator.
// Relative markers and the stack shortcuts are passed as arguments, not navigated.
func needsTrailingSeparator(label string) bool {
	switch label {
	case "", ".", "..", "-", "+":
		return false
	}
	return !HasTrailingSeparator(label)
}

// hasShortExtension reports whether name ends in "." followed by 2 to 4 ASCII letters or digits.
func hasShortExtension(name string) bool {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return false
	}
	ext := name[dot+1:]
	if len(ext) < 2 || len(ext) > 4 {
		return false
	}
	for i := 0; i < len(ext); i++ {
		c := ext[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
