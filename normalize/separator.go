package normalize

import (
	"os"
	"strings"
)

// Separator is a path separator character, or None.
type Separator byte

const (
	None      Separator = 0
	Slash     Separator = '/'
	Backslash Separator = '\\'
)

// HostSeparator returns the separator of the platform this process runs on.
func HostSeparator() Separator {
	return Separator(os.PathSeparator)
}

// String returns the separator as text; None is empty.
func (s Separator) String() string {
	if s == None {
		return ""
	}
	return string(rune(s))
}

// Or returns s, or fallback when s is None.
func (s Separator) Or(fallback Separator) Separator {
	if s == None {
		return fallback
	}
	return s
}

// DetectSeparator returns the first path separator found in s.
func DetectSeparator(s string) (Separator, bool) {
	i := strings.IndexAny(s, `/\`)
	if i < 0 {
		return None, false
	}
	return Separator(s[i]), true
}

// HasTrailingSeparator reports whether s ends in a path separator.
func HasTrailingSeparator(s string) bool {
	if s == "" {
		return false
	}
	last := s[len(s)-1]
	return last == '/' || last == '\\'
}

// ReplaceSeparators rewrites every path separator in s to sep.
func ReplaceSeparators(s string, sep Separator) string {
	if sep == None {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '/' || s[i] == '\\' {
			b.WriteByte(byte(sep))
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
