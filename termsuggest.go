// Package termsuggest defines the shared completion types and the daemon wire frames.
// Daemon messages are JSON-encoded and sent over a Unix domain socket, one per line.
package termsuggest

// ResultKind is the shell's classification of a completion result.
// The set is closed; codes outside it are still carried but render with the default icon.
type ResultKind int

const (
	KindText           ResultKind = 0
	KindHistory        ResultKind = 1
	KindCommand        ResultKind = 2 // method or executable candidate
	KindFile           ResultKind = 3
	KindDirectory      ResultKind = 4
	KindProperty       ResultKind = 5
	KindMethod         ResultKind = 6
	KindParameterName  ResultKind = 7
	KindParameterValue ResultKind = 8
	KindVariable       ResultKind = 9
	KindNamespace      ResultKind = 10
	KindType           ResultKind = 11
	KindKeyword        ResultKind = 12
	KindDynamicKeyword ResultKind = 13
)

// IsKeyword reports whether k is one of the keyword sub-codes.
func (k ResultKind) IsKeyword() bool {
	return k == KindKeyword || k == KindDynamicKeyword
}

// Icon names the glyph a UI renders next to a completion.
type Icon string

const (
	IconSymbolText      Icon = "symbol-text"
	IconHistory         Icon = "history"
	IconSymbolMethod    Icon = "symbol-method"
	IconSymbolFile      Icon = "symbol-file"
	IconFolder          Icon = "folder"
	IconSymbolProperty  Icon = "symbol-property"
	IconSymbolVariable  Icon = "symbol-variable"
	IconSymbolValue     Icon = "symbol-value"
	IconSymbolNamespace Icon = "symbol-namespace"
	IconSymbolInterface Icon = "symbol-interface"
	IconSymbolKeyword   Icon = "symbol-keyword"
)

// CompletionItem is a normalized completion ready for ranking and rendering.
type CompletionItem struct {
	// Label is the text inserted on acceptance.
	Label string `json:"label"`
	// Detail is the secondary text shown next to the label.
	Detail string `json:"detail"`
	Icon   Icon   `json:"icon"`

	// At most one of the flags below is set.
	IsFile      bool `json:"isFile,omitempty"`
	IsDirectory bool `json:"isDirectory,omitempty"`
	IsKeyword   bool `json:"isKeyword,omitempty"`

	// ReplacementIndex and ReplacementLength are the half-open span of the
	// input line replaced when the item is accepted.
	ReplacementIndex  int `json:"replacementIndex"`
	ReplacementLength int `json:"replacementLength"`
}

// PromptSnapshot is a read-only view of the live input line.
type PromptSnapshot struct {
	// Value is the whole input line, ghost text included.
	Value string `json:"value"`
	// Prefix is the input before the cursor.
	Prefix string `json:"prefix"`
	// Suffix is the input after the cursor, ghost text excluded.
	Suffix string `json:"suffix"`
	// CursorIndex is the cursor position within Value.
	CursorIndex int `json:"cursor_index"`
	// GhostTextIndex is where inline ghost text starts, or -1 when none is shown.
	GhostTextIndex int `json:"ghost_text_index"`
}

// LeadingText returns the input up to the cursor.
// Prefix wins when set; otherwise it is cut from Value.
func (s PromptSnapshot) LeadingText() string {
	if s.Prefix != "" {
		return s.Prefix
	}
	end := s.CursorIndex
	if end > len(s.Value) {
		end = len(s.Value)
	}
	if end < 0 {
		end = 0
	}
	return s.Value[:end]
}

// InputEnd returns the end of real (non-ghost) input.
func (s PromptSnapshot) InputEnd() int {
	if s.GhostTextIndex >= 0 && s.GhostTextIndex < len(s.Value) {
		return s.GhostTextIndex
	}
	return len(s.Value)
}

// Frame is sent from the host terminal to the daemon.
type Frame struct {
	// Type is one of "output", "prompt", "focus", "keystroke", "request", "accept", "clear_cache".
	Type string `json:"type"`
	// Data carries raw terminal output for "output" frames.
	Data []byte `json:"data,omitempty"`
	// Prompt carries the current input line for "prompt" frames.
	Prompt *PromptSnapshot `json:"prompt,omitempty"`
	// Focused carries focus state for "focus" frames.
	Focused bool `json:"focused,omitempty"`
	// RequestID is assigned by the host to "request" frames and echoed in the reply.
	RequestID int `json:"request_id,omitempty"`
	// Item is the accepted completion for "accept" frames.
	Item *CompletionItem `json:"item,omitempty"`
}

// Reply is sent from the daemon back to the host terminal.
type Reply struct {
	// Event is one of "write", "completions", "completions_received",
	// "completions_requested", "bell", "error".
	Event string `json:"event"`
	// Data holds the bytes the host must write to the shell for "write" events.
	Data []byte `json:"data,omitempty"`
	// RequestID echoes the request for "completions" events.
	RequestID int `json:"request_id,omitempty"`
	// Items is the completion list for "completions" events.
	Items []CompletionItem `json:"items,omitempty"`
	// Available is false when no suggestions can be shown (terminal unfocused or detached).
	// An available reply with no items means the shell had nothing to offer.
	Available bool `json:"available,omitempty"`
	// Error is set for "error" events.
	Error *Error `json:"error,omitempty"`
}

// Error describes a daemon-side error returned to the host.
type Error struct {
	// Code is a machine-readable error identifier (e.g. "invalid_frame", "decode_error").
	Code string `json:"code"`
	// Message is a human-readable error description.
	Message string `json:"message"`
}
