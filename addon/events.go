package addon

import termsuggest "github.com/Paranoid-AF/termsuggest"

// EventType names what happened.
type EventType int

const (
	// CompletionsReceived fires after an inbound batch is shaped.
	CompletionsReceived EventType = iota
	// CompletionsRequested fires when the contextual trigger is sent.
	CompletionsRequested
	// SuggestionAccepted carries the bytes the host writes to the shell.
	SuggestionAccepted
	// Bell is a BEL outside any shell integration frame.
	Bell
)

func (t EventType) String() string {
	switch t {
	case CompletionsReceived:
		return "completions_received"
	case CompletionsRequested:
		return "completions_requested"
	case SuggestionAccepted:
		return "suggestion_accepted"
	case Bell:
		return "bell"
	}
	return "unknown"
}

// Event is delivered to listeners after the addon lock is released.
type Event struct {
	Type  EventType
	Data  []byte
	Items []termsuggest.CompletionItem
}

// Listener receives events. It must not block for long; the session waits.
type Listener func(Event)
