package protocol

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Command is the leading token of a shell integration message.
type Command string

const (
	// CommandCompletions carries the answer to one completion request.
	CommandCompletions Command = "Completions"
	// CommandGlobalCommands carries the full list of global commands.
	CommandGlobalCommands Command = "CompletionsPwshCommands"
)

// Message is a recognized shell integration message.
type Message interface {
	Command() Command
}

// CompletionsMessage answers a completion request.
type CompletionsMessage struct {
	// ReplacementIndex and ReplacementLength are the span supplied by the shell.
	ReplacementIndex  int
	ReplacementLength int
	Completions       []RawCompletion
}

func (*CompletionsMessage) Command() Command { return CommandCompletions }

// GlobalCommandsMessage replaces the global command list.
type GlobalCommandsMessage struct {
	BatchType   string
	Completions []RawCompletion
}

func (*GlobalCommandsMessage) Command() Command { return CommandGlobalCommands }

// ParseMessage parses the data of one shell integration frame.
//
//	Completions;<unused>;<replacementIndex>;<replacementLength>;<payload>
//	CompletionsPwshCommands;<batchType>;<payload>
//
// The payload is everything after the last positional separator and may contain ';'.
// ok is false when the command is not one handled here; err is non-nil only for
// recognized commands whose arguments or payload are malformed.
func ParseMessage(data string) (msg Message, ok bool, err error) {
	command, _, _ := strings.Cut(data, ";")
	switch Command(command) {
	case CommandCompletions:
		m, err := parseCompletions(data)
		if err != nil {
			return nil, true, err
		}
		return m, true, nil
	case CommandGlobalCommands:
		m, err := parseGlobalCommands(data)
		if err != nil {
			return nil, true, err
		}
		return m, true, nil
	}
	return nil, false, nil
}

func parseCompletions(data string) (*CompletionsMessage, error) {
	parts := strings.SplitN(data, ";", 5)
	m := &CompletionsMessage{}

	// A bare command carries no span and no completions.
	if len(parts) > 2 {
		idx, err := parseSpanArg(parts[2], "replacement index")
		if err != nil {
			return nil, err
		}
		m.ReplacementIndex = idx
	}
	if len(parts) > 3 {
		length, err := parseSpanArg(parts[3], "replacement length")
		if err != nil {
			return nil, err
		}
		m.ReplacementLength = length
	}

	var payload string
	if len(parts) > 4 {
		payload = parts[4]
	}
	completions, err := Decode(payload)
	if err != nil {
		return nil, errors.WithDetailf(err, "payload: %s", truncatePayload(payload))
	}
	m.Completions = completions
	return m, nil
}

func parseGlobalCommands(data string) (*GlobalCommandsMessage, error) {
	parts := strings.SplitN(data, ";", 3)
	if len(parts) < 3 || strings.TrimSpace(parts[2]) == "" {
		return nil, decodeErrorf("%s: missing payload", CommandGlobalCommands)
	}
	completions, err := Decode(parts[2])
	if err != nil {
		return nil, errors.WithDetailf(err, "payload: %s", truncatePayload(parts[2]))
	}
	return &GlobalCommandsMessage{BatchType: parts[1], Completions: completions}, nil
}

func parseSpanArg(s, name string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, wrapDecodeError(err, "%s %q", name, s)
	}
	if n < 0 {
		return 0, decodeErrorf("%s %d is negative", name, n)
	}
	return n, nil
}
