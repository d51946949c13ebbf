package protocol

// Trigger is a key sequence written to the shell's input to make the
// integration script emit completions. Each is fire-and-forget.
type Trigger string

const (
	// TriggerContextual requests completions for the current cursor position.
	TriggerContextual Trigger = "\x1b[24~e"
	// TriggerGlobal requests the full global command list.
	TriggerGlobal Trigger = "\x1b[24~f"
	// TriggerGit enables the shell's git completion source.
	TriggerGit Trigger = "\x1b[24~g"
	// TriggerCode enables the shell's editor-command completion source.
	TriggerCode Trigger = "\x1b[24~h"
)

// Bytes returns the sequence to write.
func (t Trigger) Bytes() []byte {
	return []byte(t)
}

func (t Trigger) String() string {
	switch t {
	case TriggerContextual:
		return "contextual"
	case TriggerGlobal:
		return "global"
	case TriggerGit:
		return "git"
	case TriggerCode:
		return "code"
	}
	return "unknown"
}
