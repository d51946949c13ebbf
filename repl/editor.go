package repl

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"golang.org/x/term"
)

// ErrInterrupt is returned when the user presses Ctrl-C.
var ErrInterrupt = errors.New("interrupted")

// CompleteFunc is called on Tab with the current line and cursor. It returns
// keystrokes to apply to the line, as a shell would receive them.
type CompleteFunc func(text string, cursor int) []byte

// Editor is a minimal line editor with cursor tracking and history.
// It reads from /dev/tty so it works even when stdout is redirected.
type Editor struct {
	tty      *os.File
	oldState *term.State
	line     lineBuffer
	history  []string
}

// NewEditor opens /dev/tty and switches to raw mode.
func NewEditor() (*Editor, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrap(err, "open /dev/tty")
	}

	old, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		tty.Close()
		return nil, errors.Wrap(err, "raw mode")
	}

	return &Editor{tty: tty, oldState: old}, nil
}

// Close restores terminal state and closes the tty fd.
func (e *Editor) Close() {
	term.Restore(int(e.tty.Fd()), e.oldState)
	e.tty.Close()
}

// Tty returns the tty file for writing prompts/UI.
func (e *Editor) Tty() *os.File {
	return e.tty
}

// ReadLine displays the prompt and reads a line. Tab calls complete.
// Returns io.EOF when the user presses Ctrl-D on empty input.
func (e *Editor) ReadLine(prompt string, complete CompleteFunc) (text string, cursor int, err error) {
	e.line.reset("")
	hist := len(e.history)
	e.redraw(prompt)

	var esc [8]byte

	for {
		var b [1]byte
		if _, err := e.tty.Read(b[:]); err != nil {
			return "", 0, err
		}

		switch b[0] {
		case 3: // Ctrl-C
			fmt.Fprintf(e.tty, "\r\n")
			return "", 0, ErrInterrupt

		case 4: // Ctrl-D
			if e.line.empty() {
				fmt.Fprintf(e.tty, "\r\n")
				return "", 0, io.EOF
			}

		case 13, 10: // Enter
			fmt.Fprintf(e.tty, "\r\n")
			text := e.line.String()
			if text != "" {
				e.history = append(e.history, text)
			}
			return text, e.line.pos, nil

		case 9: // Tab
			if complete != nil {
				keys := complete(e.line.String(), e.line.pos)
				e.line.apply(keys)
			}

		case 127, 8: // Backspace / Ctrl-H
			e.line.backspace()

		case 1: // Ctrl-A
			e.line.home()

		case 5: // Ctrl-E
			e.line.end()

		case 21: // Ctrl-U
			e.line.reset("")

		case 27:
			if n, _ := e.tty.Read(esc[:1]); n == 0 || esc[0] != '[' {
				continue
			}
			if n, _ := e.tty.Read(esc[1:2]); n == 0 {
				continue
			}
			switch esc[1] {
			case 'A': // Up
				if hist > 0 {
					hist--
					e.line.reset(e.history[hist])
				}
			case 'B': // Down
				if hist < len(e.history)-1 {
					hist++
					e.line.reset(e.history[hist])
				} else {
					hist = len(e.history)
					e.line.reset("")
				}
			case 'D':
				e.line.left()
			case 'C':
				e.line.right()
			case 'H':
				e.line.home()
			case 'F':
				e.line.end()
			case '3': // Delete: \x1b[3~
				e.tty.Read(esc[2:3])
				e.line.delete()
			}

		default:
			if b[0] >= 32 {
				ch := []byte{b[0]}
				if b[0] >= 0xC0 {
					tmp := make([]byte, utf8RuneLen(b[0])-1)
					e.tty.Read(tmp)
					ch = append(ch, tmp...)
				}
				e.line.insert(ch)
			}
		}

		e.redraw(prompt)
	}
}

// redraw clears the current line and redraws prompt + buffer with cursor.
func (e *Editor) redraw(prompt string) {
	fmt.Fprintf(e.tty, "\r\x1b[K%s%s", prompt, e.line.String())
	if tail := utf8.RuneCount(e.line.buf[e.line.pos:]); tail > 0 {
		fmt.Fprintf(e.tty, "\x1b[%dD", tail)
	}
}

// lineBuffer is the edited line; pos is a byte offset at a rune boundary.
type lineBuffer struct {
	buf []byte
	pos int
}

func (l *lineBuffer) String() string { return string(l.buf) }

func (l *lineBuffer) empty() bool { return len(l.buf) == 0 }

func (l *lineBuffer) reset(s string) {
	l.buf = append(l.buf[:0], s...)
	l.pos = len(l.buf)
}

func (l *lineBuffer) insert(ch []byte) {
	l.buf = append(l.buf, make([]byte, len(ch))...)
	copy(l.buf[l.pos+len(ch):], l.buf[l.pos:len(l.buf)-len(ch)])
	copy(l.buf[l.pos:], ch)
	l.pos += len(ch)
}

func (l *lineBuffer) backspace() {
	if l.pos == 0 {
		return
	}
	size := prevRuneLen(l.buf, l.pos)
	copy(l.buf[l.pos-size:], l.buf[l.pos:])
	l.buf = l.buf[:len(l.buf)-size]
	l.pos -= size
}

func (l *lineBuffer) delete() {
	if l.pos >= len(l.buf) {
		return
	}
	_, size := utf8.DecodeRune(l.buf[l.pos:])
	copy(l.buf[l.pos:], l.buf[l.pos+size:])
	l.buf = l.buf[:len(l.buf)-size]
}

func (l *lineBuffer) left() {
	if l.pos > 0 {
		l.pos -= prevRuneLen(l.buf, l.pos)
	}
}

func (l *lineBuffer) right() {
	if l.pos < len(l.buf) {
		_, size := utf8.DecodeRune(l.buf[l.pos:])
		l.pos += size
	}
}

func (l *lineBuffer) home() { l.pos = 0 }

func (l *lineBuffer) end() { l.pos = len(l.buf) }

// apply interprets keystrokes the way a line-editing shell does: arrow
// sequences move, DEL erases, printable text is inserted.
func (l *lineBuffer) apply(keys []byte) {
	for i := 0; i < len(keys); {
		switch {
		case keys[i] == 0x1b && i+2 < len(keys) && keys[i+1] == '[':
			switch keys[i+2] {
			case 'C':
				l.right()
			case 'D':
				l.left()
			}
			i += 3
		case keys[i] == 127 || keys[i] == 8:
			l.backspace()
			i++
		case keys[i] < 32:
			i++
		default:
			_, size := utf8.DecodeRune(keys[i:])
			l.insert(keys[i : i+size])
			i += size
		}
	}
}

// prevRuneLen returns the byte size of the rune before pos.
func prevRuneLen(buf []byte, pos int) int {
	i := pos - 1
	for i > 0 && !utf8.RuneStart(buf[i]) {
		i--
	}
	_, size := utf8.DecodeRune(buf[i:pos])
	return size
}

// utf8RuneLen returns the expected byte length of a UTF-8 sequence
// from its leading byte.
func utf8RuneLen(lead byte) int {
	if lead < 0xC0 {
		return 1
	}
	if lead < 0xE0 {
		return 2
	}
	if lead < 0xF0 {
		return 3
	}
	return 4
}
