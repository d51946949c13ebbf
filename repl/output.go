package repl

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"golang.org/x/term"
)

// termWriter wraps a file and converts \n to \r\n when the file is a terminal
// (raw mode disables the kernel's NL→CRNL translation).
// When the file is redirected, \n passes through unchanged.
func termWriter(f *os.File) io.Writer {
	if term.IsTerminal(int(f.Fd())) {
		return &crlfWriter{w: f}
	}
	return f
}

type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	_, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n")))
	return len(p), err
}

// writeEntry writes one round as a TOML document, preceded by a rule line.
func writeEntry(w io.Writer, e *Entry) error {
	if _, err := fmt.Fprintf(w, "# %s\n\n", strings.Repeat("═", 60)); err != nil {
		return err
	}
	if err := toml.NewEncoder(w).Encode(e); err != nil {
		return errors.Wrap(err, "encode entry")
	}
	_, err := fmt.Fprintln(w)
	return err
}

// writeCandidates prints a short summary for the tty.
func writeCandidates(w io.Writer, e *Entry) {
	switch {
	case e.Error != "":
		fmt.Fprintf(w, "error: %s\r\n", e.Error)
	case !e.Available:
		fmt.Fprintf(w, "(unavailable)\r\n")
	case len(e.Items) == 0:
		fmt.Fprintf(w, "(no candidates)\r\n")
	}
	for i, it := range e.Items {
		fmt.Fprintf(w, "  %d. %s %s", i+1, it.Icon, it.Label)
		if it.Detail != "" {
			fmt.Fprintf(w, "  %s", it.Detail)
		}
		fmt.Fprintf(w, "\r\n")
	}
	fmt.Fprintf(w, "\r\n")
}
