// Package repl is an interactive harness for the completion addon.
//
// It plays the shell's side of the protocol: trigger sequences written by the
// addon are answered with canned Completions messages, so the shaping and
// accept logic can be exercised without a live shell. Results are written to
// stdout as TOML, one document per round.
package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	termsuggest "github.com/Paranoid-AF/termsuggest"
	"github.com/Paranoid-AF/termsuggest/addon"
	"github.com/Paranoid-AF/termsuggest/cache"
)

const prompt = "> "

// Options configures Run.
type Options struct {
	Cache   *cache.GlobalCommands
	Config  *termsuggest.Config
	Logger  *zap.Logger
	Stdout  *os.File
	Timeout time.Duration
}

// Run reads lines from the terminal until :quit, Ctrl-C or Ctrl-D.
func Run(ctx context.Context, opts Options) error {
	editor, err := NewEditor()
	if err != nil {
		return err
	}
	defer editor.Close()

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	r := newREPL(opts, editor.Tty(), termWriter(stdout))
	defer r.close()

	tty := editor.Tty()
	fmt.Fprintf(tty, "\033[2J\033[H")
	fmt.Fprintf(tty, "termsuggest repl\r\n")
	fmt.Fprintf(tty, "\r\ncommands:\r\n")
	fmt.Fprintf(tty, "  :load <file>     feed a captured terminal transcript\r\n")
	fmt.Fprintf(tty, "  :respond <data>  answer the next request with a Completions message\r\n")
	fmt.Fprintf(tty, "  :cache           list cached global commands\r\n")
	fmt.Fprintf(tty, "  :clear           clear the global command cache\r\n")
	fmt.Fprintf(tty, "  :quit            exit\r\n\r\n")

	for {
		text, cursor, err := editor.ReadLine(prompt, func(text string, cursor int) []byte {
			return r.tab(ctx, text, cursor)
		})
		if errors.Is(err, io.EOF) || errors.Is(err, ErrInterrupt) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read line")
		}
		if quit := r.line(ctx, text, cursor); quit {
			return nil
		}
	}
}

type repl struct {
	session *session
	cache   *cache.GlobalCommands
	tty     io.Writer
	out     io.Writer
}

func newREPL(opts Options, tty, out io.Writer) *repl {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	shell := newTriggerLog()
	a := addon.New(addon.Options{
		Shell:  shell,
		Cache:  opts.Cache,
		Config: opts.Config,
		Logger: opts.Logger,
	})
	return &repl{
		session: &session{addon: a, shell: shell, timeout: timeout},
		cache:   opts.Cache,
		tty:     tty,
		out:     out,
	}
}

func (r *repl) close() {
	r.session.addon.Close()
}

// tab completes the line and returns the keys that accept the first candidate.
func (r *repl) tab(ctx context.Context, text string, cursor int) []byte {
	_, items, err := r.session.complete(ctx, text, cursor)
	if err != nil || len(items) == 0 {
		return nil
	}
	return r.session.addon.Accept(items[0])
}

// line handles one entered line and reports whether the REPL should exit.
func (r *repl) line(ctx context.Context, text string, cursor int) bool {
	cmd, arg, _ := strings.Cut(text, " ")
	switch cmd {
	case "":
		return false
	case ":quit", ":q":
		return true
	case ":respond":
		r.session.respond = arg
		fmt.Fprintf(r.tty, "next response queued\r\n\r\n")
		return false
	case ":load":
		r.load(ctx, strings.TrimSpace(arg))
		return false
	case ":clear":
		if err := r.session.addon.ClearCache(ctx); err != nil {
			fmt.Fprintf(r.tty, "error: %v\r\n", err)
		}
		return false
	case ":cache":
		r.listCache(ctx)
		return false
	}

	entry, _, err := r.session.complete(ctx, text, cursor)
	if err != nil {
		fmt.Fprintf(r.tty, "error: %v\r\n\r\n", err)
		return false
	}
	writeCandidates(r.tty, entry)
	if err := writeEntry(r.out, entry); err != nil {
		fmt.Fprintf(r.tty, "error: %v\r\n", err)
	}
	return false
}

func (r *repl) load(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(r.tty, "error: %v\r\n", err)
		return
	}
	a := r.session.addon
	passed := len(a.Feed(ctx, data)) + len(a.Flush(ctx))
	fmt.Fprintf(r.tty, "loaded %s (%d bytes passed through)\r\n\r\n", path, passed)
}

func (r *repl) listCache(ctx context.Context) {
	if r.cache == nil {
		fmt.Fprintf(r.tty, "(cache is private to this session)\r\n\r\n")
		return
	}
	items := r.cache.Snapshot(ctx)
	for _, it := range items {
		fmt.Fprintf(r.tty, "  %s %s\r\n", it.Icon, it.Label)
	}
	fmt.Fprintf(r.tty, "%d global commands\r\n\r\n", len(items))
}
