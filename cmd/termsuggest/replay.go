package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	termsuggest "github.com/Paranoid-AF/termsuggest"
	"github.com/Paranoid-AF/termsuggest/cache"
	"github.com/Paranoid-AF/termsuggest/normalize"
	"github.com/Paranoid-AF/termsuggest/protocol"
)

func newReplayCmd() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "replay <transcript>",
		Short: "Decode the shell integration messages in a recorded terminal stream",
		Long: "Replay scans a raw terminal recording (for example from script(1)) and prints\n" +
			"every completion message as TOML. With --apply, the last global command list\n" +
			"replaces the cached one.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "read transcript %s", args[0])
			}

			var shared *cache.GlobalCommands
			if apply {
				cfg, err := termsuggest.LoadConfig()
				if err != nil {
					return err
				}
				logger := newLogger(cfg, false)
				defer logger.Sync()
				c, st, err := openCache(cfg, logger)
				if err != nil {
					return err
				}
				defer st.Close()
				defer c.Close()
				shared = c
			}
			return replay(cmd.Context(), cmd.OutOrStdout(), data, shared)
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Store the last global command list in the cache")
	return cmd
}

type replayEntry struct {
	Index             int          `toml:"index"`
	Command           string       `toml:"command"`
	BatchType         string       `toml:"batch_type,omitempty"`
	ReplacementIndex  int          `toml:"replacement_index"`
	ReplacementLength int          `toml:"replacement_length"`
	Error             string       `toml:"error,omitempty"`
	Items             []replayItem `toml:"items,omitempty"`
}

type replayItem struct {
	Label       string `toml:"label"`
	Detail      string `toml:"detail"`
	Icon        string `toml:"icon"`
	IsFile      bool   `toml:"is_file,omitempty"`
	IsDirectory bool   `toml:"is_directory,omitempty"`
	IsKeyword   bool   `toml:"is_keyword,omitempty"`
}

// replay prints every recognized message in data. When shared is non-nil the
// last global command list replaces its contents.
func replay(ctx context.Context, w io.Writer, data []byte, shared *cache.GlobalCommands) error {
	var sc protocol.Scanner
	segs := append(sc.Feed(data), sc.Flush()...)

	var (
		n       int
		globals []termsuggest.CompletionItem
	)
	enc := toml.NewEncoder(w)
	for _, seg := range segs {
		if seg.Kind != protocol.SegmentSequence {
			continue
		}
		msg, ok, err := protocol.ParseMessage(string(seg.Data))
		if !ok {
			continue
		}
		n++
		entry := replayEntry{Index: n}
		if err != nil {
			command, _, _ := strings.Cut(string(seg.Data), ";")
			entry.Command = command
			entry.Error = err.Error()
		} else {
			entry.Command = string(msg.Command())
			var items []termsuggest.CompletionItem
			switch m := msg.(type) {
			case *protocol.CompletionsMessage:
				entry.ReplacementIndex = m.ReplacementIndex
				entry.ReplacementLength = m.ReplacementLength
				items = normalize.Batch(m.Completions, m.ReplacementIndex, m.ReplacementLength, normalize.None)
			case *protocol.GlobalCommandsMessage:
				entry.BatchType = m.BatchType
				items = normalize.Batch(m.Completions, 0, 0, normalize.None)
				globals = items
			}
			for _, it := range items {
				entry.Items = append(entry.Items, replayItem{
					Label:       it.Label,
					Detail:      it.Detail,
					Icon:        string(it.Icon),
					IsFile:      it.IsFile,
					IsDirectory: it.IsDirectory,
					IsKeyword:   it.IsKeyword,
				})
			}
		}

		if _, err := fmt.Fprintf(w, "# %s\n\n", strings.Repeat("═", 60)); err != nil {
			return err
		}
		if err := enc.Encode(entry); err != nil {
			return errors.Wrap(err, "encode message")
		}
		fmt.Fprintln(w)
	}

	if n == 0 {
		fmt.Fprintln(w, "# no shell integration messages found")
	}
	if shared == nil || globals == nil {
		return nil
	}
	if err := shared.Replace(ctx, globals); err != nil {
		return err
	}
	fmt.Fprintf(w, "# applied %d global commands\n", len(globals))
	return nil
}
