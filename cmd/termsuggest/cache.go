package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	termsuggest "github.com/Paranoid-AF/termsuggest"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the global command cache",
	}
	cmd.AddCommand(newCacheShowCmd(), newCacheClearCmd())
	return cmd
}

func newCacheShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List cached global commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			items := c.Snapshot(cmd.Context())
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No cached global commands.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", it.Label, it.Icon, it.Detail)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d commands (%s backend)\n", len(items), termsuggest.ResolveCacheBackend(cfg))
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove cached global commands from memory and storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if err := c.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Global command cache cleared.")
			return nil
		},
	}
}
