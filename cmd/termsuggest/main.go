// Command termsuggest is the terminal completion daemon and its tooling.
//
// Usage:
//
//	termsuggest serve                 # listen for terminal sessions
//	termsuggest replay session.raw    # decode a recorded terminal stream
//	termsuggest cache show            # list cached global commands
//	termsuggest repl > log.toml       # interactive harness, TOML to file
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	termsuggest "github.com/Paranoid-AF/termsuggest"
	"github.com/Paranoid-AF/termsuggest/cache"
	"github.com/Paranoid-AF/termsuggest/internal/logging"
	"github.com/Paranoid-AF/termsuggest/repl"
	"github.com/Paranoid-AF/termsuggest/serve"
	"github.com/Paranoid-AF/termsuggest/store"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "termsuggest",
		Short:         "Shell-integrated terminal completions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newReplayCmd(),
		newCacheCmd(),
		newREPLCmd(),
		newVersionCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	var (
		socket  string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve completion sessions on a Unix socket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if socket == "" {
				socket = serve.ResolveSocketPath()
			}
			return runServe(cmd.Context(), socket, verbose)
		},
	}
	cmd.Flags().StringVar(&socket, "socket", "", "Socket path (default from $TERMSUGGEST_SOCKET or the runtime dir)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	return cmd
}

func runServe(ctx context.Context, socket string, verbose bool) error {
	cfg, err := termsuggest.LoadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, verbose)
	defer logger.Sync()
	for _, w := range termsuggest.ValidateConfig(cfg) {
		logger.Warn("config warning", zap.String("warning", w))
	}

	shared, st, err := openCache(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	defer shared.Close()

	srv, err := serve.NewServer(socket, shared, cfg, logger)
	if err != nil {
		return err
	}

	watcher, err := termsuggest.NewConfigWatcher(termsuggest.ConfigPath(), srv.ApplyConfig, logger)
	if err != nil {
		logger.Warn("config hot-reload disabled", zap.Error(err))
	} else {
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		srv.Close()
	}()

	logger.Info("ready", zap.String("socket", socket), zap.String("version", Version))
	return srv.Serve()
}

func newREPLCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive completion harness; results go to stdout as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := termsuggest.LoadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, false)
			defer logger.Sync()

			shared, st, err := openCache(cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			defer shared.Close()

			return repl.Run(cmd.Context(), repl.Options{
				Cache:   shared,
				Config:  cfg,
				Logger:  logger,
				Timeout: timeout,
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "How long to wait for each round")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "termsuggest", Version)
		},
	}
}

func newLogger(cfg *termsuggest.Config, verbose bool) *zap.Logger {
	level := termsuggest.ResolveLogLevel(cfg)
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Options{Level: level, JSON: cfg.Log.JSON})
}

// openCache opens the configured store and the global command cache over it.
// Both must be closed by the caller.
func openCache(cfg *termsuggest.Config, logger *zap.Logger) (*cache.GlobalCommands, store.Store, error) {
	st, err := store.Open(termsuggest.ResolveCacheBackend(cfg), termsuggest.StateDir())
	if err != nil {
		return nil, nil, err
	}
	c := cache.New(st, cache.Options{
		TTL:    time.Duration(cfg.Cache.TTLMinutes) * time.Minute,
		Logger: logger,
	})
	return c, st, nil
}
