package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/flowatch/internal/cmd/client"
	watchrun "github.com/rzbill/flowatch/internal/cmd/watch"
	cfgpkg "github.com/rzbill/flowatch/internal/config"
	"github.com/rzbill/flowatch/internal/query"
	"github.com/rzbill/flowatch/internal/runtime"
	logpkg "github.com/rzbill/flowatch/pkg/log"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "flowatch",
		Short:        "Watch event sources and persist resumable positions",
		Long:         "flowatch delivers records from the bundled event log or a tailed file to actions, saving a bookmark after each one so a restart resumes where it left off.",
		SilenceUsage: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.String("config", os.Getenv("FLOWATCH_CONFIG"), "Config file (.json, .yaml or .yml)")
	pf.String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	pf.String("work-dir", "", "Directory relative bookmark locations resolve against (default: current directory)")
	pf.String("fsync", "", "Fsync mode: always|interval|never")
	pf.String("log-level", "", "Log level: debug|info|warn|error")
	pf.String("log-format", "", "Log format: text|json (default text)")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address (watch only)")
	pf.String("bookmark-backend", "", "Bookmark store: file|pebble")

	open := func(cmd *cobra.Command) (*runtime.Runtime, error) {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		return runtime.Open(runtime.Options{Config: cfg, Logger: logger})
	}

	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(clientcmd.NewLogCommand(open))
	rootCmd.AddCommand(clientcmd.NewBookmarkCommand(open))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func newWatchCommand() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a source and print each event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("source")
			path, _ := cmd.Flags().GetString("path")
			filter, _ := cmd.Flags().GetString("filter")
			location, _ := cmd.Flags().GetString("bookmark")
			tag, _ := cmd.Flags().GetString("tag")
			limit, _ := cmd.Flags().GetInt("limit")
			fresh, _ := cmd.Flags().GetBool("from-start")
			format, _ := cmd.Flags().GetString("format")

			req := runtime.WatchRequest{Filter: filter, Location: location, Tag: tag, IgnoreStored: fresh}
			switch {
			case name != "" && path != "":
				return fmt.Errorf("use either --source or --path, not both")
			case name != "":
				req.Identifier, req.Mode = name, query.ByName
			case path != "":
				req.Identifier, req.Mode = path, query.ByFilePath
			default:
				return fmt.Errorf("one of --source or --path is required")
			}

			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := watchrun.Run(cmd.Context(), watchrun.Options{
				Config:  cfg,
				Logger:  logger,
				Request: req,
				Limit:   limit,
				Out:     cmd.OutOrStdout(),
				Format:  format,
			}); err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		},
	}
	watchCmd.Flags().String("source", "", "Event log source name")
	watchCmd.Flags().String("path", "", "File to tail, one record per line")
	watchCmd.Flags().String("filter", "", "CEL filter expression (default: match all)")
	watchCmd.Flags().String("bookmark", "", "Bookmark location (default from config: ./flowatch.bookmark)")
	watchCmd.Flags().String("tag", "", "Subscription tag (default from config: flowatch)")
	watchCmd.Flags().Int("limit", 0, "Stop after N events (0 = until interrupted)")
	watchCmd.Flags().String("format", watchrun.FormatJSON, "Output format: json|text")
	watchCmd.Flags().Bool("from-start", false, "Ignore any stored position and start from the beginning")
	return watchCmd
}

// loadConfig resolves defaults, then the config file, then FLOWATCH_* env,
// then flags, and builds the process logger.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, logpkg.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, nil, err
	}
	cfgpkg.FromEnv(&cfg)

	str := func(flag string, dst *string) {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			*dst = v
		}
	}
	str("data-dir", &cfg.DataDir)
	str("work-dir", &cfg.WorkDir)
	str("fsync", &cfg.Fsync)
	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	str("metrics-addr", &cfg.MetricsAddr)
	str("bookmark-backend", &cfg.Bookmark.Backend)
	if err := cfg.Validate(); err != nil {
		return cfgpkg.Config{}, nil, err
	}

	logger, err := logpkg.ApplyConfig(&cfg.Log)
	if err != nil {
		return cfgpkg.Config{}, nil, err
	}
	// Redirect standard library logs (used by Pebble) to our logger
	logpkg.RedirectStdLog(logger)
	return cfg, logger, nil
}
