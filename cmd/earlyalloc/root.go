package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/joshuapare/earlyalloc/internal/config"
	"github.com/joshuapare/earlyalloc/internal/logging"
	"github.com/joshuapare/earlyalloc/internal/report"
)

var (
	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	jsonOut   bool
	noArena   bool

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "earlyalloc",
	Short: "Exercise a boot-time dual-region bump allocator",
	Long: `earlyalloc drives the early allocator used before a kernel's real
memory manager is up. Bytes are carved upward from the start of a span and
pages downward from its end.

Scenario files script a boot sequence of allocations, frees, span
extensions and expectations; run replays them against real mapped memory
and reports any step that misbehaves.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./earlyalloc.yaml or ~/.earlyalloc/earlyalloc.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "human", "Log format (human or json)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noArena, "no-arena", false, "Run scenarios without backing memory")
}

// loadConfig merges flags, environment and the config file into cfg and
// sets up the global logger.
func loadConfig(cmd *cobra.Command, _ []string) error {
	v := config.New()

	flags := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("log.level", flags.Lookup("log-level")); err != nil {
		return err
	}
	if err := v.BindPFlag("log.format", flags.Lookup("log-format")); err != nil {
		return err
	}
	for key, name := range map[string]string{
		"span.start": "start",
		"span.size":  "size",
		"page_size":  "page-size",
	} {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	c, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if noArena {
		c.Arena.Enabled = false
	}

	if err := logging.Init(logging.Options{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		Out:    cmd.ErrOrStderr(),
	}); err != nil {
		return err
	}

	cfg = c
	log.Debug().
		Str("config", v.ConfigFileUsed()).
		Uint64("page_size", c.PageSize).
		Str("align", c.Align).
		Bool("arena", c.Arena.Enabled).
		Msg("configuration loaded")
	return nil
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// Helper functions for output

// printJSON outputs data as JSON
func printJSON(w io.Writer, v any) error {
	return report.JSON(w, v)
}
