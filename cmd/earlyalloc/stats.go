package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/earlyalloc/alloc"
	"github.com/joshuapare/earlyalloc/internal/report"
)

var (
	statsBytes uint64
	statsPages uint64
)

func init() {
	cmd := newStatsCmd()
	cmd.Flags().Uint64("start", 0, "Span start address (default from config)")
	cmd.Flags().Uint64("size", 0, "Span size in bytes (default from config)")
	cmd.Flags().Uint64("page-size", 0, "Page size, a power of two (default from config)")
	cmd.Flags().Uint64Var(&statsBytes, "bytes", 0, "Allocate this many bytes before reporting")
	cmd.Flags().Uint64Var(&statsPages, "pages", 0, "Allocate this many pages before reporting")
	rootCmd.AddCommand(cmd)
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the accounting of a span",
		Long: `The stats command initialises an allocator over a span and prints its
byte and page accounting, optionally after carving some bytes and pages.
Numbers accept 0x prefixes.

Example:
  earlyalloc stats
  earlyalloc stats --start 0x100000 --size 0x400000 --page-size 4096
  earlyalloc stats --bytes 1500 --pages 2 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd)
		},
	}
	return cmd
}

func runStats(cmd *cobra.Command) error {
	ea, err := alloc.NewEarly(uintptr(cfg.PageSize), cfg.AllocOptions()...)
	if err != nil {
		return fmt.Errorf("page size %d: %w", cfg.PageSize, err)
	}
	ea.Init(uintptr(cfg.Span.Start), uintptr(cfg.Span.Size))

	if statsBytes > 0 {
		if _, err := ea.Alloc(alloc.Layout{Size: uintptr(statsBytes), Align: 1}); err != nil {
			return fmt.Errorf("allocate %d bytes: %w", statsBytes, err)
		}
	}
	if statsPages > 0 {
		if _, err := ea.AllocPages(uintptr(statsPages), 1); err != nil {
			return fmt.Errorf("allocate %d pages: %w", statsPages, err)
		}
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), ea.Stats())
	}
	report.New(cmd.OutOrStdout()).Stats(ea.Stats())
	return nil
}
