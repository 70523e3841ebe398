package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/earlyalloc/internal/scenario"
)

func init() {
	rootCmd.AddCommand(newDemoCmd())
}

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the built-in walkthrough scenario",
		Long: `The demo command runs a built-in scenario over a 4KB span with 1KB
pages: a small byte allocation, one page, an allocation that collides with
the page region, then both frees and the return to an empty span.

Example:
  earlyalloc demo
  earlyalloc demo --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, scenario.Demo())
		},
	}
	return cmd
}
