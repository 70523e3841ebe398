package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/joshuapare/earlyalloc/internal/logging"
	"github.com/joshuapare/earlyalloc/internal/report"
	"github.com/joshuapare/earlyalloc/internal/scenario"
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Replay a scenario file",
		Long: `The run command replays a scenario file against a fresh allocator and
prints the final accounting. Each live allocation is stamped with its own
byte pattern in mapped memory and checked when it is freed, so overlapping
allocations are caught.

The exit status is non-zero if any step misbehaves.

Example:
  earlyalloc run boot.yaml
  earlyalloc run boot.yaml --json
  earlyalloc run boot.yaml --log-level debug`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			return runScenario(cmd, sc)
		},
	}
	return cmd
}

// runScenario replays sc with the loaded configuration and prints the result.
func runScenario(cmd *cobra.Command, sc *scenario.Scenario) error {
	res, err := scenario.Run(cmd.Context(), sc,
		scenario.WithArena(cfg.Arena.Enabled),
		scenario.WithMaxArena(cfg.Arena.Max),
		scenario.WithLogger(log.Logger),
		scenario.WithTracer(logging.NewTracer(log.Logger)),
	)
	if err != nil {
		return fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	if jsonOut {
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		report.New(cmd.OutOrStdout()).Result(res)
	}

	if !res.OK() {
		return fmt.Errorf("scenario %s: %d step(s) failed", res.Name, len(res.Failures))
	}
	return nil
}
