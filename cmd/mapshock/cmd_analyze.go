package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mapshock/internal/orchestrate"
)

var (
	analyzeTimeout  time.Duration
	analyzeProgress bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze \"<query>\"",
	Short: "Run one analysis and print the result as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := buildComponents()
		if err != nil {
			return err
		}
		defer comps.close()

		ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
		defer cancel()

		var progress orchestrate.ProgressFunc
		if analyzeProgress {
			progress = func(ev orchestrate.ProgressEvent) {
				if ev.Status == "completed" {
					fmt.Fprintf(os.Stderr, "  %-20s %s\n", ev.Stage, ev.Elapsed.Round(time.Millisecond))
				}
			}
		}

		res := comps.orchestrator.Run(ctx, strings.Join(args, " "), progress)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 5*time.Minute, "overall analysis deadline")
	analyzeCmd.Flags().BoolVar(&analyzeProgress, "progress", false, "print per-stage timings to stderr")
	rootCmd.AddCommand(analyzeCmd)
}
