package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"frametrace/internal/analyzer"
)

func newThreadsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "threads <trace.json>",
		Short: "Summarize every thread of a trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := a.loadProfile(args[0])
			if err != nil {
				return err
			}
			c, err := a.cfg.BuildClassifier()
			if err != nil {
				return err
			}
			stats, err := analyzer.SummarizeThreads(cmd.Context(), profile, nil, c, a.cfg.Analysis.Workers)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			fmt.Fprint(cmd.OutOrStdout(), analyzer.FormatThreadStatistics(stats))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit statistics as JSON")
	return cmd
}
