package main

import (
	"github.com/spf13/cobra"

	"frametrace/internal/analyzer"
)

func newSamplesCmd(a *app) *cobra.Command {
	var threads []string

	cmd := &cobra.Command{
		Use:   "samples <trace.json>",
		Short: "Dump resolved samples (innermost frame first) as JSON",
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
			return writeJSON(cmd.OutOrStdout(), analyzer.DumpSamples(profile, nil, c, threads...))
		},
	}

	cmd.Flags().StringSliceVar(&threads, "thread", nil, "only dump these threads (repeatable)")
	return cmd
}
