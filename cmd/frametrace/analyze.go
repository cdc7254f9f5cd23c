package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"frametrace/internal/analyzer"
	"frametrace/internal/phase"
	"frametrace/internal/stack"
	"frametrace/internal/timeline"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		asJSON   bool
		hotspots int
	)

	cmd := &cobra.Command{
		Use:   "analyze <trace.json>",
		Short: "Detect frames on the analysis thread and report frame times",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := a.loadProfile(args[0])
			if err != nil {
				return err
			}
			an, err := a.newAnalyzer(a.cfg.AnalyzerOptions())
			if err != nil {
				return err
			}
			resolvers := stack.NewSet(profile)
			report, err := an.AnalyzeWith(profile, resolvers)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, report)
			}
			fmt.Fprint(out, analyzer.FormatReport(report))
			if hotspots > 0 {
				res, _ := resolvers.Lookup(report.Thread)
				writeHotspots(out, res, report.Points, hotspots)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the report as JSON")
	cmd.Flags().IntVar(&hotspots, "hotspots", 0, "also list the top N leaf functions per phase")
	return cmd
}

func writeHotspots(w io.Writer, res *stack.Resolver, points []timeline.Point, topN int) {
	hot := analyzer.FindPhaseHotspots(res, points, topN)

	var sb strings.Builder
	sb.WriteString("\n🔥 PHASE HOTSPOTS (Leaf Functions)\n")
	for _, p := range append(append([]phase.Phase{}, phase.Priority...), phase.Other) {
		list := hot[p]
		if len(list) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n%s:\n", p))
		for i, hs := range list {
			sb.WriteString(analyzer.FormatHotspot(hs, i+1))
		}
	}
	fmt.Fprint(w, sb.String())
}
