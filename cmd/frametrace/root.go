package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"frametrace/internal/analyzer"
	"frametrace/internal/config"
	"frametrace/internal/gecko"
	"frametrace/internal/logging"
	"frametrace/internal/timeline"
)

// app carries the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	log        zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{log: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:           "frametrace",
		Short:         "Reconstruct game-loop frames from sampled-profiler traces",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.Stderr(cfg.Log.Level, cfg.Log.Pretty)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	pf.String("analysis.thread", analyzer.DefaultThread, "name of the thread to analyze")
	pf.Float64("analysis.merge_threshold_ms", timeline.DefaultMergeThreshold, "widest Render→Render gap folded into one run")
	pf.Int("analysis.merge_passes", timeline.DefaultMergePasses, "number of gap merge passes")
	pf.Float64("analysis.min_frame_ms", analyzer.DefaultMinFrame, "frames shorter than this are flagged")
	pf.Int("analysis.time_precision", gecko.DefaultPrecision, "decimal digits kept on relative times")
	pf.Int("analysis.workers", 0, "parallel workers for per-thread statistics (0 = GOMAXPROCS)")
	pf.String("log.level", "info", "log level (debug, info, warn, error)")
	pf.Bool("log.pretty", false, "human-readable console logs")

	cmd.AddCommand(
		newAnalyzeCmd(a),
		newThreadsCmd(a),
		newSamplesCmd(a),
		newServeCmd(a),
	)
	return cmd
}

func (a *app) loadProfile(path string) (*gecko.Profile, error) {
	profile, err := gecko.ReadProfile(path, gecko.WithPrecision(a.cfg.Analysis.TimePrecision))
	if err != nil {
		return nil, err
	}
	a.log.Debug().
		Str("file", path).
		Int("threads", len(profile.Threads)).
		Int("samples", profile.SampleCount()).
		Float64("origin", profile.Origin).
		Msg("trace loaded")
	return profile, nil
}

func (a *app) newAnalyzer(opts analyzer.Options) (*analyzer.Analyzer, error) {
	c, err := a.cfg.BuildClassifier()
	if err != nil {
		return nil, err
	}
	return analyzer.New(opts, analyzer.WithClassifier(c), analyzer.WithLogger(a.log)), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
