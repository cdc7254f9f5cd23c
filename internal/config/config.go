package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"frametrace/internal/analyzer"
	"frametrace/internal/gecko"
	"frametrace/internal/phase"
	"frametrace/internal/timeline"
)

// EnvPrefix prefixes every environment variable, e.g. FRAMETRACE_ANALYSIS_THREAD.
const EnvPrefix = "FRAMETRACE"

// Config stores all configuration of the application.
// The values are read by viper from a config file, environment variables or flags.
type Config struct {
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Log        LogConfig        `mapstructure:"log"`
}

// AnalysisConfig stores frame analysis tunables.
type AnalysisConfig struct {
	Thread           string  `mapstructure:"thread"`
	MergeThresholdMs float64 `mapstructure:"merge_threshold_ms"`
	MergePasses      int     `mapstructure:"merge_passes"`
	MinFrameMs       float64 `mapstructure:"min_frame_ms"`
	TimePrecision    int     `mapstructure:"time_precision"`
	Workers          int     `mapstructure:"workers"`
}

// ClassifierConfig stores extra phase patterns, keyed by phase name.
type ClassifierConfig struct {
	Patterns map[string][]string `mapstructure:"patterns"`
}

// LogConfig stores logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from an optional file, the environment and the
// given flags, in increasing precedence. Flags are bound by key name, so a
// flag must be named after the key it overrides (e.g. "analysis.thread").
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("analysis.thread", analyzer.DefaultThread)
	v.SetDefault("analysis.merge_threshold_ms", timeline.DefaultMergeThreshold)
	v.SetDefault("analysis.merge_passes", timeline.DefaultMergePasses)
	v.SetDefault("analysis.min_frame_ms", analyzer.DefaultMinFrame)
	v.SetDefault("analysis.time_precision", gecko.DefaultPrecision)
	v.SetDefault("analysis.workers", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if bindErr == nil && strings.Contains(f.Name, ".") {
				bindErr = v.BindPFlag(f.Name, f)
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the analysis cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Analysis.Thread) == "" {
		return fmt.Errorf("analysis.thread cannot be empty")
	}
	if c.Analysis.MergeThresholdMs < 0 {
		return fmt.Errorf("analysis.merge_threshold_ms must be >= 0, got %v", c.Analysis.MergeThresholdMs)
	}
	if c.Analysis.MergePasses < 0 {
		return fmt.Errorf("analysis.merge_passes must be >= 0, got %d", c.Analysis.MergePasses)
	}
	if c.Analysis.TimePrecision < 0 {
		return fmt.Errorf("analysis.time_precision must be >= 0, got %d", c.Analysis.TimePrecision)
	}
	_, err := c.ExtraPatterns()
	return err
}

// AnalyzerOptions converts the analysis section into pipeline options
func (c *Config) AnalyzerOptions() analyzer.Options {
	return analyzer.Options{
		Thread:         c.Analysis.Thread,
		MergeThreshold: c.Analysis.MergeThresholdMs,
		MergePasses:    c.Analysis.MergePasses,
		MinFrame:       c.Analysis.MinFrameMs,
	}
}

// ExtraPatterns resolves the phase names of the classifier patterns.
func (c *Config) ExtraPatterns() (map[phase.Phase][]string, error) {
	out := make(map[phase.Phase][]string, len(c.Classifier.Patterns))
	for name, patterns := range c.Classifier.Patterns {
		p, err := phase.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("classifier.patterns: %w", err)
		}
		if p == phase.Other {
			return nil, fmt.Errorf("classifier.patterns: Other cannot have patterns")
		}
		out[p] = append(out[p], patterns...)
	}
	return out, nil
}

// BuildClassifier builds the phase classifier with any configured extra patterns.
func (c *Config) BuildClassifier() (*phase.Classifier, error) {
	extra, err := c.ExtraPatterns()
	if err != nil {
		return nil, err
	}
	rules, err := phase.BuildRules(extra)
	if err != nil {
		return nil, fmt.Errorf("classifier.patterns: %w", err)
	}
	return phase.NewClassifier(rules), nil
}
