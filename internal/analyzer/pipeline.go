package analyzer

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"frametrace/internal/diag"
	"frametrace/internal/frames"
	"frametrace/internal/gecko"
	"frametrace/internal/phase"
	"frametrace/internal/stack"
	"frametrace/internal/timeline"
)

// DefaultThread is the Unity main thread name
const DefaultThread = "UnityMain"

// DefaultMinFrame is the shortest frame duration not flagged as implausible
const DefaultMinFrame = 1.0

// ThreadNotFoundError reports that the analysis thread is absent from the trace
type ThreadNotFoundError struct {
	Name      string
	Available []string
}

func (e *ThreadNotFoundError) Error() string {
	return fmt.Sprintf("thread %q not found in trace (threads: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Options tunes one analysis pass
type Options struct {
	Thread         string
	MergeThreshold float64
	MergePasses    int
	MinFrame       float64
}

// DefaultOptions returns the stock analysis settings
func DefaultOptions() Options {
	return Options{
		Thread:         DefaultThread,
		MergeThreshold: timeline.DefaultMergeThreshold,
		MergePasses:    timeline.DefaultMergePasses,
		MinFrame:       DefaultMinFrame,
	}
}

// MergeDiagnostic is a merge event with the labels of the dropped stacks
type MergeDiagnostic struct {
	timeline.MergeEvent
	Leaves []string `json:"leaves"`
}

func (m MergeDiagnostic) String() string {
	return fmt.Sprintf("merged Render %.2f..%.2f: dropped %s, gap %.2f, stacks [%s]",
		m.StartTime, m.EndTime, m.Dropped, m.Gap, strings.Join(m.Leaves, "; "))
}

// Report is the outcome of one analysis pass over the analysis thread
type Report struct {
	Thread        string            `json:"thread"`
	TID           string            `json:"tid"`
	Samples       int               `json:"samples"`
	Origin        float64           `json:"origin"`
	SegmentedRuns int               `json:"segmented_runs"`
	Runs          []timeline.Run    `json:"runs"`
	Merges        []MergeDiagnostic `json:"merges"`
	Detected      int               `json:"detected_frames"`
	Frames        []frames.Frame    `json:"frames"`
	Stats         frames.Stats      `json:"stats"`
	Warnings      []diag.Warning    `json:"warnings"`

	// Points are the classified samples the runs were built from
	Points []timeline.Point `json:"-"`
}

// Analyzer runs the classification, segmentation, merge and frame pipeline
type Analyzer struct {
	opts       Options
	classifier *phase.Classifier
	detector   frames.Detector
	log        zerolog.Logger
}

// Option customizes an Analyzer
type Option func(*Analyzer)

// WithClassifier replaces the default phase rules
func WithClassifier(c *phase.Classifier) Option {
	return func(a *Analyzer) { a.classifier = c }
}

// WithDetector replaces the phase-order frame detector
func WithDetector(d frames.Detector) Option {
	return func(a *Analyzer) { a.detector = d }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(a *Analyzer) { a.log = l }
}

// New returns an Analyzer
func New(opts Options, options ...Option) *Analyzer {
	a := &Analyzer{
		opts:     opts,
		detector: frames.PhaseOrder{},
		log:      zerolog.Nop(),
	}
	for _, o := range options {
		o(a)
	}
	if a.classifier == nil {
		a.classifier = phase.NewClassifier(phase.DefaultRules())
	}
	return a
}

// Classify resolves and classifies every sample of a thread. Times are
// relative to the profile origin.
func Classify(profile *gecko.Profile, res *stack.Resolver, c *phase.Classifier) []timeline.Point {
	samples := res.Thread().Samples
	points := make([]timeline.Point, len(samples))
	for i, s := range samples {
		points[i] = timeline.Point{
			Time:  profile.Relative(s.Time),
			Stack: s.Stack,
			Phase: c.Classify(res.Resolve(s.Stack)),
		}
	}
	return points
}

// Analyze reconstructs the frames of the configured thread.
func (a *Analyzer) Analyze(profile *gecko.Profile) (*Report, error) {
	return a.AnalyzeWith(profile, nil)
}

// AnalyzeWith is Analyze reusing the stack caches of resolvers, which must
// have been built from profile. A nil set resolves with a fresh cache.
func (a *Analyzer) AnalyzeWith(profile *gecko.Profile, resolvers *stack.Set) (*Report, error) {
	thread, ok := profile.Thread(a.opts.Thread)
	if !ok {
		names := make([]string, len(profile.Threads))
		for i := range profile.Threads {
			names[i] = profile.Threads[i].Name
		}
		return nil, &ThreadNotFoundError{Name: a.opts.Thread, Available: names}
	}

	log := a.log.With().Str("thread", thread.Name).Str("tid", thread.TID).Logger()
	report := &Report{
		Thread:  thread.Name,
		TID:     thread.TID,
		Samples: len(thread.Samples),
		Origin:  profile.Origin,
	}

	// An empty thread is a valid trace with nothing to measure
	if len(thread.Samples) == 0 {
		log.Warn().Msg("analysis thread has no samples")
		report.Warnings = append(report.Warnings, diag.Warning{
			Kind:    diag.EmptyTrace,
			Frame:   -1,
			Message: fmt.Sprintf("thread %q has no samples", thread.Name),
		})
		return report, nil
	}

	// Resolve and classify every sample
	var res *stack.Resolver
	if resolvers != nil {
		res, ok = resolvers.Lookup(thread.Name)
	}
	if res == nil || !ok {
		res = stack.NewResolver(thread)
	}
	points := Classify(profile, res, a.classifier)
	report.Points = points
	hits, misses := res.Stats()
	log.Debug().Int("samples", len(points)).Int("cache_hits", hits).Int("cache_misses", misses).Msg("classified samples")

	// Collapse into runs, then fold short gaps between Render runs
	runs := timeline.Segment(points)
	report.SegmentedRuns = len(runs)

	merged, events := timeline.Merge(runs, a.opts.MergeThreshold, a.opts.MergePasses)
	report.Runs = merged
	for _, e := range events {
		d := MergeDiagnostic{MergeEvent: e, Leaves: make([]string, 0, len(e.Stacks))}
		for _, s := range e.Stacks {
			d.Leaves = append(d.Leaves, res.Leaf(s))
		}
		report.Merges = append(report.Merges, d)
		log.Debug().Str("event", d.String()).Int("pass", e.Pass).Msg("gap merged")
	}

	// Split into frames and drop the partial ones at both ends
	detected := a.detector.Detect(merged)
	report.Detected = len(detected)
	kept, warnings := frames.Trim(detected)
	report.Frames = kept
	report.Warnings = append(report.Warnings, warnings...)

	// Structural checks and statistics only look at retained frames
	report.Warnings = append(report.Warnings, frames.Check(kept, a.opts.MinFrame)...)
	report.Stats = frames.Summarize(kept)

	log.Info().
		Int("runs", len(runs)).
		Int("merged_runs", len(merged)).
		Int("merges", len(events)).
		Int("detected", len(detected)).
		Int("frames", len(kept)).
		Float64("mean_ms", report.Stats.Mean).
		Int("warnings", len(report.Warnings)).
		Msg("frame analysis complete")

	return report, nil
}
