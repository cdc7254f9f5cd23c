package analyzer

import (
	"context"
	"math"
	"runtime"

	"github.com/sourcegraph/conc/pool"

	"frametrace/internal/gecko"
	"frametrace/internal/phase"
	"frametrace/internal/stack"
)

// ThreadStatistics contains summary statistics about one thread of the trace
type ThreadStatistics struct {
	Name              string              `json:"name"`
	TID               string              `json:"tid"`
	Samples           int                 `json:"samples"`
	EmptySamples      int                 `json:"empty_samples"`
	UniqueStacks      int                 `json:"unique_stacks"`
	UniqueFunctions   int                 `json:"unique_functions"`
	AverageStackDepth float64             `json:"average_stack_depth"`
	MaxStackDepth     int                 `json:"max_stack_depth"`
	MinStackDepth     int                 `json:"min_stack_depth"`
	Duration          float64             `json:"duration"`
	PhaseSamples      map[phase.Phase]int `json:"phase_samples"`
}

// ComputeThreadStatistics resolves and classifies every sample of the resolver's thread
func ComputeThreadStatistics(profile *gecko.Profile, res *stack.Resolver, c *phase.Classifier) ThreadStatistics {
	thread := res.Thread()
	stats := ThreadStatistics{
		Name:         thread.Name,
		TID:          thread.TID,
		Samples:      len(thread.Samples),
		PhaseSamples: make(map[phase.Phase]int),
	}
	if stats.Samples == 0 {
		return stats
	}

	stackSet := make(map[int]bool)
	functionSet := make(map[string]bool)
	totalDepth := 0
	withStack := 0
	stats.MinStackDepth = math.MaxInt32

	// Process each sample
	for _, s := range thread.Samples {
		path := res.Resolve(s.Stack)
		stats.PhaseSamples[c.Classify(path)]++

		// Samples without a usable stack only count towards Other
		if len(path) == 0 {
			stats.EmptySamples++
			continue
		}
		withStack++
		stackSet[s.Stack] = true
		for _, fn := range path {
			functionSet[fn] = true
		}

		// Track depth statistics
		depth := len(path)
		totalDepth += depth
		if depth > stats.MaxStackDepth {
			stats.MaxStackDepth = depth
		}
		if depth < stats.MinStackDepth {
			stats.MinStackDepth = depth
		}
	}

	// Calculate averages
	if withStack > 0 {
		stats.AverageStackDepth = float64(totalDepth) / float64(withStack)
	}
	if stats.MinStackDepth == math.MaxInt32 {
		stats.MinStackDepth = 0
	}
	stats.UniqueStacks = len(stackSet)
	stats.UniqueFunctions = len(functionSet)

	// Duration from first to last sample
	first := thread.Samples[0].Time
	last := thread.Samples[len(thread.Samples)-1].Time
	stats.Duration = gecko.Round(last-first, profile.Precision)
	return stats
}

// SummarizeThreads computes statistics for every thread concurrently, one
// worker per thread resolver. Results keep the trace's thread order. A nil
// resolvers set is built from profile.
func SummarizeThreads(ctx context.Context, profile *gecko.Profile, resolvers *stack.Set, c *phase.Classifier, workers int) ([]ThreadStatistics, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if resolvers == nil {
		resolvers = stack.NewSet(profile)
	}

	out := make([]ThreadStatistics, len(profile.Threads))
	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx)
	for i := range profile.Threads {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = ComputeThreadStatistics(profile, resolvers.For(i), c)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
