package analyzer

import (
	"frametrace/internal/gecko"
	"frametrace/internal/phase"
	"frametrace/internal/stack"
)

// NoStackInfo replaces the stack of a sample that has none
const NoStackInfo = "No stack info"

// ResolvedSample is one sample with its call path, innermost frame first
type ResolvedSample struct {
	RelativeTime float64     `json:"relative_time"`
	Phase        phase.Phase `json:"phase"`
	Stack        any         `json:"reversed_stack_array"` // []string or NoStackInfo
}

// ThreadSamples is the resolved sample dump of one thread
type ThreadSamples struct {
	Name       string           `json:"name"`
	TID        string           `json:"tid"`
	SampleSize int              `json:"sample_size"`
	Samples    []ResolvedSample `json:"samples"`
}

// DumpSamples resolves every sample of the named threads, or of all threads
// when names is empty. A nil resolvers set is built from profile.
func DumpSamples(profile *gecko.Profile, resolvers *stack.Set, c *phase.Classifier, names ...string) []ThreadSamples {
	if resolvers == nil {
		resolvers = stack.NewSet(profile)
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var out []ThreadSamples
	for i := range profile.Threads {
		thread := &profile.Threads[i]
		if len(want) > 0 && !want[thread.Name] {
			continue
		}

		res := resolvers.For(i)
		ts := ThreadSamples{
			Name:       thread.Name,
			TID:        thread.TID,
			SampleSize: len(thread.Samples),
			Samples:    make([]ResolvedSample, 0, len(thread.Samples)),
		}
		for _, s := range thread.Samples {
			path := res.Resolve(s.Stack)
			rs := ResolvedSample{
				RelativeTime: profile.Relative(s.Time),
				Phase:        c.Classify(path),
				Stack:        NoStackInfo,
			}
			if len(path) > 0 {
				reversed := make([]string, len(path))
				for j, fn := range path {
					reversed[len(path)-1-j] = fn
				}
				rs.Stack = reversed
			}
			ts.Samples = append(ts.Samples, rs)
		}
		out = append(out, ts)
	}
	return out
}
