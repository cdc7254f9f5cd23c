package frames

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"frametrace/internal/phase"
)

// Stats summarizes frame durations in trace time units
type Stats struct {
	Count     int                     `json:"count"`
	Mean      float64                 `json:"mean"`
	Min       float64                 `json:"min"`
	Max       float64                 `json:"max"`
	StdDev    float64                 `json:"stddev"`
	P50       float64                 `json:"p50"`
	P95       float64                 `json:"p95"`
	PhaseMean map[phase.Phase]float64 `json:"phase_mean,omitempty"`
}

// Empty reports whether no statistics could be computed
func (s Stats) Empty() bool {
	return s.Count == 0
}

// Durations returns the duration of each frame
func Durations(frames []Frame) []float64 {
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = f.Duration()
	}
	return out
}

// Summarize computes duration statistics over the retained frames. Fewer
// than two frames give empty Stats.
func Summarize(frames []Frame) Stats {
	if len(frames) < 2 {
		return Stats{}
	}

	d := Durations(frames)
	sorted := append([]float64(nil), d...)
	sort.Float64s(sorted)

	s := Stats{
		Count:     len(d),
		Mean:      stat.Mean(d, nil),
		Min:       floats.Min(d),
		Max:       floats.Max(d),
		StdDev:    stat.StdDev(d, nil),
		P50:       stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:       stat.Quantile(0.95, stat.Empirical, sorted, nil),
		PhaseMean: make(map[phase.Phase]float64),
	}

	for _, f := range frames {
		for p, t := range f.PhaseTime() {
			s.PhaseMean[p] += t
		}
	}
	for p := range s.PhaseMean {
		s.PhaseMean[p] /= float64(len(frames))
	}
	return s
}
