// Package timeline turns per-sample phase labels into runs and repairs
// short interruptions between them.
package timeline

import (
	"frametrace/internal/gecko"
	"frametrace/internal/phase"
)

// Point is one classified sample of the analysis thread
type Point struct {
	Time  float64 // relative to the profile origin
	Stack int
	Phase phase.Phase
}

// Run is a maximal span of consecutive samples sharing one phase.
// StartIndex and EndIndex are inclusive sample positions.
type Run struct {
	Phase      phase.Phase `json:"phase"`
	StartIndex int         `json:"start_index"`
	EndIndex   int         `json:"end_index"`
	StartTime  float64     `json:"start_time"`
	EndTime    float64     `json:"end_time"`
	Stacks     []int       `json:"stacks"`
}

// Len is the number of samples in the run
func (r Run) Len() int {
	return r.EndIndex - r.StartIndex + 1
}

// Segment run-length encodes the points by phase.
func Segment(points []Point) []Run {
	if len(points) == 0 {
		return nil
	}

	var runs []Run
	cur := newRun(0, points[0])
	for i := 1; i < len(points); i++ {
		p := points[i]
		if p.Phase != cur.Phase {
			runs = append(runs, cur)
			cur = newRun(i, p)
			continue
		}
		cur.EndIndex = i
		cur.EndTime = p.Time
		cur.Stacks = appendStack(cur.Stacks, p.Stack)
	}
	return append(runs, cur)
}

func newRun(i int, p Point) Run {
	return Run{
		Phase:      p.Phase,
		StartIndex: i,
		EndIndex:   i,
		StartTime:  p.Time,
		EndTime:    p.Time,
		Stacks:     appendStack(nil, p.Stack),
	}
}

func appendStack(stacks []int, s int) []int {
	if s == gecko.NoStack {
		return stacks
	}
	for _, have := range stacks {
		if have == s {
			return stacks
		}
	}
	return append(stacks, s)
}
