package timeline

import (
	"fmt"

	"frametrace/internal/phase"
)

// DefaultMergeThreshold is the widest Render→Render gap, in trace time
// units, that is still treated as one Render run.
// TODO: derive from the median frame time once frames can be estimated before merging.
const DefaultMergeThreshold = 6.0

// DefaultMergePasses catches Render, Other, Render, Other, Render chains,
// which a single pass only partially collapses.
const DefaultMergePasses = 2

// MergeEvent records one Render, Other, Render triple folded into a single run.
type MergeEvent struct {
	Pass      int         `json:"pass"`
	StartTime float64     `json:"start_time"`
	EndTime   float64     `json:"end_time"`
	Dropped   phase.Phase `json:"dropped"`
	Stacks    []int       `json:"stacks"`
	Gap       float64     `json:"gap"`
}

func (e MergeEvent) String() string {
	return fmt.Sprintf("pass %d: merged Render runs %.2f..%.2f, dropped %s (%d stacks), gap %.2f",
		e.Pass, e.StartTime, e.EndTime, e.Dropped, len(e.Stacks), e.Gap)
}

// MergeGaps performs one left-to-right pass. Whenever Render, Other, Render
// appear consecutively and the gap between the two Render runs is below
// threshold, the three collapse into one Render run. The input is not modified.
func MergeGaps(runs []Run, threshold float64) ([]Run, []MergeEvent) {
	out := make([]Run, 0, len(runs))
	var events []MergeEvent

	for i := 0; i < len(runs); {
		if i+2 < len(runs) && mergeable(runs[i], runs[i+1], runs[i+2], threshold) {
			first, mid, last := runs[i], runs[i+1], runs[i+2]
			merged := Run{
				Phase:      phase.Render,
				StartIndex: first.StartIndex,
				EndIndex:   last.EndIndex,
				StartTime:  first.StartTime,
				EndTime:    last.EndTime,
			}
			for _, r := range []Run{first, mid, last} {
				for _, s := range r.Stacks {
					merged.Stacks = appendStack(merged.Stacks, s)
				}
			}
			out = append(out, merged)
			events = append(events, MergeEvent{
				StartTime: first.StartTime,
				EndTime:   last.EndTime,
				Dropped:   mid.Phase,
				Stacks:    append([]int(nil), mid.Stacks...),
				Gap:       last.StartTime - first.EndTime,
			})
			i += 3
			continue
		}
		out = append(out, runs[i])
		i++
	}
	return out, events
}

// Merge applies MergeGaps passes times with the same threshold.
func Merge(runs []Run, threshold float64, passes int) ([]Run, []MergeEvent) {
	var all []MergeEvent
	for pass := 1; pass <= passes; pass++ {
		var events []MergeEvent
		runs, events = MergeGaps(runs, threshold)
		for i := range events {
			events[i].Pass = pass
		}
		all = append(all, events...)
	}
	return runs, all
}

func mergeable(a, b, c Run, threshold float64) bool {
	return a.Phase == phase.Render &&
		b.Phase == phase.Other &&
		c.Phase == phase.Render &&
		c.StartTime-a.EndTime < threshold
}
