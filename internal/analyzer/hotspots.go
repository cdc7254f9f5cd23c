package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"frametrace/internal/phase"
	"frametrace/internal/stack"
	"frametrace/internal/timeline"
)

// Hotspot is a leaf function that many samples of one phase land in
type Hotspot struct {
	Function    string      `json:"function"`
	Phase       phase.Phase `json:"phase"`
	SampleCount int         `json:"sample_count"`
	Percentage  float64     `json:"percentage"` // of the phase's samples
	Stacks      []int       `json:"stacks"`     // stack indices ending in Function
}

// FindPhaseHotspots returns, per phase, the leaf functions hit most often.
// Samples with no stack are skipped. Each list is sorted by sample count
// descending and cut to topN when topN > 0.
func FindPhaseHotspots(res *stack.Resolver, points []timeline.Point, topN int) map[phase.Phase][]Hotspot {
	byPhase := make(map[phase.Phase]map[string]*Hotspot)
	totals := make(map[phase.Phase]int)

	for _, pt := range points {
		leaf := res.Leaf(pt.Stack)
		if leaf == "" {
			continue
		}
		totals[pt.Phase]++

		funcs, ok := byPhase[pt.Phase]
		if !ok {
			funcs = make(map[string]*Hotspot)
			byPhase[pt.Phase] = funcs
		}
		hs, ok := funcs[leaf]
		if !ok {
			hs = &Hotspot{Function: leaf, Phase: pt.Phase}
			funcs[leaf] = hs
		}
		hs.SampleCount++
		if !containsInt(hs.Stacks, pt.Stack) {
			hs.Stacks = append(hs.Stacks, pt.Stack)
		}
	}

	out := make(map[phase.Phase][]Hotspot, len(byPhase))
	for p, funcs := range byPhase {
		list := make([]Hotspot, 0, len(funcs))
		for _, hs := range funcs {
			hs.Percentage = float64(hs.SampleCount) / float64(totals[p]) * 100.0
			list = append(list, *hs)
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].SampleCount != list[j].SampleCount {
				return list[i].SampleCount > list[j].SampleCount
			}
			return list[i].Function < list[j].Function
		})
		if topN > 0 && topN < len(list) {
			list = list[:topN]
		}
		out[p] = list
	}
	return out
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// FormatHotspot returns a human-readable string representation of a hotspot
func FormatHotspot(hs Hotspot, rank int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("#%d: %s\n", rank, hs.Function))
	sb.WriteString(fmt.Sprintf("    Samples: %d (%.2f%% of %s)\n", hs.SampleCount, hs.Percentage, hs.Phase))
	sb.WriteString(fmt.Sprintf("    Stacks: %d\n", len(hs.Stacks)))

	return sb.String()
}
