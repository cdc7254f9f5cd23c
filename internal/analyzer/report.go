package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"frametrace/internal/frames"
	"frametrace/internal/phase"
)

const rule = "═══════════════════════════════════════════════════\n"

// FormatReport renders the merge diagnostics, per-frame breakdown, summary and warnings.
func FormatReport(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("🎞️  FRAME ANALYSIS: %s (TID %s)\n", r.Thread, r.TID))
	sb.WriteString(rule)
	sb.WriteString(fmt.Sprintf("Samples: %d\n", r.Samples))
	sb.WriteString(fmt.Sprintf("Runs: %d segmented, %d after merging\n", r.SegmentedRuns, len(r.Runs)))
	sb.WriteString(fmt.Sprintf("Frames: %d detected, %d retained\n\n", r.Detected, len(r.Frames)))

	if len(r.Merges) > 0 {
		sb.WriteString("🔧 GAP MERGES\n")
		for _, m := range r.Merges {
			sb.WriteString(fmt.Sprintf("  [pass %d] %s\n", m.Pass, m.String()))
		}
		sb.WriteString("\n")
	}

	if len(r.Frames) > 0 {
		sb.WriteString("⏱️  FRAMES\n")
		for _, f := range r.Frames {
			sb.WriteString(FormatFrame(f))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(FormatStats(r.Stats))

	if len(r.Warnings) > 0 {
		sb.WriteString("\n⚠️  WARNINGS\n")
		for _, w := range r.Warnings {
			sb.WriteString("  ")
			sb.WriteString(w.String())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// FormatFrame renders one frame as its duration followed by its phase runs
func FormatFrame(f frames.Frame) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  Frame %d: %.2f .. %.2f (%.2f ms)\n", f.Index, f.StartTime, f.EndTime, f.Duration()))

	parts := make([]string, 0, len(f.Runs))
	for _, r := range f.Runs {
		parts = append(parts, fmt.Sprintf("%s@%.2f[%d]", r.Phase, r.StartTime, r.Len()))
	}
	sb.WriteString("    ")
	sb.WriteString(strings.Join(parts, " → "))
	sb.WriteString("\n")
	return sb.String()
}

// FormatStats renders frame-time statistics
func FormatStats(s frames.Stats) string {
	var sb strings.Builder
	sb.WriteString("📊 FRAME TIME SUMMARY\n")
	if s.Empty() {
		sb.WriteString("  Not enough frames for statistics.\n")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("  Frames: %d\n", s.Count))
	sb.WriteString(fmt.Sprintf("  Mean: %.2f ms\n", s.Mean))
	sb.WriteString(fmt.Sprintf("  Min: %.2f ms\n", s.Min))
	sb.WriteString(fmt.Sprintf("  Max: %.2f ms\n", s.Max))
	sb.WriteString(fmt.Sprintf("  StdDev: %.2f ms\n", s.StdDev))
	sb.WriteString(fmt.Sprintf("  P50/P95: %.2f / %.2f ms\n", s.P50, s.P95))

	if len(s.PhaseMean) > 0 {
		sb.WriteString("  Mean time per phase:\n")
		for _, p := range append([]phase.Phase{phase.Other}, phase.Priority...) {
			if t, ok := s.PhaseMean[p]; ok {
				sb.WriteString(fmt.Sprintf("    %-12s %.2f ms\n", p, t))
			}
		}
	}
	return sb.String()
}

// FormatThreadStatistics renders one line block per thread
func FormatThreadStatistics(stats []ThreadStatistics) string {
	var sb strings.Builder
	sb.WriteString("🧵 THREADS\n")
	sb.WriteString(rule)
	for i, ts := range stats {
		sb.WriteString(fmt.Sprintf("%d. %s (TID %s)\n", i+1, ts.Name, ts.TID))
		sb.WriteString(fmt.Sprintf("   Samples: %d (%d without stack), span %.2f ms\n", ts.Samples, ts.EmptySamples, ts.Duration))
		sb.WriteString(fmt.Sprintf("   Stacks: %d unique, %d functions\n", ts.UniqueStacks, ts.UniqueFunctions))
		sb.WriteString(fmt.Sprintf("   Depth: avg %.2f, min %d, max %d\n", ts.AverageStackDepth, ts.MinStackDepth, ts.MaxStackDepth))

		phases := make([]phase.Phase, 0, len(ts.PhaseSamples))
		for p := range ts.PhaseSamples {
			phases = append(phases, p)
		}
		sort.Slice(phases, func(a, b int) bool { return phases[a] < phases[b] })
		parts := make([]string, 0, len(phases))
		for _, p := range phases {
			parts = append(parts, fmt.Sprintf("%s=%d", p, ts.PhaseSamples[p]))
		}
		if len(parts) > 0 {
			sb.WriteString("   Phases: ")
			sb.WriteString(strings.Join(parts, " "))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
