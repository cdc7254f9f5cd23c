// Package frames groups phase runs into loop iterations and measures them.
package frames

import (
	"frametrace/internal/diag"
	"frametrace/internal/phase"
	"frametrace/internal/timeline"
)

// Frame is one inferred iteration of the game loop. EndTime is the start of
// the following frame, or the end of the last run for the final frame.
type Frame struct {
	Index     int            `json:"index"`
	Runs      []timeline.Run `json:"runs"`
	StartTime float64        `json:"start_time"`
	EndTime   float64        `json:"end_time"`
}

// Duration is the distance between this frame's boundary and the next
func (f Frame) Duration() float64 {
	return f.EndTime - f.StartTime
}

// Has reports whether any run of the frame is in phase p
func (f Frame) Has(p phase.Phase) bool {
	for _, r := range f.Runs {
		if r.Phase == p {
			return true
		}
	}
	return false
}

// PhaseTime attributes the frame's duration to phases. Each run owns the
// time until the next run starts.
func (f Frame) PhaseTime() map[phase.Phase]float64 {
	out := make(map[phase.Phase]float64)
	for i, r := range f.Runs {
		end := f.EndTime
		if i+1 < len(f.Runs) {
			end = f.Runs[i+1].StartTime
		}
		out[r.Phase] += end - r.StartTime
	}
	return out
}

// Detector partitions a run sequence into frames
type Detector interface {
	Detect(runs []timeline.Run) []Frame
}

// PhaseOrder detects frames from the player-loop phase order: a frame ends
// after Render, or when the loop wraps to an earlier phase. Physics and Other
// runs never move the order. This is a heuristic; engines that reorder
// phases may need a different Detector.
type PhaseOrder struct{}

// walker is the boundary state carried across runs
type walker struct {
	lastOrder   int
	tracked     bool // lastOrder is set for the current frame
	afterRender bool // previous run was Render
}

// step advances the walker by one run and reports whether it opens a frame.
func (w *walker) step(p phase.Phase) bool {
	order, ok := phase.Order(p)
	boundary := w.afterRender || (ok && w.tracked && order < w.lastOrder)
	if boundary {
		w.tracked = false
	}
	if ok {
		w.lastOrder = order
		w.tracked = true
	}
	w.afterRender = p == phase.Render
	return boundary
}

// Detect implements Detector
func (PhaseOrder) Detect(runs []timeline.Run) []Frame {
	if len(runs) == 0 {
		return nil
	}

	var w walker
	var starts []int
	for i, r := range runs {
		if w.step(r.Phase) || i == 0 {
			starts = append(starts, i)
		}
	}

	frames := make([]Frame, 0, len(starts))
	for k, start := range starts {
		end := len(runs)
		if k+1 < len(starts) {
			end = starts[k+1]
		}
		f := Frame{
			Index:     k,
			Runs:      runs[start:end:end],
			StartTime: runs[start].StartTime,
			EndTime:   runs[end-1].EndTime,
		}
		if end < len(runs) {
			f.EndTime = runs[end].StartTime
		}
		frames = append(frames, f)
	}
	return frames
}

// Trim drops the first and last detected frames, which are usually cut by
// the capture window. With fewer than three frames all are kept and a
// warning is returned.
func Trim(detected []Frame) ([]Frame, []diag.Warning) {
	if len(detected) >= 3 {
		return detected[1 : len(detected)-1], nil
	}
	return detected, []diag.Warning{{
		Kind:    diag.Structural,
		Frame:   -1,
		Message: "fewer than 3 frames detected; first and last frames kept and may be partial",
	}}
}

// Check returns structural warnings for frames missing Update and
// LateUpdate, or shorter than minDuration.
func Check(frames []Frame, minDuration float64) []diag.Warning {
	var warnings []diag.Warning
	for _, f := range frames {
		if !f.Has(phase.Update) && !f.Has(phase.LateUpdate) {
			warnings = append(warnings, diag.Structuralf(f.Index,
				"no Update or LateUpdate run (%.2f..%.2f)", f.StartTime, f.EndTime))
		}
		if d := f.Duration(); d < minDuration {
			warnings = append(warnings, diag.Structuralf(f.Index,
				"implausibly short frame: %.2f < %.2f", d, minDuration))
		}
	}
	return warnings
}
