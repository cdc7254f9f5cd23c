// Package diag carries non-fatal analysis findings.
package diag

import "fmt"

// Kind classifies a warning
type Kind string

const (
	// EmptyTrace means the analysis thread had no samples.
	EmptyTrace Kind = "EmptyTrace"
	// Structural means a frame or the frame sequence looks incomplete.
	Structural Kind = "Structural"
)

// Warning is a finding surfaced to the caller without aborting the analysis
type Warning struct {
	Kind    Kind   `json:"kind"`
	Frame   int    `json:"frame"` // retained frame index, -1 when not frame-specific
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Frame >= 0 {
		return fmt.Sprintf("[%s] frame %d: %s", w.Kind, w.Frame, w.Message)
	}
	return fmt.Sprintf("[%s] %s", w.Kind, w.Message)
}

// Structuralf builds a Structural warning for a frame.
func Structuralf(frame int, format string, args ...any) Warning {
	return Warning{Kind: Structural, Frame: frame, Message: fmt.Sprintf(format, args...)}
}
