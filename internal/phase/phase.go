// Package phase classifies resolved call stacks into game-loop phases.
package phase

import (
	"fmt"
	"strings"
)

// Phase is a logical stage of one loop iteration
type Phase int

const (
	Other Phase = iota
	FixedUpdate
	Physics
	Update
	LateUpdate
	Render
)

// Priority is the order in which phase rules are evaluated.
var Priority = []Phase{FixedUpdate, Physics, Update, LateUpdate, Render}

var names = map[Phase]string{
	Other:       "Other",
	FixedUpdate: "FixedUpdate",
	Physics:     "Physics",
	Update:      "Update",
	LateUpdate:  "LateUpdate",
	Render:      "Render",
}

func (p Phase) String() string {
	if n, ok := names[p]; ok {
		return n
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// MarshalText encodes the phase by name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name, case-insensitively
func (p *Phase) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Parse looks a phase up by name, ignoring case.
func Parse(name string) (Phase, error) {
	for p, n := range names {
		if strings.EqualFold(n, name) {
			return p, nil
		}
	}
	return Other, fmt.Errorf("unknown phase %q", name)
}

// Order returns the position of a phase within one loop iteration.
// Physics and Other carry no order. Gaps leave room for future phases.
func Order(p Phase) (int, bool) {
	switch p {
	case FixedUpdate:
		return 0, true
	case Update:
		return 2, true
	case LateUpdate:
		return 3, true
	case Render:
		return 5, true
	}
	return 0, false
}
