package gecko

import "math"

// UnknownFrame labels a frame whose table indices fall outside the thread's tables.
const UnknownFrame = "<unknown>"

// NoStack marks a sample or prefix reference that is absent.
const NoStack = -1

// DefaultPrecision is the number of decimal digits kept on relative times.
const DefaultPrecision = 2

// Sample represents one timestamped call-stack snapshot
type Sample struct {
	Stack          int // index into the thread's StackTable, NoStack when absent
	Time           float64
	Responsiveness *float64
}

// StackRecord is one node of the prefix-linked stack trie
type StackRecord struct {
	Prefix int // parent stack index, NoStack for a root
	Frame  int // index into the FrameTable
}

// FrameRecord names a code location through the string table
type FrameRecord struct {
	Location int
}

// Thread holds the samples and symbol tables of one profiled thread.
// Table indices are only meaningful within the owning thread.
type Thread struct {
	Name        string
	TID         string
	Samples     []Sample
	StackTable  []StackRecord
	FrameTable  []FrameRecord
	StringTable []string
}

// Profile holds all the parsed threads of one capture session
type Profile struct {
	Threads   []Thread
	Origin    float64 // minimum sample time across all threads
	Precision int
}

// SampleColumns are the resolved column positions of a samples record
type SampleColumns struct {
	Stack          int
	Time           int
	Responsiveness int
}

// StackColumns are the resolved column positions of a stack record
type StackColumns struct {
	Prefix int
	Frame  int
}

// FrameColumns are the resolved column positions of a frame record
type FrameColumns struct {
	Location int
}

// DefaultSampleColumns, DefaultStackColumns and DefaultFrameColumns apply when a
// table omits its schema or a schema omits a key.
var (
	DefaultSampleColumns = SampleColumns{Stack: 0, Time: 1, Responsiveness: 2}
	DefaultStackColumns  = StackColumns{Prefix: 0, Frame: 1}
	DefaultFrameColumns  = FrameColumns{Location: 0}
)

// Thread returns the first thread with the given name.
func (p *Profile) Thread(name string) (*Thread, bool) {
	for i := range p.Threads {
		if p.Threads[i].Name == name {
			return &p.Threads[i], true
		}
	}
	return nil, false
}

// Relative converts an absolute sample time to the profile's time origin,
// rounded to the profile precision.
func (p *Profile) Relative(t float64) float64 {
	return Round(t-p.Origin, p.Precision)
}

// SampleCount returns the number of samples over all threads
func (p *Profile) SampleCount() int {
	n := 0
	for i := range p.Threads {
		n += len(p.Threads[i].Samples)
	}
	return n
}

// Label returns the code location named by a frame index.
func (t *Thread) Label(frame int) string {
	if frame < 0 || frame >= len(t.FrameTable) {
		return UnknownFrame
	}
	loc := t.FrameTable[frame].Location
	if loc < 0 || loc >= len(t.StringTable) {
		return UnknownFrame
	}
	return t.StringTable[loc]
}

// Round rounds x to the given number of decimal digits.
func Round(x float64, digits int) float64 {
	if digits < 0 {
		return x
	}
	scale := math.Pow(10, float64(digits))
	return math.Round(x*scale) / scale
}
