// Package testutil builds gecko trace documents for tests.
package testutil

import (
	"encoding/json"
	"strings"
)

// ThreadBuilder accumulates the tables of one thread
type ThreadBuilder struct {
	Name string
	TID  int

	strings  []string
	strIndex map[string]int
	frames   [][]any
	frameIdx map[string]int
	stacks   [][]any
	stackIdx map[string]int
	samples  [][]any
}

// NewThread returns an empty thread builder
func NewThread(name string, tid int) *ThreadBuilder {
	return &ThreadBuilder{
		Name:     name,
		TID:      tid,
		strIndex: make(map[string]int),
		frameIdx: make(map[string]int),
		stackIdx: make(map[string]int),
	}
}

// Stack registers the call path root→leaf and returns its stack index.
// Shared prefixes reuse the same stack records.
func (b *ThreadBuilder) Stack(path ...string) int {
	prefix := -1
	for i := range path {
		key := strings.Join(path[:i+1], "\x00")
		if idx, ok := b.stackIdx[key]; ok {
			prefix = idx
			continue
		}
		var p any
		if prefix >= 0 {
			p = prefix
		}
		b.stacks = append(b.stacks, []any{p, b.frame(path[i])})
		prefix = len(b.stacks) - 1
		b.stackIdx[key] = prefix
	}
	return prefix
}

// RawStack appends a stack record verbatim, for malformed tables.
func (b *ThreadBuilder) RawStack(prefix any, frame any) int {
	b.stacks = append(b.stacks, []any{prefix, frame})
	return len(b.stacks) - 1
}

// Sample appends a sample referencing a stack index.
func (b *ThreadBuilder) Sample(t float64, stack int) *ThreadBuilder {
	b.samples = append(b.samples, []any{stack, t, 0})
	return b
}

// SamplePath registers path and appends a sample for it.
func (b *ThreadBuilder) SamplePath(t float64, path ...string) *ThreadBuilder {
	return b.Sample(t, b.Stack(path...))
}

// EmptySample appends a sample with a null stack.
func (b *ThreadBuilder) EmptySample(t float64) *ThreadBuilder {
	b.samples = append(b.samples, []any{nil, t, 0})
	return b
}

func (b *ThreadBuilder) frame(label string) int {
	if idx, ok := b.frameIdx[label]; ok {
		return idx
	}
	s, ok := b.strIndex[label]
	if !ok {
		b.strings = append(b.strings, label)
		s = len(b.strings) - 1
		b.strIndex[label] = s
	}
	b.frames = append(b.frames, []any{s})
	idx := len(b.frames) - 1
	b.frameIdx[label] = idx
	return idx
}

func (b *ThreadBuilder) document() map[string]any {
	return map[string]any{
		"name": b.Name,
		"tid":  b.TID,
		"samples": map[string]any{
			"schema": map[string]int{"stack": 0, "time": 1, "responsiveness": 2},
			"data":   nonNil(b.samples),
		},
		"stackTable": map[string]any{
			"schema": map[string]int{"prefix": 0, "frame": 1},
			"data":   nonNil(b.stacks),
		},
		"frameTable": map[string]any{
			"schema": map[string]int{"location": 0},
			"data":   nonNil(b.frames),
		},
		"stringTable": append([]string{}, b.strings...),
	}
}

func nonNil(rows [][]any) [][]any {
	if rows == nil {
		return [][]any{}
	}
	return rows
}

// Trace encodes the threads as a gecko profile document.
func Trace(threads ...*ThreadBuilder) []byte {
	docs := make([]map[string]any, 0, len(threads))
	for _, t := range threads {
		docs = append(docs, t.document())
	}
	data, err := json.Marshal(map[string]any{"threads": docs})
	if err != nil {
		panic(err)
	}
	return data
}

// Engine call paths recognized by the default phase rules.
var (
	FixedUpdatePath = []string{"UnityMain", "PlayerLoop", "FixedBehaviourManager::Update", "Rigid.FixedUpdate"}
	PhysicsPath     = []string{"UnityMain", "PlayerLoop", "PhysicsManager::FixedUpdate", "physx::Sc::Scene::simulate"}
	UpdatePath      = []string{"UnityMain", "PlayerLoop", "BehaviourManager::Update", "Player.Update"}
	LateUpdatePath  = []string{"UnityMain", "PlayerLoop", "LateBehaviourManager::Update", "Camera.LateUpdate"}
	RenderPath      = []string{"UnityMain", "PlayerLoop", "PlayerRender", "Camera::Render"}
	OtherPath       = []string{"UnityMain", "PlayerLoop", "GC_Collect"}
)

// GameLoop appends frames×[FixedUpdate, Update, LateUpdate, Render] samples
// spaced step apart starting at start, and returns the time after the last sample.
func (b *ThreadBuilder) GameLoop(start, step float64, frames int) float64 {
	t := start
	for i := 0; i < frames; i++ {
		for _, p := range [][]string{FixedUpdatePath, UpdatePath, LateUpdatePath, RenderPath} {
			b.SamplePath(t, p...)
			t += step
		}
	}
	return t
}
