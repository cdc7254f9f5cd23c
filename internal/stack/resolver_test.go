package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frametrace/internal/gecko"
	"frametrace/internal/testutil"
)

func loadThread(t *testing.T, b *testutil.ThreadBuilder) *gecko.Thread {
	t.Helper()
	profile, err := gecko.Parse(testutil.Trace(b))
	require.NoError(t, err)
	return &profile.Threads[0]
}

func TestResolveDepthAndOrder(t *testing.T) {
	b := testutil.NewThread("UnityMain", 1)
	paths := [][]string{
		{"main"},
		{"main", "loop"},
		{"main", "loop", "update", "script"},
		{"main", "render"},
	}
	idx := make([]int, len(paths))
	for i, p := range paths {
		idx[i] = b.Stack(p...)
	}

	r := NewResolver(loadThread(t, b))
	for i, p := range paths {
		got := r.Resolve(idx[i])
		assert.Len(t, got, len(p))
		assert.Equal(t, p, got)
	}
}

func TestResolveCached(t *testing.T) {
	b := testutil.NewThread("UnityMain", 1)
	leaf := b.Stack("a", "b", "c")
	r := NewResolver(loadThread(t, b))

	first := r.Resolve(leaf)
	second := r.Resolve(leaf)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
	assert.Same(t, &first[0], &second[0])

	hits, misses := r.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestResolveSplicesCachedPrefix(t *testing.T) {
	b := testutil.NewThread("UnityMain", 1)
	mid := b.Stack("a", "b")
	leaf := b.Stack("a", "b", "c", "d")
	r := NewResolver(loadThread(t, b))

	assert.Equal(t, []string{"a", "b"}, r.Resolve(mid))
	assert.Equal(t, []string{"a", "b", "c", "d"}, r.Resolve(leaf))
	assert.Equal(t, "d", r.Leaf(leaf))
	assert.Len(t, r.Resolve(leaf), 4)
}

func TestResolveDegradedReferences(t *testing.T) {
	b := testutil.NewThread("UnityMain", 1)
	root := b.Stack("root")
	badFrame := b.RawStack(root, 99)
	badPrefix := b.RawStack(77, 0)
	r := NewResolver(loadThread(t, b))

	assert.Empty(t, r.Resolve(gecko.NoStack))
	assert.Empty(t, r.Resolve(-5))
	assert.Empty(t, r.Resolve(1000))
	assert.Empty(t, r.Resolve(badPrefix))
	assert.Equal(t, []string{"root", gecko.UnknownFrame}, r.Resolve(badFrame))
	assert.Equal(t, "", r.Leaf(gecko.NoStack))
}

func TestResolveCycle(t *testing.T) {
	th := &gecko.Thread{
		StackTable: []gecko.StackRecord{
			{Prefix: 1, Frame: 0},
			{Prefix: 0, Frame: 0},
			{Prefix: 2, Frame: 0},
			{Prefix: 0, Frame: 0},
		},
		FrameTable:  []gecko.FrameRecord{{Location: 0}},
		StringTable: []string{"spin"},
	}
	r := NewResolver(th)

	assert.Empty(t, r.Resolve(0))
	assert.Empty(t, r.Resolve(2))
	assert.Empty(t, r.Resolve(3))
}

func TestSetPerThread(t *testing.T) {
	a := testutil.NewThread("A", 1)
	ia := a.Stack("alpha")
	b := testutil.NewThread("B", 2)
	ib := b.Stack("beta", "gamma")

	profile, err := gecko.Parse(testutil.Trace(a, b))
	require.NoError(t, err)

	s := NewSet(profile)
	assert.Equal(t, []string{"alpha"}, s.For(0).Resolve(ia))
	assert.Equal(t, []string{"beta", "gamma"}, s.For(1).Resolve(ib))
	assert.Nil(t, s.For(-1))
	assert.Nil(t, s.For(5))

	r, ok := s.Lookup("B")
	require.True(t, ok)
	assert.Same(t, s.For(1), r)
	assert.Same(t, &profile.Threads[1], r.Thread())

	_, ok = s.Lookup("C")
	assert.False(t, ok)
}

func TestSetSharesCacheAcrossCallers(t *testing.T) {
	b := testutil.NewThread("UnityMain", 1)
	leaf := b.Stack("a", "b")
	profile, err := gecko.Parse(testutil.Trace(b))
	require.NoError(t, err)

	s := NewSet(profile)
	first, _ := s.Lookup("UnityMain")
	first.Resolve(leaf)
	second, _ := s.Lookup("UnityMain")
	second.Resolve(leaf)

	hits, misses := second.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}
