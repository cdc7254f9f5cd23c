package gecko

import (
	"bytes"
	"compress/gzip"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frametrace/internal/testutil"
)

func TestParseTables(t *testing.T) {
	main := testutil.NewThread("UnityMain", 42)
	leaf := main.Stack("root", "mid", "leaf")
	main.Sample(1000.5, leaf).EmptySample(1001.25)

	profile, err := Parse(testutil.Trace(main))
	require.NoError(t, err)
	require.Len(t, profile.Threads, 1)

	th := profile.Threads[0]
	assert.Equal(t, "UnityMain", th.Name)
	assert.Equal(t, "42", th.TID)
	require.Len(t, th.Samples, 2)
	assert.Equal(t, leaf, th.Samples[0].Stack)
	assert.Equal(t, NoStack, th.Samples[1].Stack)
	require.NotNil(t, th.Samples[0].Responsiveness)

	require.Len(t, th.StackTable, 3)
	assert.Equal(t, NoStack, th.StackTable[0].Prefix)
	assert.Equal(t, 0, th.StackTable[1].Prefix)
	assert.Equal(t, "leaf", th.Label(th.StackTable[2].Frame))
}

func TestParseOriginAcrossThreads(t *testing.T) {
	a := testutil.NewThread("A", 1)
	a.SamplePath(120.0, "x").SamplePath(130.0, "x")
	b := testutil.NewThread("B", 2)
	b.SamplePath(100.126, "y")

	profile, err := Parse(testutil.Trace(a, b))
	require.NoError(t, err)
	assert.Equal(t, 100.126, profile.Origin)
	assert.Equal(t, 19.87, profile.Relative(120.0))
	assert.Equal(t, 0.0, profile.Relative(100.126))
}

func TestParseNoSamples(t *testing.T) {
	profile, err := Parse(testutil.Trace(testutil.NewThread("Idle", 3)))
	require.NoError(t, err)
	assert.Equal(t, 0.0, profile.Origin)
	assert.Equal(t, 0, profile.SampleCount())
}

func TestParseDefaultSchemas(t *testing.T) {
	doc := `{"threads":[{"name":"T","tid":"7",
		"samples":{"data":[[0, 5.0]]},
		"stackTable":{"data":[[null, 0]]},
		"frameTable":{"data":[[0]]},
		"stringTable":["main"]}]}`

	profile, err := Parse([]byte(doc))
	require.NoError(t, err)
	th := profile.Threads[0]
	assert.Equal(t, "7", th.TID)
	assert.Equal(t, 0, th.Samples[0].Stack)
	assert.Nil(t, th.Samples[0].Responsiveness)
	assert.Equal(t, "main", th.Label(0))
}

func TestParseCustomSchema(t *testing.T) {
	doc := `{"threads":[{"name":"T",
		"samples":{"schema":{"time":0,"stack":1},"data":[[9.5, 0]]},
		"stackTable":{"schema":{"frame":0,"prefix":1},"data":[[0, null]]},
		"frameTable":{"schema":{"location":1},"data":[[null, 0]]},
		"stringTable":["f"]}]}`

	profile, err := Parse([]byte(doc))
	require.NoError(t, err)
	th := profile.Threads[0]
	assert.Equal(t, 9.5, th.Samples[0].Time)
	assert.Equal(t, 0, th.Samples[0].Stack)
	assert.Equal(t, StackRecord{Prefix: NoStack, Frame: 0}, th.StackTable[0])
	assert.Equal(t, "f", th.Label(0))
	assert.Equal(t, "N/A", th.TID)
}

func TestParseFormatErrors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		thread int
		field  string
	}{
		{name: "not a mapping", doc: `[1,2,3]`, thread: -1},
		{name: "null document", doc: `null`, thread: -1},
		{name: "null threads", doc: `{"threads":null}`, thread: -1, field: "threads"},
		{name: "null thread", doc: `{"threads":[{"name":"ok"}, null]}`, thread: 1},
		{name: "missing threads", doc: `{"meta":{}}`, thread: -1, field: "threads"},
		{name: "threads not a sequence", doc: `{"threads":{"a":1}}`, thread: -1, field: "threads"},
		{name: "thread not a mapping", doc: `{"threads":[{"name":"ok"}, 5]}`, thread: 1},
		{name: "sample without time", doc: `{"threads":[{"name":"UnityMain","samples":{"data":[[0]]}}]}`, thread: 0, field: "samples.data[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)

			var fe *FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.thread, fe.Thread)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestFormatErrorNamesThread(t *testing.T) {
	_, err := Parse([]byte(`{"threads":[{"name":"UnityMain","samples":{"data":[["x","y"]]}}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"UnityMain"`)
	assert.Contains(t, err.Error(), "samples.data[0]")
}

func TestLabelOutOfRange(t *testing.T) {
	th := Thread{
		FrameTable:  []FrameRecord{{Location: 0}, {Location: 9}},
		StringTable: []string{"a"},
	}
	assert.Equal(t, "a", th.Label(0))
	assert.Equal(t, UnknownFrame, th.Label(1))
	assert.Equal(t, UnknownFrame, th.Label(-1))
	assert.Equal(t, UnknownFrame, th.Label(5))
}

func TestParseGzip(t *testing.T) {
	th := testutil.NewThread("UnityMain", 1)
	th.SamplePath(3, "a", "b")

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(testutil.Trace(th))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	profile, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 1, profile.SampleCount())
}

func TestWithPrecision(t *testing.T) {
	th := testutil.NewThread("UnityMain", 1)
	th.SamplePath(0, "a").SamplePath(1.23456, "a")

	profile, err := Parse(testutil.Trace(th), WithPrecision(3))
	require.NoError(t, err)
	assert.Equal(t, 1.235, profile.Relative(1.23456))
}
