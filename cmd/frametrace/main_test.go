package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frametrace/internal/analyzer"
	"frametrace/internal/config"
	"frametrace/internal/testutil"
)

func writeTrace(t *testing.T, threads ...*testutil.ThreadBuilder) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gecko-profile.json")
	require.NoError(t, os.WriteFile(path, testutil.Trace(threads...), 0o644))
	return path
}

func gameTrace(t *testing.T) string {
	b := testutil.NewThread(analyzer.DefaultThread, 11)
	b.GameLoop(0, 16, 5)
	return writeTrace(t, b)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	out, err := run(t, "analyze", gameTrace(t), "--hotspots", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Frames: 5 detected, 3 retained")
	assert.Contains(t, out, "Mean: 64.00 ms")
	assert.Contains(t, out, "PHASE HOTSPOTS")
	assert.Contains(t, out, "Camera::Render")
}

func TestAnalyzeCommandJSON(t *testing.T) {
	out, err := run(t, "analyze", "--json", gameTrace(t))
	require.NoError(t, err)

	var report analyzer.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 3, report.Stats.Count)
	assert.Len(t, report.Frames, 3)
	assert.Equal(t, "11", report.TID)
}

func TestAnalyzeCommandMissingThread(t *testing.T) {
	_, err := run(t, "analyze", "--analysis.thread", "GameThread", gameTrace(t))
	require.Error(t, err)

	var nf *analyzer.ThreadNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestThreadsCommand(t *testing.T) {
	a := testutil.NewThread(analyzer.DefaultThread, 1)
	a.GameLoop(0, 16, 2)
	b := testutil.NewThread("RenderThread", 2)
	b.SamplePath(1, "RenderThread", "GfxDeviceWorker")

	out, err := run(t, "threads", writeTrace(t, a, b))
	require.NoError(t, err)
	assert.Contains(t, out, "1. UnityMain (TID 1)")
	assert.Contains(t, out, "2. RenderThread (TID 2)")
}

func TestSamplesCommand(t *testing.T) {
	a := testutil.NewThread(analyzer.DefaultThread, 1)
	a.SamplePath(10, "root", "leaf").EmptySample(12)
	b := testutil.NewThread("RenderThread", 2)
	b.SamplePath(11, "x")

	out, err := run(t, "samples", "--thread", analyzer.DefaultThread, writeTrace(t, a, b))
	require.NoError(t, err)

	var dump []analyzer.ThreadSamples
	require.NoError(t, json.Unmarshal([]byte(out), &dump))
	require.Len(t, dump, 1)
	assert.Equal(t, []any{"leaf", "root"}, dump[0].Samples[0].Stack)
	assert.Equal(t, analyzer.NoStackInfo, dump[0].Samples[1].Stack)
}

func newTestToolServer(t *testing.T) *toolServer {
	t.Helper()
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	ts, err := newToolServer(&app{cfg: cfg, log: zerolog.Nop()})
	require.NoError(t, err)
	return ts
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestToolServerFlow(t *testing.T) {
	ts := newTestToolServer(t)
	path := gameTrace(t)

	_, isErr := callTool(t, ts.analyzeFrames, map[string]any{"file_path": path})
	assert.True(t, isErr, "analysis before load must fail")

	text, isErr := callTool(t, ts.loadTrace, map[string]any{"file_path": path})
	require.False(t, isErr, text)
	assert.Contains(t, text, "Threads: 1")

	text, isErr = callTool(t, ts.analyzeFrames, map[string]any{"file_path": path})
	require.False(t, isErr, text)
	assert.Contains(t, text, "Mean: 64.00 ms")

	text, isErr = callTool(t, ts.analyzeFrames, map[string]any{"file_path": path, "thread": "Nope"})
	assert.True(t, isErr)
	assert.Contains(t, text, "list_threads")

	text, isErr = callTool(t, ts.listThreads, map[string]any{"file_path": path})
	require.False(t, isErr, text)
	assert.Contains(t, text, "UnityMain")

	lt, ok := ts.trace(path)
	require.True(t, ok)
	res, ok := lt.resolvers.Lookup("UnityMain")
	require.True(t, ok)
	hits, misses := res.Stats()

	text, isErr = callTool(t, ts.viewStack, map[string]any{"file_path": path, "thread": "UnityMain", "stack_index": 3.0})
	require.False(t, isErr, text)
	assert.Contains(t, text, "Phase: FixedUpdate")
	assert.Contains(t, text, "3. Rigid.FixedUpdate")

	afterHits, afterMisses := res.Stats()
	assert.Equal(t, misses, afterMisses, "stacks resolved by analyze_frames stay cached")
	assert.Equal(t, hits+1, afterHits)

	_, isErr = callTool(t, ts.viewStack, map[string]any{"file_path": path, "thread": "UnityMain", "stack_index": 999.0})
	assert.True(t, isErr)

	text, isErr = callTool(t, ts.phaseHotspots, map[string]any{"file_path": path, "top_n": 2.0})
	require.False(t, isErr, text)
	assert.Contains(t, text, "Player.Update")
}
