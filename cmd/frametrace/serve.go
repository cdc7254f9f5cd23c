package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"frametrace/internal/analyzer"
	"frametrace/internal/gecko"
	"frametrace/internal/phase"
	"frametrace/internal/stack"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve frame analysis tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ts, err := newToolServer(a)
			if err != nil {
				return err
			}
			a.log.Info().Msg("serving MCP tools on stdio")
			if err := server.ServeStdio(ts.mcpServer()); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
}

// loadedTrace is a parsed trace with the stack caches of its threads.
// mu guards resolvers, which are not safe for concurrent use.
type loadedTrace struct {
	profile *gecko.Profile

	mu        sync.Mutex
	resolvers *stack.Set
}

// toolServer holds loaded traces between tool calls
type toolServer struct {
	app        *app
	classifier *phase.Classifier

	mu     sync.Mutex
	traces map[string]*loadedTrace
}

func newToolServer(a *app) (*toolServer, error) {
	c, err := a.cfg.BuildClassifier()
	if err != nil {
		return nil, err
	}
	return &toolServer{
		app:        a,
		classifier: c,
		traces:     make(map[string]*loadedTrace),
	}, nil
}

func (ts *toolServer) trace(path string) (*loadedTrace, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	lt, ok := ts.traces[path]
	return lt, ok
}

func (ts *toolServer) mcpServer() *server.MCPServer {
	s := server.NewMCPServer(
		"frametrace",
		"1.0.0",
		server.WithLogging(),
	)

	s.AddTool(mcp.NewTool("load_trace",
		mcp.WithDescription("Load a gecko-format sampled profiler trace (JSON or gzip JSON) for frame analysis"),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Absolute path to the trace file"),
		),
	), ts.loadTrace)

	s.AddTool(mcp.NewTool("list_threads",
		mcp.WithDescription("Summarize every thread of a loaded trace: samples, stack depth, unique functions and phase mix. Use it to find the game thread."),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path to the loaded trace file"),
		),
	), ts.listThreads)

	s.AddTool(mcp.NewTool("analyze_frames",
		mcp.WithDescription("Reconstruct game-loop frames on one thread and report frame times, gap merges and structural warnings. This is the main tool."),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path to the loaded trace file"),
		),
		mcp.WithString("thread",
			mcp.Description("Thread to analyze (default from configuration, usually UnityMain)"),
		),
		mcp.WithNumber("merge_threshold_ms",
			mcp.Description("Widest Render→Render gap folded into one Render run"),
		),
		mcp.WithNumber("merge_passes",
			mcp.Description("Number of gap merge passes"),
		),
	), ts.analyzeFrames)

	s.AddTool(mcp.NewTool("view_stack",
		mcp.WithDescription("Resolve one stack index of a thread into its call path and show the phase it classifies as"),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path to the loaded trace file"),
		),
		mcp.WithString("thread",
			mcp.Required(),
			mcp.Description("Thread name owning the stack table"),
		),
		mcp.WithNumber("stack_index",
			mcp.Required(),
			mcp.Description("Index into the thread's stack table (0-based)"),
		),
	), ts.viewStack)

	s.AddTool(mcp.NewTool("phase_hotspots",
		mcp.WithDescription("List the leaf functions hit most often within each phase of a thread"),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path to the loaded trace file"),
		),
		mcp.WithString("thread",
			mcp.Description("Thread to inspect (default from configuration)"),
		),
		mcp.WithNumber("top_n",
			mcp.Description("Number of functions per phase (default: 5)"),
		),
	), ts.phaseHotspots)

	return s
}

func (ts *toolServer) loadTrace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	profile, err := ts.app.loadProfile(filePath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load trace: %v", err)), nil
	}

	ts.mu.Lock()
	ts.traces[filePath] = &loadedTrace{profile: profile, resolvers: stack.NewSet(profile)}
	ts.mu.Unlock()

	names := make([]string, len(profile.Threads))
	for i := range profile.Threads {
		names[i] = profile.Threads[i].Name
	}

	result := fmt.Sprintf(`Trace loaded successfully!

File: %s
Threads: %d
Samples: %d
Origin: %.2f

Thread names: %s

Use analyze_frames to reconstruct frames.
`,
		filePath,
		len(profile.Threads),
		profile.SampleCount(),
		profile.Origin,
		strings.Join(names, ", "),
	)
	return mcp.NewToolResultText(result), nil
}

func (ts *toolServer) listThreads(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lt, ok := ts.trace(filePath)
	if !ok {
		return mcp.NewToolResultError("Trace not loaded. Use load_trace tool first"), nil
	}

	lt.mu.Lock()
	stats, err := analyzer.SummarizeThreads(ctx, lt.profile, lt.resolvers, ts.classifier, ts.app.cfg.Analysis.Workers)
	lt.mu.Unlock()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to summarize threads: %v", err)), nil
	}
	return mcp.NewToolResultText(analyzer.FormatThreadStatistics(stats)), nil
}

func (ts *toolServer) analyzeFrames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lt, ok := ts.trace(filePath)
	if !ok {
		return mcp.NewToolResultError("Trace not loaded. Use load_trace tool first"), nil
	}

	opts := ts.app.cfg.AnalyzerOptions()
	opts.Thread = request.GetString("thread", opts.Thread)
	opts.MergeThreshold = request.GetFloat("merge_threshold_ms", opts.MergeThreshold)
	opts.MergePasses = int(request.GetFloat("merge_passes", float64(opts.MergePasses)))
	if opts.MergePasses < 0 || opts.MergeThreshold < 0 {
		return mcp.NewToolResultError("merge_threshold_ms and merge_passes must be >= 0"), nil
	}

	an := analyzer.New(opts, analyzer.WithClassifier(ts.classifier), analyzer.WithLogger(ts.app.log))
	lt.mu.Lock()
	report, err := an.AnalyzeWith(lt.profile, lt.resolvers)
	lt.mu.Unlock()
	if err != nil {
		var nf *analyzer.ThreadNotFoundError
		if errors.As(err, &nf) {
			return mcp.NewToolResultError(fmt.Sprintf("%v. Use list_threads to see available threads", err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Analysis failed: %v", err)), nil
	}
	return mcp.NewToolResultText(analyzer.FormatReport(report)), nil
}

func (ts *toolServer) viewStack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	threadName, err := request.RequireString("thread")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	idx, err := request.RequireFloat("stack_index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	lt, ok := ts.trace(filePath)
	if !ok {
		return mcp.NewToolResultError("Trace not loaded. Use load_trace tool first"), nil
	}

	lt.mu.Lock()
	defer lt.mu.Unlock()
	res, ok := lt.resolvers.Lookup(threadName)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Thread %q not found", threadName)), nil
	}
	thread := res.Thread()

	index := int(idx)
	if index < 0 || index >= len(thread.StackTable) {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid stack index. Valid range: 0-%d", len(thread.StackTable)-1)), nil
	}

	path := res.Resolve(index)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📞 STACK #%d (%s)\n", index, thread.Name))
	sb.WriteString("═══════════════════════════════════════════════════\n\n")
	sb.WriteString(fmt.Sprintf("Phase: %s\n", ts.classifier.Classify(path)))
	sb.WriteString(fmt.Sprintf("Stack Depth: %d frames\n\n", len(path)))
	if len(path) == 0 {
		sb.WriteString("Stack could not be resolved (broken or cyclic prefix chain).\n")
	} else {
		sb.WriteString("Call Stack (root to leaf):\n\n")
		for i, fn := range path {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i, fn))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (ts *toolServer) phaseHotspots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lt, ok := ts.trace(filePath)
	if !ok {
		return mcp.NewToolResultError("Trace not loaded. Use load_trace tool first"), nil
	}

	threadName := request.GetString("thread", ts.app.cfg.Analysis.Thread)
	topN := int(request.GetFloat("top_n", 5))

	lt.mu.Lock()
	defer lt.mu.Unlock()
	res, ok := lt.resolvers.Lookup(threadName)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Thread %q not found", threadName)), nil
	}

	var sb strings.Builder
	writeHotspots(&sb, res, analyzer.Classify(lt.profile, res, ts.classifier), topN)
	return mcp.NewToolResultText(sb.String()), nil
}
