package gecko

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// FormatError reports a trace document whose required structure is missing or malformed.
type FormatError struct {
	Thread int // thread position, -1 for document-level problems
	Name   string
	Field  string
	Err    error
}

func (e *FormatError) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid trace")
	if e.Thread >= 0 {
		sb.WriteString(fmt.Sprintf(": thread %d", e.Thread))
		if e.Name != "" {
			sb.WriteString(fmt.Sprintf(" (%q)", e.Name))
		}
	}
	if e.Field != "" {
		sb.WriteString(": field ")
		sb.WriteString(e.Field)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *FormatError) Unwrap() error { return e.Err }

// Option configures parsing
type Option func(*Profile)

// WithPrecision sets the number of decimal digits kept on relative times.
func WithPrecision(digits int) Option {
	return func(p *Profile) {
		p.Precision = digits
	}
}

type rawTable struct {
	Schema map[string]int      `json:"schema"`
	Data   [][]json.RawMessage `json:"data"`
}

type rawThread struct {
	Name        *string         `json:"name"`
	TID         json.RawMessage `json:"tid"`
	Samples     rawTable        `json:"samples"`
	StackTable  rawTable        `json:"stackTable"`
	FrameTable  rawTable        `json:"frameTable"`
	StringTable []string        `json:"stringTable"`
}

// ReadProfile reads a gecko profile file (plain or gzip-compressed JSON) and parses its contents.
func ReadProfile(filePath string, opts ...Option) (*Profile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	return Parse(data, opts...)
}

// Parse decodes raw trace bytes into a Profile and computes its time origin.
func Parse(data []byte, opts ...Option) (*Profile, error) {
	data, err := decompress(data)
	if err != nil {
		return nil, &FormatError{Thread: -1, Err: err}
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, &FormatError{Thread: -1, Err: fmt.Errorf("top level is not a mapping: %w", err)}
	}
	// a bare null decodes into a nil map without error
	if root == nil {
		return nil, &FormatError{Thread: -1, Err: fmt.Errorf("top level is not a mapping")}
	}
	rawThreads, ok := root["threads"]
	if !ok {
		return nil, &FormatError{Thread: -1, Field: "threads", Err: fmt.Errorf("missing")}
	}
	if isNull(rawThreads) {
		return nil, &FormatError{Thread: -1, Field: "threads", Err: fmt.Errorf("not a sequence: null")}
	}
	var threads []json.RawMessage
	if err := json.Unmarshal(rawThreads, &threads); err != nil {
		return nil, &FormatError{Thread: -1, Field: "threads", Err: fmt.Errorf("not a sequence: %w", err)}
	}

	profile := &Profile{
		Threads:   make([]Thread, 0, len(threads)),
		Precision: DefaultPrecision,
	}
	for _, opt := range opts {
		opt(profile)
	}

	for i, raw := range threads {
		thread, err := parseThread(i, raw)
		if err != nil {
			return nil, err
		}
		profile.Threads = append(profile.Threads, thread)
	}

	profile.Origin = originTime(profile.Threads)
	return profile, nil
}

func decompress(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress trace: %w", err)
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func parseThread(index int, raw json.RawMessage) (Thread, error) {
	if isNull(raw) {
		return Thread{}, &FormatError{Thread: index, Err: fmt.Errorf("thread is null")}
	}
	var rt rawThread
	if err := json.Unmarshal(raw, &rt); err != nil {
		return Thread{}, &FormatError{Thread: index, Err: fmt.Errorf("thread is not a well-formed mapping: %w", err)}
	}

	// Header: name and tid both fall back to placeholders
	thread := Thread{
		Name:        "Unnamed Thread",
		TID:         parseTID(rt.TID),
		StringTable: rt.StringTable,
	}
	if rt.Name != nil {
		thread.Name = *rt.Name
	}

	// Samples: time is required, stack and responsiveness may be null
	sc := SampleColumns{
		Stack:          column(rt.Samples.Schema, "stack", DefaultSampleColumns.Stack),
		Time:           column(rt.Samples.Schema, "time", DefaultSampleColumns.Time),
		Responsiveness: column(rt.Samples.Schema, "responsiveness", DefaultSampleColumns.Responsiveness),
	}
	thread.Samples = make([]Sample, 0, len(rt.Samples.Data))
	for i, rec := range rt.Samples.Data {
		t, ok := floatField(rec, sc.Time)
		if !ok {
			return Thread{}, &FormatError{
				Thread: index,
				Name:   thread.Name,
				Field:  fmt.Sprintf("samples.data[%d]", i),
				Err:    fmt.Errorf("time column %d missing or not a number", sc.Time),
			}
		}
		s := Sample{Stack: NoStack, Time: t}
		if idx, ok := intField(rec, sc.Stack); ok {
			s.Stack = idx
		}
		if r, ok := floatField(rec, sc.Responsiveness); ok {
			s.Responsiveness = &r
		}
		thread.Samples = append(thread.Samples, s)
	}

	// Stack table: a null prefix marks a root record
	stc := StackColumns{
		Prefix: column(rt.StackTable.Schema, "prefix", DefaultStackColumns.Prefix),
		Frame:  column(rt.StackTable.Schema, "frame", DefaultStackColumns.Frame),
	}
	thread.StackTable = make([]StackRecord, 0, len(rt.StackTable.Data))
	for _, rec := range rt.StackTable.Data {
		sr := StackRecord{Prefix: NoStack, Frame: -1}
		if p, ok := intField(rec, stc.Prefix); ok {
			sr.Prefix = p
		}
		if f, ok := intField(rec, stc.Frame); ok {
			sr.Frame = f
		}
		thread.StackTable = append(thread.StackTable, sr)
	}

	// Frame table: location points into the string table
	fc := FrameColumns{
		Location: column(rt.FrameTable.Schema, "location", DefaultFrameColumns.Location),
	}
	thread.FrameTable = make([]FrameRecord, 0, len(rt.FrameTable.Data))
	for _, rec := range rt.FrameTable.Data {
		fr := FrameRecord{Location: -1}
		if loc, ok := intField(rec, fc.Location); ok {
			fr.Location = loc
		}
		thread.FrameTable = append(thread.FrameTable, fr)
	}

	return thread, nil
}

func column(schema map[string]int, key string, def int) int {
	if col, ok := schema[key]; ok {
		return col
	}
	return def
}

func parseTID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "N/A"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func floatField(rec []json.RawMessage, col int) (float64, bool) {
	if col < 0 || col >= len(rec) {
		return 0, false
	}
	var v *float64
	if err := json.Unmarshal(rec[col], &v); err != nil || v == nil {
		return 0, false
	}
	return *v, true
}

func intField(rec []json.RawMessage, col int) (int, bool) {
	f, ok := floatField(rec, col)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func originTime(threads []Thread) float64 {
	origin := math.Inf(1)
	for i := range threads {
		for _, s := range threads[i].Samples {
			if s.Time < origin {
				origin = s.Time
			}
		}
	}
	if math.IsInf(origin, 1) {
		return 0
	}
	return origin
}
