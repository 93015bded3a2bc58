package main

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/pprof/profile"
	"github.com/grafana/jfr-parser/parser"
	"github.com/grafana/jfr-parser/parser/types"
)

// Sample period assumed for formats that do not record one (collapsed text,
// JFR execution samples at the async-profiler default interval).
const defaultSamplePeriod = 10 * time.Millisecond

// ---------------------------------------------------------------------------
// Data model
// ---------------------------------------------------------------------------

// frame is one entry of a sampled call stack. file is the source file for
// pprof captures and the dotted class/module path for JFR and collapsed
// captures; it is empty when the frame has no attribution.
type frame struct {
	name string
	file string
	line uint32 // 0 = unknown
}

type stack struct {
	frames []frame // root → leaf order
	count  int
	thread string // "" if unknown
}

type stackFile struct {
	stacks       []stack
	totalSamples int
	period       time.Duration
}

// splitFrame turns a raw frame symbol like "com/example/App.process" or
// "com.example.App.process" into its module and method parts. A symbol with
// no separator has no module.
func splitFrame(symbol string, line uint32) frame {
	normalized := strings.ReplaceAll(symbol, "/", ".")
	if idx := strings.LastIndex(normalized, "."); idx > 0 {
		return frame{name: normalized[idx+1:], file: normalized[:idx], line: line}
	}
	return frame{name: normalized, line: line}
}

// ---------------------------------------------------------------------------
// Frame / thread resolution (JFR)
// ---------------------------------------------------------------------------

func resolveFrame(p *parser.Parser, sf types.StackFrame) frame {
	method := p.GetMethod(sf.Method)
	if method == nil {
		return frame{name: "<unknown>", line: sf.LineNumber}
	}
	className := ""
	class := p.GetClass(method.Type)
	if class != nil {
		className = p.GetSymbolString(class.Name)
	}
	return frame{
		name: p.GetSymbolString(method.Name),
		file: strings.ReplaceAll(className, "/", "."),
		line: sf.LineNumber,
	}
}

func resolveThread(p *parser.Parser, ref types.ThreadRef) string {
	idx, ok := p.Threads.IDMap[ref]
	if !ok {
		return ""
	}
	t := &p.Threads.Thread[idx]
	if t.JavaName != "" {
		return t.JavaName
	}
	return t.OsName
}

// ---------------------------------------------------------------------------
// JFR → stackFile
// ---------------------------------------------------------------------------

func readMaybeGzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gr.Close()
		return io.ReadAll(gr)
	}
	return io.ReadAll(f)
}

// stackKey is used to aggregate identical stacks.
type stackKey struct {
	frames string // semicolon-joined
	thread string
}

func frameKey(frames []frame) string {
	parts := make([]string, len(frames))
	for i, fr := range frames {
		parts[i] = fmt.Sprintf("%s:%d(%s)", fr.file, fr.line, fr.name)
	}
	return strings.Join(parts, ";")
}

type aggValue struct {
	frames []frame
	count  int
}

func parseJFR(path, eventType string) (*stackFile, error) {
	buf, err := readMaybeGzip(path)
	if err != nil {
		return nil, err
	}

	p := parser.NewParser(buf, parser.Options{})
	agg := make(map[stackKey]*aggValue)

	for {
		typ, err := p.ParseEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse event: %w", err)
		}

		var stRef types.StackTraceRef
		var thRef types.ThreadRef
		var match bool

		switch {
		case eventType == "cpu" && typ == p.TypeMap.T_EXECUTION_SAMPLE:
			stRef = p.ExecutionSample.StackTrace
			thRef = p.ExecutionSample.SampledThread
			match = true
		case eventType == "wall" && typ == p.TypeMap.T_WALL_CLOCK_SAMPLE:
			stRef = p.WallClockSample.StackTrace
			thRef = p.WallClockSample.SampledThread
			match = true
		case eventType == "alloc" && typ == p.TypeMap.T_ALLOC_IN_NEW_TLAB:
			stRef = p.ObjectAllocationInNewTLAB.StackTrace
			thRef = p.ObjectAllocationInNewTLAB.EventThread
			match = true
		case eventType == "alloc" && typ == p.TypeMap.T_ALLOC_OUTSIDE_TLAB:
			stRef = p.ObjectAllocationOutsideTLAB.StackTrace
			thRef = p.ObjectAllocationOutsideTLAB.EventThread
			match = true
		case eventType == "alloc" && typ == p.TypeMap.T_ALLOC_SAMPLE:
			stRef = p.ObjectAllocationSample.StackTrace
			thRef = p.ObjectAllocationSample.EventThread
			match = true
		case eventType == "lock" && typ == p.TypeMap.T_MONITOR_ENTER:
			stRef = p.JavaMonitorEnter.StackTrace
			thRef = p.JavaMonitorEnter.EventThread
			match = true
		}

		if !match {
			continue
		}

		st := p.GetStacktrace(stRef)
		if st == nil || len(st.Frames) == 0 {
			continue
		}

		// JFR frames are leaf-first; reverse to root-first.
		n := len(st.Frames)
		frames := make([]frame, n)
		for i, f := range st.Frames {
			frames[n-1-i] = resolveFrame(p, f)
		}

		thread := resolveThread(p, thRef)
		key := stackKey{frames: frameKey(frames), thread: thread}
		if v, ok := agg[key]; ok {
			v.count++
		} else {
			agg[key] = &aggValue{frames: frames, count: 1}
		}
	}

	sf := &stackFile{period: defaultSamplePeriod}
	for k, v := range agg {
		sf.stacks = append(sf.stacks, stack{frames: v.frames, count: v.count, thread: k.thread})
		sf.totalSamples += v.count
	}
	return sf, nil
}

// ---------------------------------------------------------------------------
// Collapsed-stack text → stackFile
// ---------------------------------------------------------------------------

var (
	collapsedLineRe  = regexp.MustCompile(`^(.+)\s+(\d+)$`)
	threadFrameRe    = regexp.MustCompile(`^\[(.+?)(?:\s+tid=\d+)?\]$`)
	annotatedFrameRe = regexp.MustCompile(`^(.+?):(\d+)(?:_\[[^\]]*\])?$`)
)

func parseCollapsed(r io.Reader) (*stackFile, error) {
	sf := &stackFile{period: defaultSamplePeriod}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		m := collapsedLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		framesStr := m[1]
		count, _ := strconv.Atoi(m[2])
		if count <= 0 {
			continue
		}

		parts := strings.Split(framesStr, ";")
		thread := ""
		startIdx := 0

		// First frame may be a thread marker.
		if len(parts) > 0 {
			if tm := threadFrameRe.FindStringSubmatch(parts[0]); tm != nil {
				thread = tm[1]
				startIdx = 1
			}
		}

		frames := make([]frame, 0, len(parts)-startIdx)
		for _, part := range parts[startIdx:] {
			if am := annotatedFrameRe.FindStringSubmatch(part); am != nil {
				ln, _ := strconv.ParseUint(am[2], 10, 32)
				frames = append(frames, splitFrame(am[1], uint32(ln)))
			} else {
				frames = append(frames, splitFrame(part, 0))
			}
		}

		if len(frames) == 0 {
			continue
		}

		sf.stacks = append(sf.stacks, stack{frames: frames, count: count, thread: thread})
		sf.totalSamples += count
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sf, nil
}

// ---------------------------------------------------------------------------
// pprof protobuf → stackFile
// ---------------------------------------------------------------------------

func parsePprof(data []byte) (*stackFile, error) {
	p, err := profile.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	// Count samples via the "samples" value column when present.
	valueIdx := 0
	for i, st := range p.SampleType {
		if st.Type == "samples" {
			valueIdx = i
			break
		}
	}

	period := defaultSamplePeriod
	if p.PeriodType != nil && p.PeriodType.Unit == "nanoseconds" && p.Period > 0 {
		period = time.Duration(p.Period)
	}

	sf := &stackFile{period: period}
	for _, s := range p.Sample {
		count := int(s.Value[valueIdx])
		if count <= 0 {
			continue
		}

		var frames []frame
		// Locations are leaf-first; lines within a location are
		// innermost-inline-first. Walk both backwards for root-first order.
		for i := len(s.Location) - 1; i >= 0; i-- {
			loc := s.Location[i]
			for j := len(loc.Line) - 1; j >= 0; j-- {
				ln := loc.Line[j]
				if ln.Function == nil {
					frames = append(frames, frame{name: "<unknown>"})
					continue
				}
				frames = append(frames, frame{
					name: ln.Function.Name,
					file: ln.Function.Filename,
					line: uint32(ln.Line),
				})
			}
		}
		if len(frames) == 0 {
			continue
		}

		thread := ""
		if vs := s.Label["thread"]; len(vs) > 0 {
			thread = vs[0]
		}

		sf.stacks = append(sf.stacks, stack{frames: frames, count: count, thread: thread})
		sf.totalSamples += count
	}
	return sf, nil
}

// ---------------------------------------------------------------------------
// Unified input: format detection
// ---------------------------------------------------------------------------

func isJFRPath(path string) bool {
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".jfr") || strings.HasSuffix(p, ".jfr.gz")
}

func isCollapsedPath(path string) bool {
	p := strings.ToLower(path)
	for _, suffix := range []string{".txt", ".collapsed", ".folded"} {
		if strings.HasSuffix(p, suffix) || strings.HasSuffix(p, suffix+".gz") {
			return true
		}
	}
	return false
}

// openCapture reads and parses a capture file. JFR and collapsed formats are
// recognized by extension; anything else is tried as a pprof protobuf first,
// then as collapsed text. A capture with no samples is an error so that
// unreadable or junk files surface as unsupported rather than as empty pages.
func openCapture(path, eventType string) (*stackFile, error) {
	var sf *stackFile
	var err error

	switch {
	case isJFRPath(path):
		sf, err = parseJFR(path, eventType)
	case isCollapsedPath(path):
		var data []byte
		data, err = readMaybeGzip(path)
		if err == nil {
			sf, err = parseCollapsed(bytes.NewReader(data))
		}
	default:
		var data []byte
		data, err = os.ReadFile(path)
		if err == nil {
			sf, err = parsePprof(data)
			if err != nil {
				sf, err = parseCollapsed(bytes.NewReader(data))
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if sf.totalSamples == 0 {
		return nil, fmt.Errorf("load %s: no samples", path)
	}
	return sf, nil
}
