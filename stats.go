package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// statsEngine is the capability a capture view needs from a statistics
// object: re-sortable, printable in three shapes, writing to a sink the
// owner controls. Any stats implementation satisfying this is substitutable.
type statsEngine interface {
	SortBy(key string) error
	PrintTable(filter string)
	PrintCallers(name string)
	PrintCallees(name string)
	SetOutput(w io.Writer)
}

var sortLabels = map[string]string{
	"calls":      "call count",
	"cumulative": "cumulative time",
	"module":     "file name",
	"nfl":        "name/file/line",
	"time":       "internal time",
}

func validSortKeys() string {
	keys := make([]string, 0, len(sortLabels))
	for k := range sortLabels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// ---------------------------------------------------------------------------
// Function table
// ---------------------------------------------------------------------------

type funcKey struct {
	file string
	name string
}

type funcEntry struct {
	file  string
	name  string
	line  uint32 // lowest observed source line, 0 = unknown
	calls int    // sample occurrences
	self  time.Duration
	cum   time.Duration
}

// id renders the function identity the way pstats does: filename:lineno(name).
// Frames with no source attribution get the "~" placeholder module.
func (e *funcEntry) id() string {
	file := e.file
	if file == "" {
		file = "~"
	}
	return fmt.Sprintf("%s:%d(%s)", file, e.line, e.name)
}

type edge struct {
	entry   *funcEntry
	samples int
}

// funcStats aggregates sampled call stacks into a flat per-function table
// with caller/callee edges. All print operations write to out, which the
// owning capture view points at its own buffer.
type funcStats struct {
	out          io.Writer
	period       time.Duration
	totalSamples int
	sortKey      string
	entries      []*funcEntry
	callers      map[*funcEntry][]edge // callee → callers
	callees      map[*funcEntry][]edge // caller → callees
}

// loadStats opens a capture file and builds its statistics object.
func loadStats(path, eventType string) (*funcStats, error) {
	sf, err := openCapture(path, eventType)
	if err != nil {
		return nil, err
	}
	return newFuncStats(sf), nil
}

func newFuncStats(sf *stackFile) *funcStats {
	s := &funcStats{
		out:          io.Discard,
		period:       sf.period,
		totalSamples: sf.totalSamples,
	}

	byKey := make(map[funcKey]*funcEntry)
	ensure := func(fr frame) *funcEntry {
		k := funcKey{file: fr.file, name: fr.name}
		e, ok := byKey[k]
		if !ok {
			e = &funcEntry{file: fr.file, name: fr.name}
			byKey[k] = e
		}
		if fr.line > 0 && (e.line == 0 || fr.line < e.line) {
			e.line = fr.line
		}
		return e
	}

	callerCounts := make(map[*funcEntry]map[*funcEntry]int)
	calleeCounts := make(map[*funcEntry]map[*funcEntry]int)
	addEdge := func(m map[*funcEntry]map[*funcEntry]int, from, to *funcEntry, n int) {
		inner, ok := m[from]
		if !ok {
			inner = make(map[*funcEntry]int)
			m[from] = inner
		}
		inner[to] += n
	}

	for i := range sf.stacks {
		st := &sf.stacks[i]
		dur := time.Duration(st.count) * sf.period

		seen := make(map[*funcEntry]bool)
		var prev *funcEntry
		for j, fr := range st.frames {
			e := ensure(fr)
			e.calls += st.count
			// Cumulative time counts each function once per stack so
			// recursion does not inflate it.
			if !seen[e] {
				e.cum += dur
				seen[e] = true
			}
			if j == len(st.frames)-1 {
				e.self += dur
			}
			if prev != nil {
				addEdge(callerCounts, e, prev, st.count)
				addEdge(calleeCounts, prev, e, st.count)
			}
			prev = e
		}
	}

	for _, e := range byKey {
		s.entries = append(s.entries, e)
	}

	s.callers = flattenEdges(callerCounts)
	s.callees = flattenEdges(calleeCounts)
	s.sortKey = "cumulative"
	s.applySort()
	return s
}

// flattenEdges converts edge count maps into slices sorted by sample count,
// heaviest first, ties broken by identity for stable output.
func flattenEdges(counts map[*funcEntry]map[*funcEntry]int) map[*funcEntry][]edge {
	out := make(map[*funcEntry][]edge, len(counts))
	for from, inner := range counts {
		edges := make([]edge, 0, len(inner))
		for to, n := range inner {
			edges = append(edges, edge{entry: to, samples: n})
		}
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].samples != edges[j].samples {
				return edges[i].samples > edges[j].samples
			}
			return edges[i].entry.id() < edges[j].entry.id()
		})
		out[from] = edges
	}
	return out
}

func (s *funcStats) SetOutput(w io.Writer) { s.out = w }

func (s *funcStats) total() time.Duration {
	return time.Duration(s.totalSamples) * s.period
}

// ---------------------------------------------------------------------------
// Sorting
// ---------------------------------------------------------------------------

func (s *funcStats) SortBy(key string) error {
	if _, ok := sortLabels[key]; !ok {
		return fmt.Errorf("unknown sort key %q (valid: %s)", key, validSortKeys())
	}
	s.sortKey = key
	s.applySort()
	return nil
}

func (s *funcStats) applySort() {
	var less func(a, b *funcEntry) bool
	switch s.sortKey {
	case "calls":
		less = func(a, b *funcEntry) bool {
			if a.calls != b.calls {
				return a.calls > b.calls
			}
			return a.id() < b.id()
		}
	case "time":
		less = func(a, b *funcEntry) bool {
			if a.self != b.self {
				return a.self > b.self
			}
			return a.id() < b.id()
		}
	case "module":
		less = func(a, b *funcEntry) bool {
			if a.file != b.file {
				return a.file < b.file
			}
			if a.line != b.line {
				return a.line < b.line
			}
			return a.name < b.name
		}
	case "nfl":
		less = func(a, b *funcEntry) bool {
			if a.name != b.name {
				return a.name < b.name
			}
			if a.file != b.file {
				return a.file < b.file
			}
			return a.line < b.line
		}
	default: // cumulative
		less = func(a, b *funcEntry) bool {
			if a.cum != b.cum {
				return a.cum > b.cum
			}
			return a.id() < b.id()
		}
	}
	sort.SliceStable(s.entries, func(i, j int) bool { return less(s.entries[i], s.entries[j]) })
}

// ---------------------------------------------------------------------------
// Printing
// ---------------------------------------------------------------------------

func (s *funcStats) matching(filter string) []*funcEntry {
	if filter == "" {
		return s.entries
	}
	var out []*funcEntry
	for _, e := range s.entries {
		if strings.Contains(e.id(), filter) {
			out = append(out, e)
		}
	}
	return out
}

func (s *funcStats) PrintTable(filter string) {
	entries := s.matching(filter)

	fmt.Fprintf(s.out, "%d samples (period %s), %.3f seconds total\n\n",
		s.totalSamples, s.period, s.total().Seconds())
	if filter != "" {
		fmt.Fprintf(s.out, "List reduced from %d to %d due to restriction <'%s'>\n\n",
			len(s.entries), len(entries), filter)
	}
	fmt.Fprintf(s.out, "Ordered by: %s\n\n", sortLabels[s.sortKey])
	fmt.Fprintf(s.out, "   ncalls  tottime  percall  cumtime  percall filename:lineno(function)\n")

	for _, e := range entries {
		selfPer, cumPer := 0.0, 0.0
		if e.calls > 0 {
			selfPer = e.self.Seconds() / float64(e.calls)
			cumPer = e.cum.Seconds() / float64(e.calls)
		}
		fmt.Fprintf(s.out, "%9d %8.3f %8.3f %8.3f %8.3f %s\n",
			e.calls, e.self.Seconds(), selfPer, e.cum.Seconds(), cumPer, e.id())
	}
}

func (s *funcStats) PrintCallers(name string) {
	s.printEdges(name, s.callers, "<-", "was called by...")
}

func (s *funcStats) PrintCallees(name string) {
	s.printEdges(name, s.callees, "->", "called...")
}

func (s *funcStats) printEdges(name string, edgeMap map[*funcEntry][]edge, marker, heading string) {
	matched := s.matching(name)
	if len(matched) == 0 {
		fmt.Fprintf(s.out, "no functions matching '%s'\n", name)
		return
	}

	fmt.Fprintf(s.out, "Ordered by: %s\n\n", sortLabels[s.sortKey])
	fmt.Fprintf(s.out, "Function %s\n", heading)

	for _, e := range matched {
		fmt.Fprintf(s.out, "%s\n", e.id())
		edges := edgeMap[e]
		if len(edges) == 0 {
			fmt.Fprintf(s.out, "    %s\n", marker)
			continue
		}
		for _, ed := range edges {
			cum := (time.Duration(ed.samples) * s.period).Seconds()
			fmt.Fprintf(s.out, "    %s %9d %8.3f  %s\n", marker, ed.samples, cum, ed.entry.id())
		}
	}
}
