package main

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	sortParam     = "sort"
	funcNameParam = "func_name"
	defaultSort   = "cumulative"
)

// Column tokens on the table header line and the sort key each one maps to.
var sortColumns = []struct{ column, key string }{
	{"ncalls", "calls"},
	{"tottime", "time"},
	{"cumtime", "cumulative"},
	{"filename", "module"},
	{"lineno", "nfl"},
}

var (
	headerLineRe = regexp.MustCompile(`ncalls|tottime|cumtime`)
	statsLineRe  = regexp.MustCompile(`(.*)\((.*)\)$`)
)

// Trailing groups that denote unattributable frames, never linkified.
var ignoreFuncNames = map[string]bool{"function": true, "": true}

// capture wraps one loaded statistics object together with the buffer its
// printed output accumulates into. Handlers must hold mu across a whole
// sort/show/read sequence: the buffer is shared and reset on every read, so
// interleaved requests would bleed output into each other.
type capture struct {
	mu      sync.Mutex
	source  string
	path    string
	size    int64
	modTime time.Time
	stats   statsEngine
	buf     bytes.Buffer
}

func newCapture(source, path, eventType string) (*capture, error) {
	st, err := loadStats(path, eventType)
	if err != nil {
		return nil, err
	}
	c := &capture{source: source, path: path, stats: st}
	if fi, err := os.Stat(path); err == nil {
		c.size = fi.Size()
		c.modTime = fi.ModTime()
	}
	st.SetOutput(&c.buf)
	return c, nil
}

// sort applies a table ordering; an empty key means the default. Unknown
// keys are rejected by the statistics object and surface as request errors.
func (c *capture) sort(key string) error {
	if key == "" {
		key = defaultSort
	}
	return c.stats.SortBy(key)
}

func (c *capture) show(filter string) *capture {
	c.stats.PrintTable(filter)
	return c
}

func (c *capture) showCallers(name string) *capture {
	c.stats.PrintCallers(name)
	return c
}

func (c *capture) showCallees(name string) *capture {
	c.stats.PrintCallees(name)
	return c
}

// read drains the buffer, resets it for the next render, and returns the
// content as HTML: sort links on the table header row, drill-down links on
// every line ending in a function identity.
func (c *capture) read(q url.Values) template.HTML {
	raw := c.buf.String()
	c.buf.Reset()

	lines := strings.Split(raw, "\n")
	for i := range lines {
		lines[i] = html.EscapeString(lines[i])
	}
	linkifyHeader(lines, q)
	linkifyFuncNames(lines, q)
	return template.HTML(strings.Join(lines, "\n"))
}

// linkifyHeader rewrites the first line carrying the column markers,
// wrapping each known column name in a sort link. Only that line is
// touched: the table has a single header row.
func linkifyHeader(lines []string, q url.Values) {
	for i, line := range lines {
		if !headerLineRe.MatchString(line) {
			continue
		}
		for _, col := range sortColumns {
			anchor := fmt.Sprintf("<a href=%q>%s</a>", buildHref(q, sortParam, col.key), col.column)
			line = strings.Replace(line, col.column, anchor, 1)
		}
		lines[i] = line
		return
	}
}

// linkifyFuncNames wraps the trailing parenthesized function name of every
// stats line in a drill-down link carrying the full function identity
// (filename:lineno(name), reassembled from the line's last field). The
// greedy prefix keeps identities that themselves contain parentheses whole.
func linkifyFuncNames(lines []string, q url.Values) {
	for i, line := range lines {
		m := statsLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		prefix, funcName := m[1], m[2]
		if ignoreFuncNames[funcName] {
			continue
		}
		identity := html.UnescapeString(lastField(prefix) + "(" + funcName + ")")
		href := buildHref(q, funcNameParam, identity)
		lines[i] = fmt.Sprintf("%s(<a href=%q>%s</a>)", prefix, href, funcName)
	}
}

func lastField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
