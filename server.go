package main

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type server struct {
	reg     *registry
	log     zerolog.Logger
	verbose bool
}

func newServer(reg *registry, log zerolog.Logger, verbose bool) *server {
	return &server{reg: reg, log: log, verbose: verbose}
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/capture/", s.handleCapture)
	if s.verbose {
		return s.logRequests(mux)
	}
	return mux
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	// In watch mode every index view rescans the directory so freshly
	// produced captures show up without a restart.
	if s.reg.watching() {
		if err := s.reg.load(); err != nil {
			s.log.Error().Err(err).Msg("watch directory scan failed")
			http.Error(w, "cannot scan watch directory", http.StatusInternalServerError)
			return
		}
	}

	loaded, unsupported := s.reg.snapshot()
	entries := make([]indexEntry, 0, len(loaded))
	for _, c := range loaded {
		entries = append(entries, indexEntry{
			Name:    c.source,
			Href:    "/capture/" + url.PathEscape(c.source),
			Size:    c.size,
			ModTime: c.modTime,
		})
	}
	renderIndex(w, indexData{Captures: entries, Unsupported: unsupported})
}

func (s *server) handleCapture(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/capture/"))
	if err != nil || name == "" {
		http.NotFound(w, r)
		return
	}
	c, ok := s.reg.get(name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	sortKey := q.Get(sortParam)
	funcName := q.Get(funcNameParam)

	// The capture's buffer is shared; hold its lock for the whole
	// sort/show/read sequence.
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sort(sortKey); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data := detailData{
		Name:     c.source,
		FuncName: funcName,
		Stats:    c.show(funcName).read(q),
	}
	if funcName != "" {
		_ = c.sort(sortKey) // key already validated above
		data.Callers = c.showCallers(funcName).read(q)
		_ = c.sort(sortKey)
		data.Callees = c.showCallees(funcName).read(q)
	}
	renderDetail(w, data)
}
