package main

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// registry maps capture names to loaded statistics views. Sources that fail
// to load land in the unsupported list instead; every candidate name ends up
// in exactly one of the two.
type registry struct {
	sources  []string // explicit-list mode
	watchDir string   // watch mode when non-empty
	event    string
	log      zerolog.Logger

	mu          sync.Mutex
	loaded      map[string]*capture
	names       []string // sorted, for a stable index listing
	unsupported []string
}

func newRegistry(sources []string, watchDir, event string, log zerolog.Logger) *registry {
	return &registry{
		sources:  sources,
		watchDir: watchDir,
		event:    event,
		log:      log,
		loaded:   make(map[string]*capture),
	}
}

// watching reports whether the registry rescans a directory on each index
// view rather than serving a fixed capture list.
func (r *registry) watching() bool { return r.watchDir != "" }

type candidate struct {
	name string
	path string
}

func (r *registry) candidates() ([]candidate, error) {
	if !r.watching() {
		out := make([]candidate, 0, len(r.sources))
		for _, s := range r.sources {
			out = append(out, candidate{name: s, path: s})
		}
		return out, nil
	}

	entries, err := os.ReadDir(r.watchDir)
	if err != nil {
		return nil, err
	}
	var out []candidate
	for _, e := range entries {
		// Directories and special files are not capture candidates.
		if !e.Type().IsRegular() {
			continue
		}
		out = append(out, candidate{name: e.Name(), path: filepath.Join(r.watchDir, e.Name())})
	}
	return out, nil
}

// load rebuilds the registry from scratch, replacing any previous state.
// Load failures are per-source: the source is recorded as unsupported and
// loading continues.
func (r *registry) load() error {
	candidates, err := r.candidates()
	if err != nil {
		return err
	}

	loaded := make(map[string]*capture, len(candidates))
	var names, unsupported []string
	for _, src := range candidates {
		c, err := newCapture(src.name, src.path, r.event)
		if err != nil {
			r.log.Warn().Str("source", src.name).Err(err).Msg("unsupported capture")
			unsupported = append(unsupported, src.name)
			continue
		}
		loaded[src.name] = c
		names = append(names, src.name)
	}
	sort.Strings(names)
	sort.Strings(unsupported)

	r.mu.Lock()
	r.loaded, r.names, r.unsupported = loaded, names, unsupported
	r.mu.Unlock()
	return nil
}

func (r *registry) get(name string) (*capture, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.loaded[name]
	return c, ok
}

// snapshot returns the current index listing: loaded captures in name order
// and the unsupported source names.
func (r *registry) snapshot() (loaded []*capture, unsupported []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loaded = make([]*capture, 0, len(r.names))
	for _, n := range r.names {
		loaded = append(loaded, r.loaded[n])
	}
	return loaded, append([]string(nil), r.unsupported...)
}
