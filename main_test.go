package main

import (
	"os"
	"path/filepath"
	"testing"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func fr(file, name string, line uint32) frame {
	return frame{file: file, name: name, line: line}
}

func makeStackFile(stacks []stack) *stackFile {
	sf := &stackFile{period: defaultSamplePeriod}
	for _, s := range stacks {
		sf.stacks = append(sf.stacks, s)
		sf.totalSamples += s.count
	}
	return sf
}

// makeAppStats builds a small, known call graph:
//
//	main → work → leaf   (3 samples)
//	main → leaf          (2 samples)
func makeAppStats() *funcStats {
	return newFuncStats(makeStackFile([]stack{
		{frames: []frame{
			fr("app.Main", "main", 10),
			fr("app.Worker", "work", 20),
			fr("app.Worker", "leaf", 30),
		}, count: 3},
		{frames: []frame{
			fr("app.Main", "main", 10),
			fr("app.Worker", "leaf", 35),
		}, count: 2},
	}))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
