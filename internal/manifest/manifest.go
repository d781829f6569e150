// Package manifest records the outcome of every synthesized segment in the
// original document order.
package manifest

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Result is the outcome of one segment synthesis.
type Result struct {
	Index     int
	Path      string
	SizeBytes int
	Failed    bool
	Error     string
}

// Sort orders results by their original segment index.
func Sort(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})
}

// Render produces the manifest body: one line per segment in index order,
// zero-padded index and audio path separated by a pipe. Failed segments keep
// their line with an empty path so the gap stays visible.
func Render(results []Result) string {
	ordered := make([]Result, len(results))
	copy(ordered, results)
	Sort(ordered)

	var b strings.Builder
	for _, r := range ordered {
		path := r.Path
		if r.Failed {
			path = ""
		}
		fmt.Fprintf(&b, "%04d|%s\n", r.Index, path)
	}
	return b.String()
}

// Write renders the manifest and writes it to path.
func Write(path string, results []Result) error {
	if err := os.WriteFile(path, []byte(Render(results)), 0o644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	return nil
}

// FailedCount reports how many segments failed permanently.
func FailedCount(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Failed {
			n++
		}
	}
	return n
}
