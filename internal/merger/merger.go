// Package merger reassembles ordered chunk outputs into one document,
// stripping duplicated boundary text at the seams.
package merger

import "strings"

const (
	// DefaultMaxScan is the largest candidate overlap length considered.
	DefaultMaxScan = 500

	// DefaultMinOverlap is the significance threshold below which matching
	// boundary text is kept as-is.
	DefaultMinOverlap = 50
)

// Options tune the overlap search. Zero values mean the defaults.
type Options struct {
	MaxScan    int
	MinOverlap int
}

func (o Options) maxScan() int {
	if o.MaxScan > 0 {
		return o.MaxScan
	}
	return DefaultMaxScan
}

func (o Options) minOverlap() int {
	if o.MinOverlap > 0 {
		return o.MinOverlap
	}
	return DefaultMinOverlap
}

// Merge joins ordered chunk outputs with the default overlap thresholds.
func Merge(chunks []string) string {
	return MergeWith(chunks, Options{})
}

// MergeWith joins ordered chunk outputs into a single document. The output of
// the first chunk seeds the document; every later chunk has any significant
// overlap with the current tail stripped before being appended. The merge is
// a pure function of its input: it never reorders and never drops a chunk.
func MergeWith(chunks []string, opts Options) string {
	if len(chunks) == 0 {
		return ""
	}

	merged := chunks[0]
	for _, chunk := range chunks[1:] {
		if overlap := findOverlap(merged, chunk, opts); overlap != "" {
			chunk = chunk[len(overlap):]
		}
		// Close the previous piece so paragraphs do not run together.
		if !endsWithTerminator(merged) {
			merged += "."
		}
		merged += "\n\n" + strings.TrimLeft(chunk, " \t\n")
	}
	return merged
}

// findOverlap returns the longest suffix of merged that is also a prefix of
// chunk, scanning candidate lengths from the upper bound down to the
// significance threshold.
func findOverlap(merged, chunk string, opts Options) string {
	max := opts.maxScan()
	if len(merged) < max {
		max = len(merged)
	}
	if len(chunk) < max {
		max = len(chunk)
	}
	for length := max; length >= opts.minOverlap(); length-- {
		if merged[len(merged)-length:] == chunk[:length] {
			return chunk[:length]
		}
	}
	return ""
}

func endsWithTerminator(s string) bool {
	s = strings.TrimRight(s, " \t\n")
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
