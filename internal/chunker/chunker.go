// Package chunker splits a long document into overlapping, sentence-aligned
// windows sized to fit one external service call.
package chunker

// Chunk is one overlapping window of the source document. Offsets are rune
// positions into the original text, end exclusive.
type Chunk struct {
	Text  string
	Start int
	End   int
	Index int
}

// Config holds chunking parameters. All sizes are in runes.
type Config struct {
	// MaxChunkChars is the upper bound for one window before sentence
	// alignment extends it.
	MaxChunkChars int

	// OverlapChars is the shared region between consecutive windows.
	OverlapChars int

	// LookAhead bounds how far boundary adjustment may scan for a sentence
	// terminator. Zero means DefaultLookAhead.
	LookAhead int
}

// DefaultLookAhead bounds boundary scans so terminator-free text cannot cause
// runaway walks.
const DefaultLookAhead = 200

func (c Config) Validate() error {
	if c.MaxChunkChars <= 0 {
		return ErrInvalidChunkSize
	}
	if c.OverlapChars <= 0 {
		return ErrInvalidOverlap
	}
	if c.OverlapChars >= c.MaxChunkChars {
		return ErrOverlapTooLarge
	}
	return nil
}

func (c Config) lookAhead() int {
	if c.LookAhead > 0 {
		return c.LookAhead
	}
	return DefaultLookAhead
}

// Split walks the text left to right producing overlapping chunks. The union
// of all chunk ranges covers the whole input; every boundary is moved to the
// nearest sentence terminator when one exists within the look-ahead bound,
// otherwise the raw offset is used.
func Split(text string, cfg Config) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, ErrEmptyText
	}
	if n <= cfg.MaxChunkChars {
		return []Chunk{{Text: text, Start: 0, End: n, Index: 0}}, nil
	}

	bound := cfg.lookAhead()
	var chunks []Chunk
	start := 0
	for start < n {
		end := start + cfg.MaxChunkChars
		if end >= n {
			end = n
		} else {
			end = extendToTerminator(runes, end, bound)
		}
		chunks = append(chunks, Chunk{
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
			Index: len(chunks),
		})
		if end >= n {
			break
		}
		// The raw next start always advances because the window is larger
		// than the overlap; keep the sentence-aligned start only when it
		// advances too.
		next := end - cfg.OverlapChars
		if aligned := retreatToSentenceStart(runes, next, bound); aligned > start {
			next = aligned
		}
		start = next
	}
	return chunks, nil
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// extendToTerminator moves end forward to just past the next sentence
// terminator, scanning at most bound runes.
func extendToTerminator(runes []rune, end, bound int) int {
	limit := end + bound
	if limit > len(runes) {
		limit = len(runes)
	}
	for i := end; i < limit; i++ {
		if isTerminator(runes[i]) {
			return i + 1
		}
	}
	return end
}

// retreatToSentenceStart walks pos backward until it sits just after the
// preceding sentence terminator, scanning at most bound runes. Returns the
// raw position when no terminator is found.
func retreatToSentenceStart(runes []rune, pos, bound int) int {
	for i := pos; i > 0 && pos-i < bound; i-- {
		if isTerminator(runes[i-1]) {
			return i
		}
	}
	return pos
}
