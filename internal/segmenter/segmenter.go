// Package segmenter cuts a finished document into speech-sized segments,
// preferring paragraph boundaries and falling back to sentence packing.
package segmenter

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// DefaultMaxSegmentChars matches the payload limit of the speech services.
const DefaultMaxSegmentChars = 5000

var ErrInvalidSegmentSize = errors.New("segmenter: max segment chars must be positive")

// Segment is one piece of the document destined for a single synthesis call.
type Segment struct {
	Text  string
	Index int
}

// Split packs the text into segments no longer than maxChars. Paragraphs are
// the preferred unit; a paragraph that alone exceeds the limit is packed
// sentence by sentence instead. Zero maxChars means the default.
func Split(text string, maxChars int) ([]Segment, error) {
	if maxChars == 0 {
		maxChars = DefaultMaxSegmentChars
	}
	if maxChars < 0 {
		return nil, ErrInvalidSegmentSize
	}

	var pieces []string
	var current strings.Builder
	currentLen := 0 // runes, to match the limit's unit

	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, strings.TrimSpace(current.String()))
			current.Reset()
			currentLen = 0
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paraLen := utf8.RuneCountInString(para)
		if paraLen > maxChars {
			flush()
			pieces = append(pieces, packSentences(para, maxChars)...)
			continue
		}
		if currentLen > 0 && currentLen+paraLen+2 > maxChars {
			flush()
		}
		if currentLen > 0 {
			current.WriteString("\n\n")
			currentLen += 2
		}
		current.WriteString(para)
		currentLen += paraLen
	}
	flush()

	segments := make([]Segment, 0, len(pieces))
	for i, p := range pieces {
		segments = append(segments, Segment{Text: p, Index: i})
	}
	return segments, nil
}

// packSentences greedily packs sentences of an oversized paragraph into
// segments under the limit. A single sentence longer than the limit is cut
// hard at the limit.
func packSentences(para string, maxChars int) []string {
	var out []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if current.Len() > 0 {
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
			currentLen = 0
		}
	}

	for _, sentence := range splitSentences(para) {
		if utf8.RuneCountInString(sentence) > maxChars {
			flush()
			runes := []rune(sentence)
			for len(runes) > maxChars {
				out = append(out, strings.TrimSpace(string(runes[:maxChars])))
				runes = runes[maxChars:]
			}
			sentence = strings.TrimSpace(string(runes))
			if sentence == "" {
				continue
			}
		}
		sentenceLen := utf8.RuneCountInString(sentence)
		if currentLen > 0 && currentLen+sentenceLen+1 > maxChars {
			flush()
		}
		if currentLen > 0 {
			current.WriteString(" ")
			currentLen++
		}
		current.WriteString(sentence)
		currentLen += sentenceLen
	}
	flush()
	return out
}

// splitSentences cuts on sentence terminators, keeping the terminator with
// its sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(string(runes[start : i+1]))
			if s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
