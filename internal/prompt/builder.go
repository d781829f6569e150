// Package prompt composes the instructions sent to the text service for each
// chunk, carrying forward a short summary of the preceding output.
package prompt

import (
	"fmt"
	"strings"
)

// SummaryMaxChars bounds the context summary carried between chunks.
const SummaryMaxChars = 500

// Context carries everything the builder needs for one chunk.
type Context struct {
	ChunkIndex      int
	TotalChunks     int
	PreviousSummary string
	TargetWords     int
}

// BuildChunkPrompt composes the chunk instruction deterministically: previous
// summary (when present), explicit position marker, then the length
// instruction with a position-dependent hint.
func BuildChunkPrompt(basePrompt string, pc Context) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if pc.PreviousSummary != "" {
		b.WriteString("\n\nContext from the previous part:\n")
		b.WriteString(pc.PreviousSummary)
	}

	fmt.Fprintf(&b, "\n\nThis is part %d of %d.", pc.ChunkIndex+1, pc.TotalChunks)

	hint := "Open with an introduction to the topic."
	if pc.ChunkIndex > 0 {
		hint = "Continue developing the topic from the previous part."
	}
	fmt.Fprintf(&b, "\n\nREQUIREMENTS:\n"+
		"1. This part should contain roughly %d words.\n"+
		"2. Develop every idea in detail, add examples and explanations.\n"+
		"3. Stay coherent with the preceding parts.\n"+
		"4. %s\n", pc.TargetWords, hint)

	return b.String()
}

// BuildExpansionPrompt asks the service for additional material only, using a
// trailing slice of the document as context.
func BuildExpansionPrompt(basePrompt, tail string, neededWords int) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	fmt.Fprintf(&b, "\n\nThe text came out shorter than required. "+
		"Write approximately %d additional words that continue it.\n"+
		"Add more detail, examples and development of the ideas already present.\n"+
		"Keep the style and tone of the original. Return ONLY the continuation, not a rewrite.\n\n"+
		"The text ends with:\n%s\n\nContinuation:", neededWords, tail)
	return b.String()
}

// TargetWordsForChunk amortizes the remaining word budget over the remaining
// chunks, re-balancing earlier over- or under-shoot onto later chunks.
func TargetWordsForChunk(overallTarget, wordsSoFar, totalChunks, chunkIndex int) int {
	remainingChunks := totalChunks - chunkIndex
	if remainingChunks <= 0 {
		return 0
	}
	remainingWords := overallTarget - wordsSoFar
	if remainingWords <= 0 {
		return 0
	}
	return remainingWords / remainingChunks
}

// WordCount counts whitespace-delimited words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// ExtractSummary takes the first two and last two sentences of text, bounded
// by maxLen characters, as context for the next chunk.
func ExtractSummary(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = SummaryMaxChars
	}
	sentences := strings.Split(text, ".")
	var important []string
	if len(sentences) > 4 {
		important = append(important, sentences[:2]...)
		important = append(important, sentences[len(sentences)-2:]...)
	} else {
		important = sentences
	}

	var picked []string
	length := 0
	for _, s := range important {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if length+len(s) >= maxLen {
			break
		}
		picked = append(picked, s)
		length += len(s)
	}
	if len(picked) == 0 {
		return ""
	}
	return strings.Join(picked, ". ") + "."
}
