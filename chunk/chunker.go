// Package chunk splits extracted documents into bounded-size pieces the
// model backend can process in one call. Splitting is deterministic: the
// same document and budget always produce the same chunk boundaries.
package chunk

import (
	"strings"

	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/extract"
)

// DefaultMaxTokens is the per-chunk budget when none is configured.
const DefaultMaxTokens = 4096

// Chunk is one bounded piece of document text. Ordinal is the reassembly
// key: final output is always the ordinal-ordered concatenation of chunk
// results, whatever order the backend finishes in.
type Chunk struct {
	Ordinal int
	Text    string
	Tokens  int
}

// Chunker packs document segments into chunks of at most maxTokens each,
// as counted by the injected TokenCounter. Segments the extractor marked
// atomic are kept whole whenever they fit the budget on their own.
type Chunker struct {
	maxTokens int
	counter   TokenCounter
}

// New builds a Chunker. A nil counter falls back to the deterministic
// estimate counter; a non-positive budget falls back to DefaultMaxTokens.
func New(maxTokens int, counter TokenCounter) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if counter == nil {
		counter = EstimateCounter{}
	}
	return &Chunker{maxTokens: maxTokens, counter: counter}
}

// Split converts a document into its ordered chunk sequence. A document
// with no extractable text yields zero chunks.
func (c *Chunker) Split(doc *extract.Document) []Chunk {
	var units []string
	for _, seg := range doc.Segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		text := seg.Text + "\n"
		if c.counter.Count(text) <= c.maxTokens {
			units = append(units, text)
			continue
		}
		// The segment alone exceeds the budget; splitting inside it is
		// unavoidable, atomic or not.
		units = append(units, c.splitOversized(text)...)
	}

	var chunks []Chunk
	var b strings.Builder
	used := 0
	flush := func() {
		if b.Len() == 0 {
			return
		}
		text := strings.TrimRight(b.String(), "\n")
		chunks = append(chunks, Chunk{
			Ordinal: len(chunks),
			Text:    text,
			Tokens:  c.counter.Count(text),
		})
		b.Reset()
		used = 0
	}

	for _, u := range units {
		n := c.counter.Count(u)
		if used > 0 && used+n > c.maxTokens {
			flush()
		}
		b.WriteString(u)
		used += n
	}
	flush()

	return chunks
}

// splitOversized breaks a too-large unit down, preferring line boundaries,
// then word boundaries, then fixed rune windows as a last resort.
func (c *Chunker) splitOversized(text string) []string {
	var out []string
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		if c.counter.Count(line) <= c.maxTokens {
			out = append(out, line)
			continue
		}
		for _, word := range strings.SplitAfter(line, " ") {
			if word == "" {
				continue
			}
			if c.counter.Count(word) <= c.maxTokens {
				out = append(out, word)
				continue
			}
			out = append(out, c.splitRunes(word)...)
		}
	}
	return out
}

func (c *Chunker) splitRunes(s string) []string {
	var out []string
	runes := []rune(s)
	for len(runes) > 0 {
		n := len(runes)
		if limit := c.maxTokens * 4; n > limit {
			n = limit
		}
		for n > 1 && c.counter.Count(string(runes[:n])) > c.maxTokens {
			n /= 2
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}
