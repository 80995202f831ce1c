// Package rag implements the clinical knowledge retrieval pipeline: document
// chunking, embedding, an in-memory vector store with hybrid search, and
// citation-formatted context assembly for the planning stage.
package rag

import "strings"

const (
	defaultChunkSize    = 512
	defaultChunkOverlap = 50
)

// TextChunker splits text into overlapping chunks, preferring the coarsest
// separator that keeps chunks under the size limit.
type TextChunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

func NewTextChunker(chunkSize, chunkOverlap int) *TextChunker {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = defaultChunkOverlap
	}

	return &TextChunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   []string{"\n\n", "\n", ". ", " ", ""},
	}
}

func (c *TextChunker) SplitText(text string) []string {
	return c.splitRecursive(text, c.separators)
}

func (c *TextChunker) splitRecursive(text string, separators []string) []string {
	if len(text) <= c.chunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}

		return []string{text}
	}

	if len(separators) == 0 {
		return []string{text}
	}

	separator := separators[0]
	remaining := separators[1:]

	if separator == "" {
		// Character-level fallback with overlap.
		var chunks []string

		step := c.chunkSize - c.chunkOverlap
		for i := 0; i < len(text); i += step {
			end := i + c.chunkSize
			if end > len(text) {
				end = len(text)
			}

			chunks = append(chunks, text[i:end])

			if end == len(text) {
				break
			}
		}

		return chunks
	}

	splits := strings.Split(text, separator)

	var (
		chunks  []string
		current string
	)

	for _, split := range splits {
		candidate := split
		if current != "" {
			candidate = current + separator + split
		}

		if len(candidate) <= c.chunkSize {
			current = candidate

			continue
		}

		if current != "" {
			chunks = append(chunks, current)
		}

		if len(split) > c.chunkSize {
			chunks = append(chunks, c.splitRecursive(split, remaining)...)
			current = ""
		} else {
			current = split
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, current)
	}

	return chunks
}
