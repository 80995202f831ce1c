package rag

import (
	"hash/fnv"
	"math"
	"strings"
)

const embeddingDimension = 384

// Embedder produces fixed-dimension vectors for text. The default
// implementation is a deterministic hashed bag-of-tokens model; cosine
// similarity over it approximates token overlap, which is all the in-memory
// store needs.
type Embedder interface {
	Embed(text string) []float64
	Dimension() int
	ModelName() string
}

type HashedEmbedder struct {
	dimension int
}

func NewHashedEmbedder() *HashedEmbedder {
	return &HashedEmbedder{dimension: embeddingDimension}
}

func (e *HashedEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashedEmbedder) ModelName() string {
	return "hashed-bow"
}

func (e *HashedEmbedder) Embed(text string) []float64 {
	vector := make([]float64, e.dimension)

	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vector[int(h.Sum32())%e.dimension]++
	}

	normalize(vector)

	return vector
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})

	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) > 1 {
			tokens = append(tokens, field)
		}
	}

	return tokens
}

func normalize(vector []float64) {
	var norm float64
	for _, v := range vector {
		norm += v * v
	}

	if norm == 0 {
		return
	}

	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] /= norm
	}
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64

	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := math.Sqrt(normA)*math.Sqrt(normB) + 1e-8

	return dot / denom
}
