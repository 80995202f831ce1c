package rag

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Document is one protocol document in the knowledge base.
type Document struct {
	DocID     string    `json:"doc_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	DocType   string    `json:"doc_type"` // sop, guideline, policy, note
	CreatedAt time.Time `json:"created_at"`
}

// Chunk is one indexed slice of a document.
type Chunk struct {
	ChunkID   string    `json:"chunk_id"`
	DocID     string    `json:"doc_id"`
	Content   string    `json:"content"`
	Position  int       `json:"position"`
	Embedding []float64 `json:"-"`
	Title     string    `json:"title"`
	DocType   string    `json:"doc_type"`
}

// SearchResult is one scored retrieval hit.
type SearchResult struct {
	Chunk     *Chunk  `json:"chunk"`
	Score     float64 `json:"score"`
	MatchType string  `json:"match_type"` // dense, keyword, hybrid
}

// VectorStore is an in-memory chunk index with dense, keyword and hybrid search.
type VectorStore struct {
	embedder Embedder

	mu        sync.RWMutex
	documents map[string]*Document
	chunks    map[string]*Chunk
	order     []string // chunk IDs in insertion order, for stable iteration
}

func NewVectorStore(embedder Embedder) *VectorStore {
	return &VectorStore{
		embedder:  embedder,
		documents: make(map[string]*Document),
		chunks:    make(map[string]*Chunk),
	}
}

// AddDocument chunks, embeds and indexes a document, returning the chunk IDs.
func (s *VectorStore) AddDocument(doc *Document) []string {
	chunker := NewTextChunker(defaultChunkSize, defaultChunkOverlap)
	texts := chunker.SplitText(doc.Content)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents[doc.DocID] = doc

	chunkIDs := make([]string, 0, len(texts))

	for i, text := range texts {
		chunk := &Chunk{
			ChunkID:   fmt.Sprintf("%s_chunk_%d", doc.DocID, i),
			DocID:     doc.DocID,
			Content:   text,
			Position:  i,
			Embedding: s.embedder.Embed(text),
			Title:     doc.Title,
			DocType:   doc.DocType,
		}

		s.chunks[chunk.ChunkID] = chunk
		s.order = append(s.order, chunk.ChunkID)
		chunkIDs = append(chunkIDs, chunk.ChunkID)
	}

	return chunkIDs
}

func (s *VectorStore) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.documents)
}

func (s *VectorStore) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.chunks)
}

// SimilaritySearch performs dense cosine-similarity retrieval.
func (s *VectorStore) SimilaritySearch(query string, topK int, threshold float64) []SearchResult {
	queryEmbedding := s.embedder.Embed(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult

	for _, chunkID := range s.order {
		chunk := s.chunks[chunkID]

		similarity := cosineSimilarity(queryEmbedding, chunk.Embedding)
		if similarity >= threshold {
			results = append(results, SearchResult{Chunk: chunk, Score: similarity, MatchType: "dense"})
		}
	}

	return topResults(results, topK)
}

// KeywordSearch scores chunks by query term overlap.
func (s *VectorStore) KeywordSearch(query string, topK int) []SearchResult {
	queryTerms := termSet(query)
	if len(queryTerms) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult

	for _, chunkID := range s.order {
		chunk := s.chunks[chunkID]

		overlap := 0
		chunkTerms := termSet(chunk.Content)

		for term := range queryTerms {
			if _, ok := chunkTerms[term]; ok {
				overlap++
			}
		}

		if overlap > 0 {
			score := float64(overlap) / float64(len(queryTerms))
			results = append(results, SearchResult{Chunk: chunk, Score: score, MatchType: "keyword"})
		}
	}

	return topResults(results, topK)
}

// HybridSearch fuses dense and keyword scores: alpha weights the dense side.
func (s *VectorStore) HybridSearch(query string, topK int, alpha, threshold float64) []SearchResult {
	denseResults := s.SimilaritySearch(query, topK*2, 0.1)
	keywordResults := s.KeywordSearch(query, topK*2)

	type fused struct {
		chunk   *Chunk
		dense   float64
		keyword float64
	}

	combined := make(map[string]*fused)

	var fusedOrder []string

	for _, result := range denseResults {
		combined[result.Chunk.ChunkID] = &fused{chunk: result.Chunk, dense: result.Score}
		fusedOrder = append(fusedOrder, result.Chunk.ChunkID)
	}

	for _, result := range keywordResults {
		if entry, ok := combined[result.Chunk.ChunkID]; ok {
			entry.keyword = result.Score
		} else {
			combined[result.Chunk.ChunkID] = &fused{chunk: result.Chunk, keyword: result.Score}
			fusedOrder = append(fusedOrder, result.Chunk.ChunkID)
		}
	}

	var results []SearchResult

	for _, chunkID := range fusedOrder {
		entry := combined[chunkID]

		score := alpha*entry.dense + (1-alpha)*entry.keyword
		if score >= threshold {
			results = append(results, SearchResult{Chunk: entry.chunk, Score: score, MatchType: "hybrid"})
		}
	}

	return topResults(results, topK)
}

func topResults(results []SearchResult, topK int) []SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}

	return results
}

func termSet(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(text)) {
		terms[field] = struct{}{}
	}

	return terms
}
