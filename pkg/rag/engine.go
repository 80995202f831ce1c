package rag

import (
	"fmt"
	"log/slog"
	"strings"
)

// ConfidenceThreshold is the minimum hit score treated as sufficient context.
const ConfidenceThreshold = 0.4

// AgentContext is the retrieval output consumed by the planning stage.
type AgentContext struct {
	Query      string      `json:"query"`
	Context    string      `json:"context"`
	Sources    []SourceRef `json:"sources"`
	Sufficient bool        `json:"has_sufficient_context"`
	Warning    string      `json:"warning,omitempty"`
}

// SourceRef is a citation entry attached to retrieved context.
type SourceRef struct {
	Citation string  `json:"citation"`
	DocID    string  `json:"doc_id"`
	Title    string  `json:"title"`
	Score    float64 `json:"score"`
}

// SearchResponse is the raw search output exposed over the API.
type SearchResponse struct {
	Query      string         `json:"query"`
	SearchType string         `json:"search_type"`
	Results    []SearchResult `json:"results"`
	Sufficient bool           `json:"has_sufficient_context"`
}

// Stats summarizes the knowledge base.
type Stats struct {
	TotalDocuments      int     `json:"total_documents"`
	TotalChunks         int     `json:"total_chunks"`
	EmbeddingModel      string  `json:"embedding_model"`
	EmbeddingDimension  int     `json:"embedding_dimension"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

// Engine is the complete retrieval pipeline over the in-memory vector store.
type Engine struct {
	embedder Embedder
	store    *VectorStore
	logger   *slog.Logger
}

// NewEngine creates a retrieval engine pre-seeded with the standard protocol
// documents.
func NewEngine(logger *slog.Logger) *Engine {
	embedder := NewHashedEmbedder()

	engine := &Engine{
		embedder: embedder,
		store:    NewVectorStore(embedder),
		logger:   logger.With("module", "rag"),
	}

	for _, doc := range sampleDocuments() {
		chunkIDs := engine.store.AddDocument(doc)
		engine.logger.Debug("Loaded knowledge base document", "doc_id", doc.DocID, "chunks", len(chunkIDs))
	}

	return engine
}

// AddDocument indexes a new document and returns the number of chunks created.
func (e *Engine) AddDocument(doc *Document) int {
	chunkIDs := e.store.AddDocument(doc)
	e.logger.Info("Indexed document", "doc_id", doc.DocID, "chunks", len(chunkIDs))

	return len(chunkIDs)
}

// Search runs one of the three retrieval strategies: dense, keyword or hybrid.
func (e *Engine) Search(query, searchType string, topK int) *SearchResponse {
	var results []SearchResult

	switch searchType {
	case "dense":
		results = e.store.SimilaritySearch(query, topK, 0.3)
	case "keyword":
		results = e.store.KeywordSearch(query, topK)
	default:
		searchType = "hybrid"
		results = e.store.HybridSearch(query, topK, 0.7, 0.1)
	}

	sufficient := false

	for _, result := range results {
		if result.Score >= ConfidenceThreshold {
			sufficient = true

			break
		}
	}

	return &SearchResponse{
		Query:      query,
		SearchType: searchType,
		Results:    results,
		Sufficient: sufficient,
	}
}

// ContextForQuery assembles citation-formatted context for the planning stage.
// It always returns a result: with no hits, the context is empty and
// Sufficient is false.
func (e *Engine) ContextForQuery(query string, topK int) *AgentContext {
	search := e.Search(query, "hybrid", topK)

	var (
		contextParts []string
		sources      []SourceRef
	)

	for i, result := range search.Results {
		citation := fmt.Sprintf("[%d]", i+1)
		contextParts = append(contextParts, citation+" "+truncate(result.Chunk.Content, 500))
		sources = append(sources, SourceRef{
			Citation: citation,
			DocID:    result.Chunk.DocID,
			Title:    result.Chunk.Title,
			Score:    result.Score,
		})
	}

	agentContext := &AgentContext{
		Query:      query,
		Context:    strings.Join(contextParts, "\n\n"),
		Sources:    sources,
		Sufficient: search.Sufficient,
	}

	if !search.Sufficient {
		agentContext.Warning = "Insufficient context found. Results may not fully answer the query."
	}

	return agentContext
}

// Stats returns knowledge base statistics.
func (e *Engine) Stats() *Stats {
	return &Stats{
		TotalDocuments:      e.store.DocumentCount(),
		TotalChunks:         e.store.ChunkCount(),
		EmbeddingModel:      e.embedder.ModelName(),
		EmbeddingDimension:  e.embedder.Dimension(),
		ConfidenceThreshold: ConfidenceThreshold,
	}
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}

	return text[:limit] + "..."
}
