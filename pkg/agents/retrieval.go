package agents

import (
	"context"
	"fmt"

	"github.com/acctcare/careops/pkg/models"
	"github.com/acctcare/careops/pkg/rag"
)

const retrievalTopK = 3

// RAGRetriever adapts the retrieval engine to the ContextRetriever contract.
type RAGRetriever struct {
	engine *rag.Engine
}

func NewRAGRetriever(engine *rag.Engine) *RAGRetriever {
	return &RAGRetriever{engine: engine}
}

// RetrieveContext builds a protocol query from the event and fetches
// citation-formatted context.
func (r *RAGRetriever) RetrieveContext(ctx context.Context, event *models.RiskEvent) (*RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("no risk event to retrieve context for")
	}

	query := fmt.Sprintf("What is the protocol for %s? ", event.EventType)
	if event.MetricName != "" {
		query += fmt.Sprintf("Current %s: %.1f%s", event.MetricName, event.CurrentValue, event.Unit)
	}

	agentCtx := r.engine.ContextForQuery(query, retrievalTopK)

	sources := make([]models.CitedSource, 0, len(agentCtx.Sources))
	for _, src := range agentCtx.Sources {
		sources = append(sources, models.CitedSource{
			SourceID:       src.DocID,
			SourceTitle:    src.Title,
			RelevanceScore: src.Score,
		})
	}

	return &RetrievalResult{
		Query:      query,
		Context:    agentCtx.Context,
		Sources:    sources,
		Sufficient: agentCtx.Sufficient,
	}, nil
}
