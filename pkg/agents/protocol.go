// Package agents implements the multi-agent decision workflow: risk
// detection, context retrieval, planning, guardrail validation and
// notification, coordinated by the Orchestrator.
package agents

import (
	"context"

	"github.com/acctcare/careops/pkg/models"
)

// RetrievalResult is the context handed to the planning stage. One retrieval
// feeds every planning iteration of a run.
type RetrievalResult struct {
	Query      string               `json:"query"`
	Context    string               `json:"context"`
	Sources    []models.CitedSource `json:"sources"`
	Sufficient bool                 `json:"has_sufficient_context"`
}

// RiskDetector scans the environment for risk events, most severe first.
type RiskDetector interface {
	DetectEvents(ctx context.Context) ([]models.RiskEvent, error)
}

// ContextRetriever fetches protocol context relevant to a risk event.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, event *models.RiskEvent) (*RetrievalResult, error)
}

// PlanGenerator proposes an action card for a risk event.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, event *models.RiskEvent, retrievedContext string, sources []models.CitedSource) (*models.ActionCard, error)
}

// NotifierFormatter renders a validated card for the target audience.
type NotifierFormatter interface {
	Format(card *models.ActionCard, role models.Role) (string, error)
}
