package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/acctcare/careops/pkg/agents"
	"github.com/acctcare/careops/pkg/communication"
	"github.com/acctcare/careops/pkg/evaluation"
	"github.com/acctcare/careops/pkg/eventbus"
	"github.com/acctcare/careops/pkg/features"
	"github.com/acctcare/careops/pkg/forecast"
	"github.com/acctcare/careops/pkg/llm"
	"github.com/acctcare/careops/pkg/models"
	"github.com/acctcare/careops/pkg/monitor"
	"github.com/acctcare/careops/pkg/nlp"
	"github.com/acctcare/careops/pkg/notifier"
	"github.com/acctcare/careops/pkg/persistence"
	"github.com/acctcare/careops/pkg/planner"
	"github.com/acctcare/careops/pkg/rag"
	"github.com/acctcare/careops/pkg/replay"
	"github.com/acctcare/careops/pkg/riskmodels"
)

// PipelineOptions configures the assembled agent pipeline.
type PipelineOptions struct {
	OllamaURL       string
	OllamaModel     string
	MaxIterations   int
	RequireApproval bool
	TargetRole      string
	CensusSeed      int64
	CensusSize      int
}

// Pipeline bundles the orchestrator with the services the API exposes
// directly.
type Pipeline struct {
	Orchestrator *agents.Orchestrator
	Monitor      *monitor.Agent
	Forecaster   *forecast.Forecaster
	Census       *replay.Engine
	Scorer       *riskmodels.Scorer
	RAG          *rag.Engine
	NLP          *nlp.Pipeline
	Comm         *communication.Service
	Eval         *evaluation.Service
}

// NewPipeline wires the full agent pipeline against the given store and bus.
func NewPipeline(logger *slog.Logger, store persistence.Persistence, bus eventbus.EventBus, opts PipelineOptions) (*Pipeline, error) {
	if opts.CensusSeed == 0 {
		opts.CensusSeed = time.Now().UTC().Unix()
	}

	forecaster := forecast.NewForecaster(opts.CensusSeed)
	census := replay.NewEngine(opts.CensusSeed, opts.CensusSize)
	scorer := riskmodels.NewScorer(features.NewStore(5 * time.Minute))
	monitorAgent := monitor.NewAgent(forecaster, census, scorer)

	ragEngine := rag.NewEngine(logger)
	generator := llm.NewOllamaClient(opts.OllamaURL, opts.OllamaModel)

	planAgent, err := planner.NewAgent(generator)
	if err != nil {
		return nil, fmt.Errorf("failed to build planner: %w", err)
	}

	guardrail, err := agents.NewGuardrail()
	if err != nil {
		return nil, fmt.Errorf("failed to build guardrail: %w", err)
	}

	formatter := notifier.NewRoleFormatter()
	eval := evaluation.NewService(store)

	orchestrator := agents.NewOrchestrator(
		agents.Config{
			MaxIterations:   opts.MaxIterations,
			RequireApproval: opts.RequireApproval,
			TargetRole:      models.Role(opts.TargetRole),
		},
		monitorAgent,
		agents.NewRAGRetriever(ragEngine),
		planAgent,
		formatter,
		guardrail,
		store,
		eval,
		bus,
	)

	return &Pipeline{
		Orchestrator: orchestrator,
		Monitor:      monitorAgent,
		Forecaster:   forecaster,
		Census:       census,
		Scorer:       scorer,
		RAG:          ragEngine,
		NLP:          nlp.NewPipeline(),
		Comm:         communication.NewService(generator, formatter),
		Eval:         eval,
	}, nil
}
