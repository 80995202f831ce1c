// Package main provides the CareOps API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/acctcare/careops/pkg/cmd"
	"github.com/acctcare/careops/pkg/persistence"
	"github.com/acctcare/careops/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	pipeline    *cmd.Pipeline
	validate    *validator.Validate
}

func NewAPI(logger *slog.Logger, store persistence.Persistence, pipeline *cmd.Pipeline) *API {
	return &API{
		logger:      logger,
		persistence: store,
		pipeline:    pipeline,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		a.pipeline.Orchestrator,
		a.pipeline.Monitor,
		a.pipeline.Forecaster,
		a.pipeline.Census,
		a.pipeline.Scorer,
		a.pipeline.RAG,
		a.pipeline.NLP,
		a.pipeline.Comm,
		a.pipeline.Eval,
		a.persistence,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("CareOps API")
	})

	w := app.Group("/workflows")
	w.Post("/run", handlers.RunWorkflow)
	w.Get("/", handlers.GetWorkflows)
	w.Get("/:id", handlers.GetWorkflow)
	w.Post("/:id/approve", handlers.ApproveWorkflow)
	w.Post("/:id/reject", handlers.RejectWorkflow)
	w.Get("/:id/audit", handlers.GetAuditTrail)

	app.Get("/monitor/status", handlers.GetMonitorStatus)

	f := app.Group("/forecasts")
	f.Get("/", handlers.GetForecasts)
	f.Get("/summary", handlers.GetCapacitySummary)
	f.Get("/:target", handlers.GetForecast)

	p := app.Group("/patients")
	p.Get("/", handlers.GetPatients)
	p.Get("/:id", handlers.GetPatient)
	p.Get("/:id/risk-scores", handlers.GetPatientRiskScores)
	p.Get("/:id/vitals", handlers.GetPatientVitals)

	kb := app.Group("/rag")
	kb.Post("/search", handlers.SearchKnowledgeBase)
	kb.Post("/context", handlers.GetAgentContext)
	kb.Get("/stats", handlers.GetKnowledgeBaseStats)
	kb.Post("/documents", handlers.AddDocument)

	n := app.Group("/nlp")
	n.Post("/redact", handlers.RedactText)
	n.Post("/entities", handlers.ExtractEntities)
	n.Post("/process", handlers.ProcessNote)
	n.Post("/summarize", handlers.SummarizeNote)

	comm := app.Group("/communication")
	comm.Post("/draft", handlers.DraftMessage)
	comm.Post("/shift-report", handlers.ShiftReport)
	comm.Post("/simulate", handlers.SimulateScenario)

	app.Get("/metrics/summary", handlers.GetMetricsSummary)
	app.Post("/feedback", handlers.SubmitFeedback)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
