// Package web provides the HTTP handlers and REST API endpoints for the
// decision-support backend.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/acctcare/careops/pkg/agents"
	"github.com/acctcare/careops/pkg/communication"
	"github.com/acctcare/careops/pkg/evaluation"
	"github.com/acctcare/careops/pkg/forecast"
	"github.com/acctcare/careops/pkg/models"
	"github.com/acctcare/careops/pkg/monitor"
	"github.com/acctcare/careops/pkg/nlp"
	"github.com/acctcare/careops/pkg/persistence"
	"github.com/acctcare/careops/pkg/rag"
	"github.com/acctcare/careops/pkg/replay"
	"github.com/acctcare/careops/pkg/riskmodels"
)

type APIHandlers struct {
	orchestrator *agents.Orchestrator
	monitor      *monitor.Agent
	forecaster   *forecast.Forecaster
	census       *replay.Engine
	scorer       *riskmodels.Scorer
	rag          *rag.Engine
	nlp          *nlp.Pipeline
	comm         *communication.Service
	eval         *evaluation.Service
	store        persistence.Persistence
	validator    *validator.Validate
}

func NewAPIHandlers(
	orchestrator *agents.Orchestrator,
	monitorAgent *monitor.Agent,
	forecaster *forecast.Forecaster,
	census *replay.Engine,
	scorer *riskmodels.Scorer,
	ragEngine *rag.Engine,
	nlpPipeline *nlp.Pipeline,
	comm *communication.Service,
	eval *evaluation.Service,
	store persistence.Persistence,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		orchestrator: orchestrator,
		monitor:      monitorAgent,
		forecaster:   forecaster,
		census:       census,
		scorer:       scorer,
		rag:          ragEngine,
		nlp:          nlpPipeline,
		comm:         comm,
		eval:         eval,
		store:        store,
		validator:    validate,
	}
}

func (h *APIHandlers) bind(c fiber.Ctx, out any) error {
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(out); err != nil {
			return err
		}
	}

	return h.validator.Struct(out)
}

// Workflow endpoints.

func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	var req RunWorkflowRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, "Invalid run request: "+err.Error())
	}

	trigger := req.TriggerType
	if trigger == "" {
		trigger = "manual"
	}

	state, err := h.orchestrator.RunWorkflow(c.Context(), trigger, models.Role(req.TargetRole))
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"workflows": h.orchestrator.ListWorkflows(),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	state, ok := h.orchestrator.WorkflowStatus(id)
	if !ok {
		return notFound(c, "Workflow not found")
	}

	return c.JSON(state)
}

func (h *APIHandlers) ApproveWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	if h.orchestrator.ApproveAction(c.Context(), id) {
		return c.JSON(fiber.Map{"workflow_id": id, "status": string(models.WorkflowStatusApproved)})
	}

	if _, ok := h.orchestrator.WorkflowStatus(id); !ok {
		return notFound(c, "Workflow not found")
	}

	return conflict(c, "Workflow is not awaiting approval")
}

func (h *APIHandlers) RejectWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	var req RejectRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, "Rejection reason is required: "+err.Error())
	}

	if h.orchestrator.RejectAction(c.Context(), id, req.Reason) {
		return c.JSON(fiber.Map{"workflow_id": id, "status": string(models.WorkflowStatusRejected)})
	}

	if _, ok := h.orchestrator.WorkflowStatus(id); !ok {
		return notFound(c, "Workflow not found")
	}

	return conflict(c, "Workflow is not awaiting approval")
}

func (h *APIHandlers) GetAuditTrail(c fiber.Ctx) error {
	trail, err := h.eval.AuditTrail(c.Context(), c.Params("id"))
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(trail)
}

// Monitoring and forecasting endpoints.

func (h *APIHandlers) GetMonitorStatus(c fiber.Ctx) error {
	return c.JSON(h.monitor.MonitoringStatus())
}

func (h *APIHandlers) GetForecasts(c fiber.Ctx) error {
	horizon := queryInt(c, "horizon_hours", 24)

	return c.JSON(h.forecaster.AllForecasts(horizon))
}

func (h *APIHandlers) GetForecast(c fiber.Ctx) error {
	target := forecast.Target(c.Params("target"))
	if _, ok := forecast.ThresholdsFor(target); !ok {
		return notFound(c, "Unknown forecast target")
	}

	horizon := queryInt(c, "horizon_hours", 24)

	return c.JSON(h.forecaster.Forecast(target, horizon))
}

func (h *APIHandlers) GetCapacitySummary(c fiber.Ctx) error {
	return c.JSON(h.forecaster.CapacitySummary())
}

// Patient endpoints.

func (h *APIHandlers) GetPatients(c fiber.Ctx) error {
	limit := queryInt(c, "limit", 20)

	return c.JSON(fiber.Map{
		"patients": h.census.ActivePatients(limit),
		"census":   h.census.UnitCensus(),
	})
}

func (h *APIHandlers) GetPatient(c fiber.Ctx) error {
	patient, ok := h.census.PatientByID(c.Params("id"))
	if !ok {
		return notFound(c, "Patient not found")
	}

	return c.JSON(patient)
}

func (h *APIHandlers) GetPatientRiskScores(c fiber.Ctx) error {
	patient, ok := h.census.PatientByID(c.Params("id"))
	if !ok {
		return notFound(c, "Patient not found")
	}

	return c.JSON(h.scorer.Assess(patient))
}

func (h *APIHandlers) GetPatientVitals(c fiber.Ctx) error {
	hours := queryInt(c, "hours", 24)

	history, err := h.census.VitalsHistory(c.Params("id"), hours)
	if err != nil {
		return notFound(c, "Patient not found")
	}

	return c.JSON(fiber.Map{"patient_id": c.Params("id"), "vitals": history})
}

// Knowledge base endpoints.

func (h *APIHandlers) SearchKnowledgeBase(c fiber.Ctx) error {
	var req SearchRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, "Invalid search request: "+err.Error())
	}

	topK := req.TopK
	if topK == 0 {
		topK = 3
	}

	return c.JSON(h.rag.Search(req.Query, req.SearchType, topK))
}

func (h *APIHandlers) GetAgentContext(c fiber.Ctx) error {
	var req SearchRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, "Invalid context request: "+err.Error())
	}

	topK := req.TopK
	if topK == 0 {
		topK = 3
	}

	return c.JSON(h.rag.ContextForQuery(req.Query, topK))
}

func (h *APIHandlers) GetKnowledgeBaseStats(c fiber.Ctx) error {
	return c.JSON(h.rag.Stats())
}

func (h *APIHandlers) AddDocument(c fiber.Ctx) error {
	var req AddDocumentRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, "Invalid document: "+err.Error())
	}

	docType := req.Category
	if docType == "" {
		docType = "sop"
	}

	chunks := h.rag.AddDocument(&rag.Document{
		DocID:     req.DocID,
		Title:     req.Title,
		Content:   req.Content,
		DocType:   docType,
		Source:    "api",
		CreatedAt: time.Now().UTC(),
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"doc_id": req.DocID, "chunks": chunks})
}

// NLP endpoints.

func (h *APIHandlers) RedactText(c fiber.Ctx) error {
	var req TextRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, "Text is required: "+err.Error())
	}

	redacted, matches := h.nlp.Deidentify(req.Text)

	return c.JSON(fiber.Map{
		"deidentified_text": redacted,
		"phi_removed":       matches,
		"phi_count":         len(matches),
	})
}

func (h *APIHandlers) ExtractEntities(c fiber.Ctx) error {
	var req TextRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, "Text is required: "+err.Error())
	}

	return c.JSON(fiber.Map{"entities": h.nlp.ExtractEntities(req.Text)})
}

func (h *APIHandlers) ProcessNote(c fiber.Ctx) error {
	var req TextRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, "Text is required: "+err.Error())
	}

	return c.JSON(h.nlp.ProcessNote(req.Text))
}

func (h *APIHandlers) SummarizeNote(c fiber.Ctx) error {
	var req TextRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, "Text is required: "+err.Error())
	}

	return c.JSON(fiber.Map{"summary": h.nlp.SummarizeEntities(req.Text)})
}

// Communication endpoints.

func (h *APIHandlers) DraftMessage(c fiber.Ctx) error {
	var req DraftRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, "Invalid draft request: "+err.Error())
	}

	state, ok := h.orchestrator.WorkflowStatus(req.WorkflowID)
	if !ok {
		return notFound(c, "Workflow not found")
	}

	if state.ProposedAction == nil {
		return conflict(c, "Workflow has no action card to draft from")
	}

	message, err := h.comm.DraftMessage(c.Context(), state.ProposedAction, models.Role(req.Role), state.RiskEvent)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow_id": req.WorkflowID,
		"role":        req.Role,
		"message":     message,
	})
}

func (h *APIHandlers) ShiftReport(c fiber.Ctx) error {
	var req ShiftReportRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, "Invalid report request: "+err.Error())
	}

	recent := make([]map[string]any, 0)
	for _, state := range h.orchestrator.ListWorkflows() {
		if state.RiskEvent == nil {
			continue
		}

		recent = append(recent, map[string]any{
			"event_type": state.RiskEvent.EventType,
			"severity":   string(state.RiskEvent.Severity),
			"status":     string(state.Status),
			"created_at": state.CreatedAt.Format(time.RFC3339),
		})
	}

	report, err := h.comm.ShiftReport(c.Context(), recent, req.Hours)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"report": report})
}

func (h *APIHandlers) SimulateScenario(c fiber.Ctx) error {
	var req SimulateRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, "Scenario is required: "+err.Error())
	}

	result, err := h.comm.SimulateScenario(c.Context(), req.Scenario)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(result)
}

// Evaluation endpoints.

func (h *APIHandlers) GetMetricsSummary(c fiber.Ctx) error {
	return c.JSON(h.eval.MetricsSummary(c.Context()))
}

func (h *APIHandlers) SubmitFeedback(c fiber.Ctx) error {
	var req FeedbackRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, "Invalid feedback: "+err.Error())
	}

	if err := h.eval.SubmitFeedback(c.Context(), req.WorkflowID, req.FeedbackType, req.Comments, req.UserRole); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"workflow_id": req.WorkflowID, "recorded": true})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK
	detail := "ok"

	if err := h.store.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
		detail = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"persistence": detail,
		},
	})
}

func queryInt(c fiber.Ctx, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}

	return value
}
