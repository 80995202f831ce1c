package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/acctcare/careops/pkg/eventbus"
	"github.com/acctcare/careops/pkg/evaluation"
	"github.com/acctcare/careops/pkg/events"
	"github.com/acctcare/careops/pkg/log"
	"github.com/acctcare/careops/pkg/models"
	"github.com/acctcare/careops/pkg/otelhelper"
	"github.com/acctcare/careops/pkg/persistence"
)

const DefaultMaxIterations = 3

// Config controls orchestrator behavior.
type Config struct {
	// MaxIterations bounds the plan/validate retry loop.
	MaxIterations int
	// RequireApproval routes validated plans through the human gate
	// instead of completing directly.
	RequireApproval bool
	// TargetRole is the default notification audience.
	TargetRole models.Role
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.TargetRole == "" {
		c.TargetRole = models.RoleNurse
	}
	return c
}

type workflowRun struct {
	mu    sync.Mutex
	state *models.WorkflowState

	trigger    string
	targetRole models.Role
}

// Orchestrator drives the agent pipeline:
//
//	detect -> retrieve -> [plan -> validate]* -> notify
//
// The plan/validate loop retries up to MaxIterations times. Every stage
// appends to the run's audit trail; the terminal snapshot is persisted
// best-effort, a store failure never fails the run.
type Orchestrator struct {
	cfg       Config
	detector  RiskDetector
	retriever ContextRetriever
	planner   PlanGenerator
	notifier  NotifierFormatter
	guardrail *Guardrail

	store  persistence.Persistence
	eval   *evaluation.Service
	bus    eventbus.EventPublisher
	tracer trace.Tracer
	logger *slog.Logger

	mu   sync.RWMutex
	runs map[string]*workflowRun
}

// NewOrchestrator wires the pipeline. The event publisher may be nil when
// no bus is configured.
func NewOrchestrator(
	cfg Config,
	detector RiskDetector,
	retriever ContextRetriever,
	planGen PlanGenerator,
	formatter NotifierFormatter,
	guardrail *Guardrail,
	store persistence.Persistence,
	eval *evaluation.Service,
	bus eventbus.EventPublisher,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg.withDefaults(),
		detector:  detector,
		retriever: retriever,
		planner:   planGen,
		notifier:  formatter,
		guardrail: guardrail,
		store:     store,
		eval:      eval,
		bus:       bus,
		tracer:    otel.Tracer("careops/agents"),
		logger:    log.WithModule("orchestrator"),
	}
}

// RunWorkflow executes one complete pipeline run and returns the terminal
// state. The returned state is a snapshot; later approvals do not mutate it.
func (o *Orchestrator) RunWorkflow(ctx context.Context, trigger string, targetRole models.Role) (*models.WorkflowState, error) {
	if targetRole == "" {
		targetRole = o.cfg.TargetRole
	}
	if trigger == "" {
		trigger = "auto"
	}

	run := &workflowRun{
		state: &models.WorkflowState{
			WorkflowID:    uuid.New().String(),
			Status:        models.WorkflowStatusPending,
			MaxIterations: o.cfg.MaxIterations,
			CreatedAt:     time.Now().UTC(),
		},
		trigger:    trigger,
		targetRole: targetRole,
	}

	o.mu.Lock()
	if o.runs == nil {
		o.runs = make(map[string]*workflowRun)
	}
	o.runs[run.state.WorkflowID] = run
	o.mu.Unlock()

	run.mu.Lock()
	defer run.mu.Unlock()

	state := run.state
	state.Status = models.WorkflowStatusRunning
	started := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, state.WorkflowID),
		attribute.String(otelhelper.TriggerTypeKey, trigger),
		attribute.String(otelhelper.TargetRoleKey, string(targetRole)),
	)
	defer span.End()

	o.publish(ctx, state.WorkflowID, events.WorkflowStarted{
		BaseEvent:   o.baseEvent(events.WorkflowStartedEvent, state.WorkflowID),
		TriggerType: trigger,
		TargetRole:  string(targetRole),
	})
	o.logger.Info("workflow started", "workflow_id", state.WorkflowID, "trigger", trigger, "target_role", targetRole)

	if err := o.execute(ctx, state, targetRole); err != nil {
		state.Status = models.WorkflowStatusFailed
		state.FinalOutput = map[string]any{"error": err.Error()}
		otelhelper.SetError(span, err, attribute.String(otelhelper.WorkflowIDKey, state.WorkflowID))
		o.logger.Error("workflow failed", "workflow_id", state.WorkflowID, "error", err)
	}

	success := 0.0
	if state.Status == models.WorkflowStatusCompleted {
		success = 1.0
	}
	o.eval.LogMetric(ctx, "agent_success", "workflow_completion", success, map[string]any{"workflow_id": state.WorkflowID})

	switch state.Status {
	case models.WorkflowStatusFailed:
		errText, _ := state.FinalOutput["error"].(string)
		o.publish(ctx, state.WorkflowID, events.WorkflowFailed{
			BaseEvent:  o.baseEvent(events.WorkflowFailedEvent, state.WorkflowID),
			Error:      errText,
			Violations: state.ValidationErrors,
		})
	default:
		o.publish(ctx, state.WorkflowID, events.WorkflowCompleted{
			BaseEvent:  o.baseEvent(events.WorkflowCompletedEvent, state.WorkflowID),
			Status:     string(state.Status),
			Iterations: state.Iteration,
			Duration:   time.Since(started),
		})
	}

	o.persist(ctx, run)
	o.logger.Info("workflow finished", "workflow_id", state.WorkflowID, "status", state.Status, "iterations", state.Iteration)

	return snapshotState(state), nil
}

// execute runs the five stages. A panic in any collaborator is captured and
// surfaced as the run's failure.
func (o *Orchestrator) execute(ctx context.Context, state *models.WorkflowState, targetRole models.Role) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workflow stage panicked: %v", r)
		}
	}()

	// Stage 1: risk detection.
	riskEvents, err := o.stageDetect(ctx, state)
	if err != nil {
		return err
	}
	if len(riskEvents) == 0 {
		state.CurrentAgent = ""
		state.Status = models.WorkflowStatusCompleted
		state.FinalOutput = map[string]any{"message": "No risk events detected"}
		return nil
	}
	state.RiskEvent = &riskEvents[0]

	// Stage 2: context retrieval, once per run.
	retrieval, err := o.stageRetrieve(ctx, state)
	if err != nil {
		return err
	}

	// Stages 3-4: bounded plan/validate loop.
	for state.Iteration < state.MaxIterations {
		if err := o.stagePlan(ctx, state, retrieval); err != nil {
			return err
		}
		o.stageValidate(ctx, state)
		if state.ValidationPassed {
			break
		}
	}

	// Stage 5: notify, or fail on exhaustion.
	if !state.ValidationPassed {
		state.Status = models.WorkflowStatusFailed
		state.FinalOutput = map[string]any{
			"error":  "Validation failed after max iterations",
			"errors": state.ValidationErrors,
		}
		return nil
	}
	return o.stageNotify(ctx, state, targetRole)
}

func (o *Orchestrator) stageDetect(ctx context.Context, state *models.WorkflowState) ([]models.RiskEvent, error) {
	ctx, span := o.stageSpan(ctx, state, models.AgentMonitor)
	defer span.End()

	riskEvents, err := o.detector.DetectEvents(ctx)
	if err != nil {
		otelhelper.SetError(span, err)
		return nil, fmt.Errorf("risk detection failed: %w", err)
	}

	details := map[string]any{"events_found": len(riskEvents)}
	if len(riskEvents) > 0 {
		details["event_type"] = riskEvents[0].EventType
		details["severity"] = string(riskEvents[0].Severity)
	}
	o.recordStage(ctx, state, models.AgentMonitor, "risk_detection", details)
	return riskEvents, nil
}

func (o *Orchestrator) stageRetrieve(ctx context.Context, state *models.WorkflowState) (*RetrievalResult, error) {
	ctx, span := o.stageSpan(ctx, state, models.AgentRetrieval)
	defer span.End()

	retrieval, err := o.retriever.RetrieveContext(ctx, state.RiskEvent)
	if err != nil {
		otelhelper.SetError(span, err)
		return nil, fmt.Errorf("context retrieval failed: %w", err)
	}

	state.RetrievedContext = retrieval.Context
	state.RetrievedSources = retrieval.Sources
	state.ContextSufficient = retrieval.Sufficient

	o.recordStage(ctx, state, models.AgentRetrieval, "context_fetching", map[string]any{
		"query":                  retrieval.Query,
		"sources_found":          len(retrieval.Sources),
		"has_sufficient_context": retrieval.Sufficient,
	})

	quality := 0.0
	if retrieval.Sufficient {
		quality = 1.0
	}
	o.eval.LogMetric(ctx, "rag_quality", "context_retrieval", quality, map[string]any{"workflow_id": state.WorkflowID})
	return retrieval, nil
}

func (o *Orchestrator) stagePlan(ctx context.Context, state *models.WorkflowState, retrieval *RetrievalResult) error {
	ctx, span := o.stageSpan(ctx, state, models.AgentPlanning)
	defer span.End()

	state.Iteration++
	span.SetAttributes(attribute.Int(otelhelper.IterationKey, state.Iteration))

	card, err := o.planner.GeneratePlan(ctx, state.RiskEvent, retrieval.Context, retrieval.Sources)
	if err != nil {
		otelhelper.SetError(span, err)
		return fmt.Errorf("plan generation failed: %w", err)
	}
	state.ProposedAction = card

	o.recordStage(ctx, state, models.AgentPlanning, "action_generation", map[string]any{
		"iteration":   state.Iteration,
		"action_type": string(card.ActionType),
	})
	return nil
}

func (o *Orchestrator) stageValidate(ctx context.Context, state *models.WorkflowState) {
	ctx, span := o.stageSpan(ctx, state, models.AgentGuardrail)
	defer span.End()

	state.ValidationErrors = o.guardrail.Validate(state.ProposedAction, state.RiskEvent)
	state.ValidationPassed = len(state.ValidationErrors) == 0

	o.recordStage(ctx, state, models.AgentGuardrail, "safety_validation", map[string]any{
		"passed": state.ValidationPassed,
		"errors": state.ValidationErrors,
	})
}

func (o *Orchestrator) stageNotify(ctx context.Context, state *models.WorkflowState, targetRole models.Role) error {
	ctx, span := o.stageSpan(ctx, state, models.AgentNotifier)
	defer span.End()

	message, err := o.notifier.Format(state.ProposedAction, targetRole)
	if err != nil {
		otelhelper.SetError(span, err)
		return fmt.Errorf("notification formatting failed: %w", err)
	}

	state.FinalOutput = map[string]any{
		"role":              string(targetRole),
		"formatted_message": message,
		"action_card":       toJSONMap(state.ProposedAction),
		"delivery_time":     time.Now().UTC().Format(time.RFC3339),
	}

	if o.cfg.RequireApproval {
		state.Status = models.WorkflowStatusAwaitingApproval
	} else {
		state.Status = models.WorkflowStatusCompleted
	}

	o.recordStage(ctx, state, models.AgentNotifier, "message_formatting", map[string]any{
		"target_role": string(targetRole),
	})
	return nil
}

func (o *Orchestrator) stageSpan(ctx context.Context, state *models.WorkflowState, agent models.AgentType) (context.Context, trace.Span) {
	state.CurrentAgent = agent
	return otelhelper.StartSpan(ctx, o.tracer, "workflow.stage."+string(agent),
		attribute.String(otelhelper.WorkflowIDKey, state.WorkflowID),
		attribute.String(otelhelper.AgentKey, string(agent)),
	)
}

// recordStage appends the audit trail entry, writes the fine-grained audit
// event and publishes the stage on the bus. Only the in-memory append is
// guaranteed; the side channels are best-effort.
func (o *Orchestrator) recordStage(ctx context.Context, state *models.WorkflowState, agent models.AgentType, action string, details map[string]any) {
	now := time.Now().UTC()
	state.History = append(state.History, models.StepRecord{
		Agent:     agent,
		Timestamp: now,
		Details:   details,
	})

	if err := o.store.AppendAuditEvent(ctx, &models.AuditEvent{
		WorkflowID: state.WorkflowID,
		Agent:      string(agent),
		Action:     action,
		Details:    details,
		CreatedAt:  now,
	}); err != nil {
		o.logger.Warn("failed to append audit event", "workflow_id", state.WorkflowID, "agent", agent, "error", err)
	}

	o.publish(ctx, state.WorkflowID, events.AgentStage{
		BaseEvent: o.baseEvent(events.AgentStageEvent, state.WorkflowID),
		Agent:     agent,
		Action:    action,
		Details:   details,
	})
}

// WorkflowStatus returns a snapshot of a run's current state.
func (o *Orchestrator) WorkflowStatus(id string) (*models.WorkflowState, bool) {
	o.mu.RLock()
	run, ok := o.runs[id]
	o.mu.RUnlock()
	if !ok {
		return nil, false
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return snapshotState(run.state), true
}

// ListWorkflows returns snapshots of all runs, newest first.
func (o *Orchestrator) ListWorkflows() []*models.WorkflowState {
	o.mu.RLock()
	runs := make([]*workflowRun, 0, len(o.runs))
	for _, run := range o.runs {
		runs = append(runs, run)
	}
	o.mu.RUnlock()

	out := make([]*models.WorkflowState, 0, len(runs))
	for _, run := range runs {
		run.mu.Lock()
		out = append(out, snapshotState(run.state))
		run.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ApproveAction approves a run awaiting approval. Returns false when the
// run does not exist or is not awaiting approval.
func (o *Orchestrator) ApproveAction(ctx context.Context, id string) bool {
	o.mu.RLock()
	run, ok := o.runs[id]
	o.mu.RUnlock()
	if !ok {
		return false
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	if run.state.Status != models.WorkflowStatusAwaitingApproval {
		return false
	}
	run.state.Status = models.WorkflowStatusApproved

	o.publish(ctx, id, events.ActionApproved{BaseEvent: o.baseEvent(events.ActionApprovedEvent, id)})
	o.persist(ctx, run)
	o.logger.Info("action approved", "workflow_id", id)
	return true
}

// RejectAction rejects a run awaiting approval, recording the reason.
func (o *Orchestrator) RejectAction(ctx context.Context, id, reason string) bool {
	o.mu.RLock()
	run, ok := o.runs[id]
	o.mu.RUnlock()
	if !ok {
		return false
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	if run.state.Status != models.WorkflowStatusAwaitingApproval {
		return false
	}
	run.state.Status = models.WorkflowStatusRejected
	run.state.ValidationErrors = append(run.state.ValidationErrors, "Rejected: "+reason)

	o.publish(ctx, id, events.ActionRejected{
		BaseEvent: o.baseEvent(events.ActionRejectedEvent, id),
		Reason:    reason,
	})
	o.persist(ctx, run)
	o.logger.Info("action rejected", "workflow_id", id, "reason", reason)
	return true
}

// persist writes the snapshot upsert. Failures are logged, never returned:
// the in-memory state stays authoritative.
func (o *Orchestrator) persist(ctx context.Context, run *workflowRun) {
	record := toRecord(run.state, run.trigger, run.targetRole)
	if err := o.store.SaveWorkflow(ctx, record); err != nil {
		o.logger.Error("failed to persist workflow", "workflow_id", run.state.WorkflowID, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if o.bus == nil {
		return
	}
	if err := o.bus.Publish(ctx, workflowID, event); err != nil {
		o.logger.Warn("failed to publish event", "workflow_id", workflowID, "event_type", event.GetType(), "error", err)
	}
}

func (o *Orchestrator) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

func snapshotState(state *models.WorkflowState) *models.WorkflowState {
	clone := *state
	clone.History = append([]models.StepRecord(nil), state.History...)
	clone.ValidationErrors = append([]string(nil), state.ValidationErrors...)
	return &clone
}

// toRecord flattens the state for storage: timestamps and enums become
// plain strings, nested structures become JSON maps.
func toRecord(state *models.WorkflowState, trigger string, targetRole models.Role) *models.WorkflowRecord {
	history := make([]models.AuditEntry, 0, len(state.History))
	for _, step := range state.History {
		history = append(history, models.AuditEntry{
			Agent:     string(step.Agent),
			Timestamp: step.Timestamp.Format(time.RFC3339),
			Details:   step.Details,
		})
	}

	validationErrors := state.ValidationErrors
	if validationErrors == nil {
		validationErrors = []string{}
	}

	return &models.WorkflowRecord{
		WorkflowID:       state.WorkflowID,
		Status:           string(state.Status),
		TriggerType:      trigger,
		TargetRole:       string(targetRole),
		RiskEvent:        toJSONMap(state.RiskEvent),
		ActionCard:       toJSONMap(state.ProposedAction),
		FinalOutput:      state.FinalOutput,
		AgentHistory:     history,
		ValidationPassed: state.ValidationPassed,
		ValidationErrors: validationErrors,
		CreatedAt:        state.CreatedAt.Format(time.RFC3339),
		CompletedAt:      time.Now().UTC().Format(time.RFC3339),
	}
}

func toJSONMap(v any) map[string]any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
