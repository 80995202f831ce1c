package agents

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acctcare/careops/pkg/evaluation"
	"github.com/acctcare/careops/pkg/models"
	"github.com/acctcare/careops/pkg/persistence"
)

// fakeStore is an in-memory persistence with optional error injection.
type fakeStore struct {
	mu        sync.Mutex
	workflows map[string]*models.WorkflowRecord
	audits    []*models.AuditEvent
	metrics   []*persistence.Metric
	failAll   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{workflows: make(map[string]*models.WorkflowRecord)}
}

func (s *fakeStore) SaveWorkflow(_ context.Context, record *models.WorkflowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("store unavailable")
	}
	s.workflows[record.WorkflowID] = record
	return nil
}

func (s *fakeStore) WorkflowByID(_ context.Context, id string) (*models.WorkflowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.workflows[id]
	if !ok {
		return nil, persistence.ErrWorkflowNotFound
	}
	return record, nil
}

func (s *fakeStore) Workflows(_ context.Context) ([]*models.WorkflowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.WorkflowRecord, 0, len(s.workflows))
	for _, record := range s.workflows {
		out = append(out, record)
	}
	return out, nil
}

func (s *fakeStore) AppendAuditEvent(_ context.Context, event *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("store unavailable")
	}
	s.audits = append(s.audits, event)
	return nil
}

func (s *fakeStore) AuditEventsByWorkflow(_ context.Context, workflowID string) ([]*models.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AuditEvent
	for _, event := range s.audits {
		if event.WorkflowID == workflowID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *fakeStore) AppendMetric(_ context.Context, metric *persistence.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("store unavailable")
	}
	s.metrics = append(s.metrics, metric)
	return nil
}

func (s *fakeStore) MetricsByCategory(_ context.Context, category string) ([]*persistence.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*persistence.Metric
	for _, metric := range s.metrics {
		if metric.Category == category {
			out = append(out, metric)
		}
	}
	return out, nil
}

func (s *fakeStore) AppendFeedback(_ context.Context, _ *persistence.Feedback) error { return nil }

func (s *fakeStore) FeedbackByWorkflow(_ context.Context, _ string) ([]*persistence.Feedback, error) {
	return nil, nil
}

func (s *fakeStore) HealthCheck(_ context.Context) error { return nil }
func (s *fakeStore) Close(_ context.Context) error       { return nil }

func (s *fakeStore) auditActions(workflowID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var actions []string
	for _, event := range s.audits {
		if event.WorkflowID == workflowID {
			actions = append(actions, event.Action)
		}
	}
	return actions
}

type stubDetector struct {
	events []models.RiskEvent
	err    error
	panics bool
}

func (d *stubDetector) DetectEvents(_ context.Context) ([]models.RiskEvent, error) {
	if d.panics {
		panic("detector exploded")
	}
	return d.events, d.err
}

type stubRetriever struct {
	result *RetrievalResult
	err    error
	calls  int
}

func (r *stubRetriever) RetrieveContext(_ context.Context, _ *models.RiskEvent) (*RetrievalResult, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if r.result != nil {
		return r.result, nil
	}
	return &RetrievalResult{
		Query:      "What is the protocol for capacity_breach?",
		Context:    "ICU surge protocol text",
		Sources:    []models.CitedSource{{SourceID: "icu-surge", RelevanceScore: 0.9}},
		Sufficient: true,
	}, nil
}

// stubPlanner returns cards in sequence, repeating the last one.
type stubPlanner struct {
	cards []*models.ActionCard
	err   error
	calls int
}

func (p *stubPlanner) GeneratePlan(_ context.Context, _ *models.RiskEvent, _ string, sources []models.CitedSource) (*models.ActionCard, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	card := p.cards[len(p.cards)-1]
	if p.calls <= len(p.cards) {
		card = p.cards[p.calls-1]
	}
	clone := *card
	clone.CitedSources = sources
	return &clone, nil
}

type stubFormatter struct {
	err error
}

func (f *stubFormatter) Format(card *models.ActionCard, role models.Role) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "NOTIFY " + string(role) + ": " + card.Title, nil
}

func goodCard() *models.ActionCard {
	return &models.ActionCard{
		CardID:      "AC-good0001",
		ActionType:  models.ActionTransfer,
		Title:       "ICU Capacity Management",
		Description: "Step-down eligible patients",
		Urgency:     models.UrgencyHigh,
		Rationale:   "Occupancy above surge threshold",
		Steps:       []string{"Review stable patients", "Prepare step-down beds"},
	}
}

func badCard() *models.ActionCard {
	return &models.ActionCard{
		CardID:     "AC-bad00001",
		ActionType: models.ActionAlert,
		Title:      "Incomplete plan",
		Urgency:    models.UrgencyLow,
		Steps:      []string{"Only one step"},
	}
}

func capacityEvent() models.RiskEvent {
	return models.RiskEvent{
		EventID:        "evt-1",
		EventType:      "capacity_breach",
		Severity:       models.SeverityHigh,
		MetricName:     "icu_occupancy",
		CurrentValue:   92,
		ThresholdValue: 90,
		Unit:           "%",
	}
}

func newTestOrchestrator(t *testing.T, cfg Config, detector RiskDetector, retriever ContextRetriever, planGen PlanGenerator, store *fakeStore) *Orchestrator {
	t.Helper()

	guardrail, err := NewGuardrail()
	require.NoError(t, err)

	return NewOrchestrator(cfg, detector, retriever, planGen, &stubFormatter{}, guardrail, store, evaluation.NewService(store), nil)
}

func TestRunWorkflow_NoEvents(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, Config{},
		&stubDetector{}, &stubRetriever{}, &stubPlanner{cards: []*models.ActionCard{goodCard()}}, store)

	state, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)

	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, state.Status)
	assert.Equal(t, map[string]any{"message": "No risk events detected"}, state.FinalOutput)
	assert.Equal(t, 0, state.Iteration)
	assert.Nil(t, state.RiskEvent)

	// Only the monitor stage ran.
	assert.Equal(t, []string{"risk_detection"}, store.auditActions(state.WorkflowID))

	// The terminal snapshot was persisted.
	record, err := store.WorkflowByID(context.Background(), state.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, "completed", record.Status)
	assert.Equal(t, "manual", record.TriggerType)
}

func TestRunWorkflow_CompletesFirstIteration(t *testing.T) {
	store := newFakeStore()
	retriever := &stubRetriever{}
	o := newTestOrchestrator(t, Config{},
		&stubDetector{events: []models.RiskEvent{capacityEvent()}},
		retriever,
		&stubPlanner{cards: []*models.ActionCard{goodCard()}},
		store)

	state, err := o.RunWorkflow(context.Background(), "schedule", models.RoleNurse)

	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, state.Status)
	assert.Equal(t, 1, state.Iteration)
	assert.True(t, state.ValidationPassed)
	assert.Empty(t, state.ValidationErrors)
	require.NotNil(t, state.ProposedAction)
	assert.Equal(t, "ICU Capacity Management", state.ProposedAction.Title)

	// Sources from retrieval are carried onto the card.
	assert.Equal(t, "icu-surge", state.ProposedAction.CitedSources[0].SourceID)

	// Formatted message and metadata in the final output.
	assert.Equal(t, "nurse", state.FinalOutput["role"])
	assert.Equal(t, "NOTIFY nurse: ICU Capacity Management", state.FinalOutput["formatted_message"])
	assert.NotNil(t, state.FinalOutput["action_card"])

	// Audit trail order matches the stage order.
	assert.Equal(t, []string{
		"risk_detection",
		"context_fetching",
		"action_generation",
		"safety_validation",
		"message_formatting",
	}, store.auditActions(state.WorkflowID))
}

func TestRunWorkflow_RetriesUntilValid(t *testing.T) {
	store := newFakeStore()
	planner := &stubPlanner{cards: []*models.ActionCard{badCard(), badCard(), goodCard()}}
	o := newTestOrchestrator(t, Config{MaxIterations: 3},
		&stubDetector{events: []models.RiskEvent{capacityEvent()}},
		&stubRetriever{}, planner, store)

	state, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)

	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, state.Status)
	assert.Equal(t, 3, state.Iteration)
	assert.Equal(t, 3, planner.calls)
	assert.True(t, state.ValidationPassed)

	actions := store.auditActions(state.WorkflowID)
	assert.Equal(t, []string{
		"risk_detection",
		"context_fetching",
		"action_generation",
		"safety_validation",
		"action_generation",
		"safety_validation",
		"action_generation",
		"safety_validation",
		"message_formatting",
	}, actions)
}

func TestRunWorkflow_ExhaustsIterations(t *testing.T) {
	store := newFakeStore()
	planner := &stubPlanner{cards: []*models.ActionCard{badCard()}}
	o := newTestOrchestrator(t, Config{MaxIterations: 3},
		&stubDetector{events: []models.RiskEvent{capacityEvent()}},
		&stubRetriever{}, planner, store)

	state, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)

	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusFailed, state.Status)
	assert.Equal(t, 3, state.Iteration)
	assert.Equal(t, 3, planner.calls)
	assert.False(t, state.ValidationPassed)
	assert.Equal(t, "Validation failed after max iterations", state.FinalOutput["error"])
	assert.NotEmpty(t, state.ValidationErrors)

	record, err := store.WorkflowByID(context.Background(), state.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, "failed", record.Status)
	assert.NotEmpty(t, record.ValidationErrors)
}

func TestRunWorkflow_RetrievalRunsOncePerRun(t *testing.T) {
	store := newFakeStore()
	retriever := &stubRetriever{}
	o := newTestOrchestrator(t, Config{MaxIterations: 3},
		&stubDetector{events: []models.RiskEvent{capacityEvent()}},
		retriever,
		&stubPlanner{cards: []*models.ActionCard{badCard()}},
		store)

	_, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)

	require.NoError(t, err)
	assert.Equal(t, 1, retriever.calls)
}

func TestRunWorkflow_DetectorError(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, Config{},
		&stubDetector{err: errors.New("forecaster offline")},
		&stubRetriever{},
		&stubPlanner{cards: []*models.ActionCard{goodCard()}},
		store)

	state, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)

	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusFailed, state.Status)
	assert.Contains(t, state.FinalOutput["error"], "risk detection failed")
}

func TestRunWorkflow_PanicCaptured(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, Config{},
		&stubDetector{panics: true},
		&stubRetriever{},
		&stubPlanner{cards: []*models.ActionCard{goodCard()}},
		store)

	state, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)

	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusFailed, state.Status)
	assert.Contains(t, state.FinalOutput["error"], "workflow stage panicked")
	assert.Contains(t, state.FinalOutput["error"], "detector exploded")
}

func TestRunWorkflow_PersistenceFailureDoesNotFailRun(t *testing.T) {
	store := newFakeStore()
	store.failAll = true

	o := newTestOrchestrator(t, Config{},
		&stubDetector{events: []models.RiskEvent{capacityEvent()}},
		&stubRetriever{},
		&stubPlanner{cards: []*models.ActionCard{goodCard()}},
		store)

	state, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)

	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, state.Status)

	// The snapshot never reached the store, the in-memory state is still
	// available.
	_, err = store.WorkflowByID(context.Background(), state.WorkflowID)
	assert.Error(t, err)

	inMemory, ok := o.WorkflowStatus(state.WorkflowID)
	require.True(t, ok)
	assert.Equal(t, models.WorkflowStatusCompleted, inMemory.Status)
}

func TestRunWorkflow_RequireApproval(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, Config{RequireApproval: true},
		&stubDetector{events: []models.RiskEvent{capacityEvent()}},
		&stubRetriever{},
		&stubPlanner{cards: []*models.ActionCard{goodCard()}},
		store)

	state, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)

	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusAwaitingApproval, state.Status)

	record, err := store.WorkflowByID(context.Background(), state.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_approval", record.Status)
}

func TestApproveAction(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, Config{RequireApproval: true},
		&stubDetector{events: []models.RiskEvent{capacityEvent()}},
		&stubRetriever{},
		&stubPlanner{cards: []*models.ActionCard{goodCard()}},
		store)

	state, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)
	require.NoError(t, err)

	assert.True(t, o.ApproveAction(context.Background(), state.WorkflowID))

	current, ok := o.WorkflowStatus(state.WorkflowID)
	require.True(t, ok)
	assert.Equal(t, models.WorkflowStatusApproved, current.Status)

	// The approval is re-persisted.
	record, err := store.WorkflowByID(context.Background(), state.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, "approved", record.Status)

	// Approving twice fails, the run is no longer awaiting approval.
	assert.False(t, o.ApproveAction(context.Background(), state.WorkflowID))
}

func TestRejectAction(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, Config{RequireApproval: true},
		&stubDetector{events: []models.RiskEvent{capacityEvent()}},
		&stubRetriever{},
		&stubPlanner{cards: []*models.ActionCard{goodCard()}},
		store)

	state, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)
	require.NoError(t, err)

	assert.True(t, o.RejectAction(context.Background(), state.WorkflowID, "not clinically appropriate"))

	current, ok := o.WorkflowStatus(state.WorkflowID)
	require.True(t, ok)
	assert.Equal(t, models.WorkflowStatusRejected, current.Status)
	assert.Contains(t, current.ValidationErrors, "Rejected: not clinically appropriate")

	assert.False(t, o.RejectAction(context.Background(), state.WorkflowID, "again"))
	assert.False(t, o.ApproveAction(context.Background(), state.WorkflowID))
}

func TestApproveAction_UnknownWorkflow(t *testing.T) {
	o := newTestOrchestrator(t, Config{}, &stubDetector{}, &stubRetriever{}, &stubPlanner{cards: []*models.ActionCard{goodCard()}}, newFakeStore())

	assert.False(t, o.ApproveAction(context.Background(), "missing"))
	assert.False(t, o.RejectAction(context.Background(), "missing", "reason"))
}

func TestApproveAction_CompletedRun(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, Config{},
		&stubDetector{events: []models.RiskEvent{capacityEvent()}},
		&stubRetriever{},
		&stubPlanner{cards: []*models.ActionCard{goodCard()}},
		store)

	state, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusCompleted, state.Status)

	// Completed runs never transition through the approval gate.
	assert.False(t, o.ApproveAction(context.Background(), state.WorkflowID))
}

func TestRunWorkflow_Defaults(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, Config{},
		&stubDetector{events: []models.RiskEvent{capacityEvent()}},
		&stubRetriever{},
		&stubPlanner{cards: []*models.ActionCard{goodCard()}},
		store)

	state, err := o.RunWorkflow(context.Background(), "", "")

	require.NoError(t, err)
	assert.Equal(t, DefaultMaxIterations, state.MaxIterations)
	assert.Equal(t, "nurse", state.FinalOutput["role"])

	record, err := store.WorkflowByID(context.Background(), state.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, "auto", record.TriggerType)
	assert.Equal(t, "nurse", record.TargetRole)
}

func TestRunWorkflow_MetricsLogged(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, Config{},
		&stubDetector{events: []models.RiskEvent{capacityEvent()}},
		&stubRetriever{},
		&stubPlanner{cards: []*models.ActionCard{goodCard()}},
		store)

	_, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)
	require.NoError(t, err)

	ragMetrics, err := store.MetricsByCategory(context.Background(), "rag_quality")
	require.NoError(t, err)
	require.Len(t, ragMetrics, 1)
	assert.Equal(t, "context_retrieval", ragMetrics[0].MetricName)
	assert.Equal(t, 1.0, ragMetrics[0].Value)

	successMetrics, err := store.MetricsByCategory(context.Background(), "agent_success")
	require.NoError(t, err)
	require.Len(t, successMetrics, 1)
	assert.Equal(t, "workflow_completion", successMetrics[0].MetricName)
	assert.Equal(t, 1.0, successMetrics[0].Value)
}

func TestRunWorkflow_SuccessMetricNotLoggedBeforeApproval(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, Config{RequireApproval: true},
		&stubDetector{events: []models.RiskEvent{capacityEvent()}},
		&stubRetriever{},
		&stubPlanner{cards: []*models.ActionCard{goodCard()}},
		store)

	state, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusAwaitingApproval, state.Status)

	// The run is still awaiting a human decision; only completed counts
	// as success.
	successMetrics, err := store.MetricsByCategory(context.Background(), "agent_success")
	require.NoError(t, err)
	require.Len(t, successMetrics, 1)
	assert.Equal(t, "workflow_completion", successMetrics[0].MetricName)
	assert.Equal(t, 0.0, successMetrics[0].Value)
}

func TestListWorkflows(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, Config{}, &stubDetector{}, &stubRetriever{}, &stubPlanner{cards: []*models.ActionCard{goodCard()}}, store)

	first, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)
	require.NoError(t, err)
	second, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)
	require.NoError(t, err)

	workflows := o.ListWorkflows()
	require.Len(t, workflows, 2)

	ids := []string{workflows[0].WorkflowID, workflows[1].WorkflowID}
	assert.Contains(t, ids, first.WorkflowID)
	assert.Contains(t, ids, second.WorkflowID)
	assert.False(t, workflows[0].CreatedAt.Before(workflows[1].CreatedAt))
}

func TestWorkflowStatus_SnapshotIsolated(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, Config{RequireApproval: true},
		&stubDetector{events: []models.RiskEvent{capacityEvent()}},
		&stubRetriever{},
		&stubPlanner{cards: []*models.ActionCard{goodCard()}},
		store)

	state, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)
	require.NoError(t, err)

	snapshot, ok := o.WorkflowStatus(state.WorkflowID)
	require.True(t, ok)
	snapshot.Status = models.WorkflowStatusFailed
	snapshot.History = append(snapshot.History, models.StepRecord{Agent: models.AgentMonitor})

	fresh, ok := o.WorkflowStatus(state.WorkflowID)
	require.True(t, ok)
	assert.Equal(t, models.WorkflowStatusAwaitingApproval, fresh.Status)
	assert.Len(t, fresh.History, 5)
}

func TestWorkflowStatus_Unknown(t *testing.T) {
	o := newTestOrchestrator(t, Config{}, &stubDetector{}, &stubRetriever{}, &stubPlanner{cards: []*models.ActionCard{goodCard()}}, newFakeStore())

	_, ok := o.WorkflowStatus("missing")
	assert.False(t, ok)
}

func TestPersistedRecord_PreservesAuditOrder(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, Config{},
		&stubDetector{events: []models.RiskEvent{capacityEvent()}},
		&stubRetriever{},
		&stubPlanner{cards: []*models.ActionCard{goodCard()}},
		store)

	state, err := o.RunWorkflow(context.Background(), "manual", models.RoleNurse)
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusCompleted, state.Status)

	record, err := store.WorkflowByID(context.Background(), state.WorkflowID)
	require.NoError(t, err)
	require.Len(t, record.AgentHistory, len(state.History))

	for i, step := range state.History {
		assert.Equal(t, string(step.Agent), record.AgentHistory[i].Agent)
		assert.Equal(t, step.Timestamp.Format(time.RFC3339), record.AgentHistory[i].Timestamp)
	}
}
