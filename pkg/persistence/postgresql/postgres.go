// Package postgresql provides the PostgreSQL persistence implementation for
// workflow runs, audit events, metrics and feedback.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/acctcare/careops/pkg/models"
	"github.com/acctcare/careops/pkg/persistence"
	"github.com/acctcare/careops/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence creates a new PostgreSQL persistence layer and runs
// migrations on initialization.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{db: database, logger: logger}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// SaveWorkflow upserts the terminal snapshot of a workflow run.
func (p *Persistence) SaveWorkflow(ctx context.Context, record *models.WorkflowRecord) error {
	riskEvent, err := marshalNullable(record.RiskEvent)
	if err != nil {
		return persistence.NewStoreError("SaveWorkflow", record.WorkflowID, err)
	}

	actionCard, err := marshalNullable(record.ActionCard)
	if err != nil {
		return persistence.NewStoreError("SaveWorkflow", record.WorkflowID, err)
	}

	finalOutput, err := marshalNullable(record.FinalOutput)
	if err != nil {
		return persistence.NewStoreError("SaveWorkflow", record.WorkflowID, err)
	}

	history, err := json.Marshal(record.AgentHistory)
	if err != nil {
		return persistence.NewStoreError("SaveWorkflow", record.WorkflowID, err)
	}

	validationErrors, err := json.Marshal(record.ValidationErrors)
	if err != nil {
		return persistence.NewStoreError("SaveWorkflow", record.WorkflowID, err)
	}

	query := `
		INSERT INTO workflows (
			workflow_id, status, trigger_type, target_role, risk_event,
			action_card, final_output, agent_history, validation_passed,
			validation_errors, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (workflow_id) DO UPDATE SET
			status = EXCLUDED.status,
			risk_event = EXCLUDED.risk_event,
			action_card = EXCLUDED.action_card,
			final_output = EXCLUDED.final_output,
			agent_history = EXCLUDED.agent_history,
			validation_passed = EXCLUDED.validation_passed,
			validation_errors = EXCLUDED.validation_errors,
			completed_at = EXCLUDED.completed_at
	`

	_, err = p.db.ExecContext(ctx, query,
		record.WorkflowID, record.Status, record.TriggerType, record.TargetRole,
		riskEvent, actionCard, finalOutput, history, record.ValidationPassed,
		validationErrors, record.CreatedAt, record.CompletedAt,
	)
	if err != nil {
		return persistence.NewStoreError("SaveWorkflow", record.WorkflowID, err)
	}

	return nil
}

// WorkflowByID returns the stored snapshot of a run.
func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.WorkflowRecord, error) {
	query := `
		SELECT workflow_id, status, trigger_type, target_role, risk_event,
		       action_card, final_output, agent_history, validation_passed,
		       validation_errors, created_at, completed_at
		FROM workflows WHERE workflow_id = $1
	`

	record, err := scanWorkflow(p.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrWorkflowNotFound
	}

	if err != nil {
		return nil, persistence.NewStoreError("WorkflowByID", id, err)
	}

	return record, nil
}

// Workflows returns all stored workflow runs, newest first.
func (p *Persistence) Workflows(ctx context.Context) ([]*models.WorkflowRecord, error) {
	query := `
		SELECT workflow_id, status, trigger_type, target_role, risk_event,
		       action_card, final_output, agent_history, validation_passed,
		       validation_errors, created_at, completed_at
		FROM workflows ORDER BY created_at DESC
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, persistence.NewStoreError("Workflows", "", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*models.WorkflowRecord

	for rows.Next() {
		record, err := scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewStoreError("Workflows", "", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("Workflows", "", err)
	}

	return records, nil
}

// AppendAuditEvent writes one fine-grained per-stage record.
func (p *Persistence) AppendAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	details, err := marshalNullable(event.Details)
	if err != nil {
		return persistence.NewStoreError("AppendAuditEvent", event.WorkflowID, err)
	}

	query := `
		INSERT INTO audit_events (workflow_id, agent, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = p.db.ExecContext(ctx, query, event.WorkflowID, event.Agent, event.Action, details, event.CreatedAt)
	if err != nil {
		return persistence.NewStoreError("AppendAuditEvent", event.WorkflowID, err)
	}

	return nil
}

// AuditEventsByWorkflow returns the audit events of a run in write order.
func (p *Persistence) AuditEventsByWorkflow(ctx context.Context, workflowID string) ([]*models.AuditEvent, error) {
	query := `
		SELECT workflow_id, agent, action, details, created_at
		FROM audit_events WHERE workflow_id = $1 ORDER BY id ASC
	`

	rows, err := p.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, persistence.NewStoreError("AuditEventsByWorkflow", workflowID, err)
	}
	defer func() { _ = rows.Close() }()

	var events []*models.AuditEvent

	for rows.Next() {
		var (
			event   models.AuditEvent
			details []byte
		)

		err = rows.Scan(&event.WorkflowID, &event.Agent, &event.Action, &details, &event.CreatedAt)
		if err != nil {
			return nil, persistence.NewStoreError("AuditEventsByWorkflow", workflowID, err)
		}

		if len(details) > 0 {
			err = json.Unmarshal(details, &event.Details)
			if err != nil {
				return nil, persistence.NewStoreError("AuditEventsByWorkflow", workflowID, err)
			}
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("AuditEventsByWorkflow", workflowID, err)
	}

	return events, nil
}

// AppendMetric writes one evaluation metric entry.
func (p *Persistence) AppendMetric(ctx context.Context, metric *persistence.Metric) error {
	metadata, err := marshalNullable(metric.Metadata)
	if err != nil {
		return persistence.NewStoreError("AppendMetric", "", err)
	}

	query := `
		INSERT INTO metrics (category, metric_name, value, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = p.db.ExecContext(ctx, query, metric.Category, metric.MetricName, metric.Value, metadata, metric.CreatedAt)
	if err != nil {
		return persistence.NewStoreError("AppendMetric", "", err)
	}

	return nil
}

// MetricsByCategory returns all metric entries of a category in write order.
func (p *Persistence) MetricsByCategory(ctx context.Context, category string) ([]*persistence.Metric, error) {
	query := `
		SELECT category, metric_name, value, metadata, created_at
		FROM metrics WHERE category = $1 ORDER BY id ASC
	`

	rows, err := p.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, persistence.NewStoreError("MetricsByCategory", "", err)
	}
	defer func() { _ = rows.Close() }()

	var metrics []*persistence.Metric

	for rows.Next() {
		var (
			metric   persistence.Metric
			metadata []byte
		)

		err = rows.Scan(&metric.Category, &metric.MetricName, &metric.Value, &metadata, &metric.CreatedAt)
		if err != nil {
			return nil, persistence.NewStoreError("MetricsByCategory", "", err)
		}

		if len(metadata) > 0 {
			err = json.Unmarshal(metadata, &metric.Metadata)
			if err != nil {
				return nil, persistence.NewStoreError("MetricsByCategory", "", err)
			}
		}

		metrics = append(metrics, &metric)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("MetricsByCategory", "", err)
	}

	return metrics, nil
}

// AppendFeedback writes one human feedback entry.
func (p *Persistence) AppendFeedback(ctx context.Context, feedback *persistence.Feedback) error {
	query := `
		INSERT INTO feedback (workflow_id, feedback_type, comments, user_role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := p.db.ExecContext(ctx, query,
		feedback.WorkflowID, feedback.FeedbackType, feedback.Comments, feedback.UserRole, feedback.CreatedAt)
	if err != nil {
		return persistence.NewStoreError("AppendFeedback", feedback.WorkflowID, err)
	}

	return nil
}

// FeedbackByWorkflow returns all feedback entries of a run in write order.
func (p *Persistence) FeedbackByWorkflow(ctx context.Context, workflowID string) ([]*persistence.Feedback, error) {
	query := `
		SELECT workflow_id, feedback_type, COALESCE(comments, ''), user_role, created_at
		FROM feedback WHERE workflow_id = $1 ORDER BY id ASC
	`

	rows, err := p.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, persistence.NewStoreError("FeedbackByWorkflow", workflowID, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*persistence.Feedback

	for rows.Next() {
		var entry persistence.Feedback

		err = rows.Scan(&entry.WorkflowID, &entry.FeedbackType, &entry.Comments, &entry.UserRole, &entry.CreatedAt)
		if err != nil {
			return nil, persistence.NewStoreError("FeedbackByWorkflow", workflowID, err)
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("FeedbackByWorkflow", workflowID, err)
	}

	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.WorkflowRecord, error) {
	var (
		record           models.WorkflowRecord
		riskEvent        []byte
		actionCard       []byte
		finalOutput      []byte
		history          []byte
		validationErrors []byte
	)

	err := row.Scan(
		&record.WorkflowID, &record.Status, &record.TriggerType, &record.TargetRole,
		&riskEvent, &actionCard, &finalOutput, &history, &record.ValidationPassed,
		&validationErrors, &record.CreatedAt, &record.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, field := range []struct {
		data []byte
		dest any
	}{
		{riskEvent, &record.RiskEvent},
		{actionCard, &record.ActionCard},
		{finalOutput, &record.FinalOutput},
		{history, &record.AgentHistory},
		{validationErrors, &record.ValidationErrors},
	} {
		if len(field.data) == 0 {
			continue
		}

		err = json.Unmarshal(field.data, field.dest)
		if err != nil {
			return nil, err
		}
	}

	return &record, nil
}

func marshalNullable(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if v == nil {
			return nil, nil
		}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	return data, nil
}
