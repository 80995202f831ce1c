// Package persistence provides the data storage abstraction layer for
// workflow runs, audit events, metrics and feedback.
package persistence

import (
	"context"

	"github.com/acctcare/careops/pkg/models"
)

// Metric is one entry of the evaluation side channel.
type Metric struct {
	Category   string         `json:"category"`
	MetricName string         `json:"metric_name"`
	Value      float64        `json:"value"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// Feedback is a single human feedback entry for a workflow result.
type Feedback struct {
	WorkflowID   string `json:"workflow_id"`
	FeedbackType string `json:"feedback_type"`
	Comments     string `json:"comments,omitempty"`
	UserRole     string `json:"user_role"`
	CreatedAt    string `json:"created_at"`
}

type Persistence interface {
	// SaveWorkflow upserts the terminal snapshot of a run.
	SaveWorkflow(ctx context.Context, record *models.WorkflowRecord) error
	WorkflowByID(ctx context.Context, id string) (*models.WorkflowRecord, error)
	Workflows(ctx context.Context) ([]*models.WorkflowRecord, error)

	// AppendAuditEvent writes one fine-grained per-stage record.
	AppendAuditEvent(ctx context.Context, event *models.AuditEvent) error
	AuditEventsByWorkflow(ctx context.Context, workflowID string) ([]*models.AuditEvent, error)

	AppendMetric(ctx context.Context, metric *Metric) error
	MetricsByCategory(ctx context.Context, category string) ([]*Metric, error)

	AppendFeedback(ctx context.Context, feedback *Feedback) error
	FeedbackByWorkflow(ctx context.Context, workflowID string) ([]*Feedback, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
