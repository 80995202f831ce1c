// Package evaluation is the trust layer: performance metrics, human
// feedback and audit-trail reconstruction.
package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/acctcare/careops/pkg/log"
	"github.com/acctcare/careops/pkg/models"
	"github.com/acctcare/careops/pkg/persistence"
)

// Feedback type values accepted by SubmitFeedback.
const (
	FeedbackThumbsUp   = "thumbs_up"
	FeedbackThumbsDown = "thumbs_down"
	FeedbackEdited     = "edited"
)

// Metric categories tracked by the service.
var metricCategories = []string{"ml_accuracy", "rag_quality", "agent_success"}

// CategorySummary aggregates one metric category.
type CategorySummary struct {
	Count  int                 `json:"count"`
	Avg    float64             `json:"avg"`
	Min    float64             `json:"min"`
	Max    float64             `json:"max"`
	Latest *persistence.Metric `json:"latest_entry,omitempty"`
}

// AuditTrail is the reconstructed history of one workflow run.
type AuditTrail struct {
	WorkflowID  string                 `json:"workflow_id"`
	Status      string                 `json:"status"`
	CreatedAt   string                 `json:"created_at"`
	Timeline    []models.AuditEntry    `json:"timeline"`
	AuditEvents []*models.AuditEvent   `json:"audit_events"`
	FinalOutput map[string]any         `json:"final_output,omitempty"`
	Feedback    []*persistence.Feedback `json:"feedback"`
}

// Service records metrics and feedback through the store. Writes are
// best-effort: a store failure is logged and swallowed so the pipeline
// never fails on the side channel.
type Service struct {
	store  persistence.Persistence
	logger *slog.Logger
}

func NewService(store persistence.Persistence) *Service {
	return &Service{
		store:  store,
		logger: log.WithModule("evaluation"),
	}
}

// LogMetric appends one metric entry.
func (s *Service) LogMetric(ctx context.Context, category, name string, value float64, metadata map[string]any) {
	metric := &persistence.Metric{
		Category:   category,
		MetricName: name,
		Value:      value,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.AppendMetric(ctx, metric); err != nil {
		s.logger.Warn("failed to log metric", "category", category, "metric", name, "error", err)
	}
}

// SubmitFeedback records human feedback and mirrors thumbs as a quality
// metric.
func (s *Service) SubmitFeedback(ctx context.Context, workflowID, feedbackType, comments, userRole string) error {
	if userRole == "" {
		userRole = "unknown"
	}
	entry := &persistence.Feedback{
		WorkflowID:   workflowID,
		FeedbackType: feedbackType,
		Comments:     comments,
		UserRole:     userRole,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.AppendFeedback(ctx, entry); err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	switch feedbackType {
	case FeedbackThumbsUp:
		s.LogMetric(ctx, "agent_success", "workflow_quality", 1.0, map[string]any{"workflow_id": workflowID})
	case FeedbackThumbsDown:
		s.LogMetric(ctx, "agent_success", "workflow_quality", 0.0, map[string]any{"workflow_id": workflowID})
	}
	return nil
}

// MetricsSummary aggregates every tracked category.
func (s *Service) MetricsSummary(ctx context.Context) map[string]CategorySummary {
	summary := make(map[string]CategorySummary, len(metricCategories))
	for _, category := range metricCategories {
		entries, err := s.store.MetricsByCategory(ctx, category)
		if err != nil {
			s.logger.Warn("failed to read metrics", "category", category, "error", err)
			summary[category] = CategorySummary{}
			continue
		}
		summary[category] = summarize(entries)
	}
	return summary
}

func summarize(entries []*persistence.Metric) CategorySummary {
	if len(entries) == 0 {
		return CategorySummary{}
	}
	out := CategorySummary{
		Count:  len(entries),
		Min:    entries[0].Value,
		Max:    entries[0].Value,
		Latest: entries[len(entries)-1],
	}
	var sum float64
	for _, e := range entries {
		sum += e.Value
		if e.Value < out.Min {
			out.Min = e.Value
		}
		if e.Value > out.Max {
			out.Max = e.Value
		}
	}
	out.Avg = sum / float64(len(entries))
	return out
}

// AuditTrail reconstructs the run history from the store: the terminal
// snapshot, the fine-grained per-stage events and any feedback.
func (s *Service) AuditTrail(ctx context.Context, workflowID string) (*AuditTrail, error) {
	record, err := s.store.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	events, err := s.store.AuditEventsByWorkflow(ctx, workflowID)
	if err != nil {
		s.logger.Warn("failed to read audit events", "workflow_id", workflowID, "error", err)
	}
	feedback, err := s.store.FeedbackByWorkflow(ctx, workflowID)
	if err != nil {
		s.logger.Warn("failed to read feedback", "workflow_id", workflowID, "error", err)
	}

	return &AuditTrail{
		WorkflowID:  record.WorkflowID,
		Status:      record.Status,
		CreatedAt:   record.CreatedAt,
		Timeline:    record.AgentHistory,
		AuditEvents: events,
		FinalOutput: record.FinalOutput,
		Feedback:    feedback,
	}, nil
}
