// Package file provides a file-based persistence implementation used for
// development and tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/acctcare/careops/pkg/models"
	"github.com/acctcare/careops/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of the file system.
// One JSON document per workflow, append-only JSON arrays for audit events,
// metrics and feedback.
type Persistence struct {
	root string
	mu   sync.Mutex
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix is stripped so database-url style flags work unchanged.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) SaveWorkflow(_ context.Context, record *models.WorkflowRecord) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return fp.writeJSON(filepath.Join("workflows", record.WorkflowID+".json"), record)
}

func (fp *Persistence) WorkflowByID(_ context.Context, id string) (*models.WorkflowRecord, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	var record models.WorkflowRecord

	err := fp.readJSON(filepath.Join("workflows", id+".json"), &record)
	if os.IsNotExist(err) {
		return nil, persistence.ErrWorkflowNotFound
	}

	if err != nil {
		return nil, persistence.NewStoreError("WorkflowByID", id, err)
	}

	return &record, nil
}

func (fp *Persistence) Workflows(_ context.Context) ([]*models.WorkflowRecord, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(fp.root, "workflows"))
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, persistence.NewStoreError("Workflows", "", err)
	}

	var records []*models.WorkflowRecord

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var record models.WorkflowRecord

		err = fp.readJSON(filepath.Join("workflows", entry.Name()), &record)
		if err != nil {
			return nil, persistence.NewStoreError("Workflows", "", err)
		}

		records = append(records, &record)
	}

	return records, nil
}

func (fp *Persistence) AppendAuditEvent(_ context.Context, event *models.AuditEvent) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return appendTo(fp, filepath.Join("audit_events", event.WorkflowID+".json"), event)
}

func (fp *Persistence) AuditEventsByWorkflow(_ context.Context, workflowID string) ([]*models.AuditEvent, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return readList[models.AuditEvent](fp, filepath.Join("audit_events", workflowID+".json"))
}

func (fp *Persistence) AppendMetric(_ context.Context, metric *persistence.Metric) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return appendTo(fp, filepath.Join("metrics", metric.Category+".json"), metric)
}

func (fp *Persistence) MetricsByCategory(_ context.Context, category string) ([]*persistence.Metric, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return readList[persistence.Metric](fp, filepath.Join("metrics", category+".json"))
}

func (fp *Persistence) AppendFeedback(_ context.Context, feedback *persistence.Feedback) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return appendTo(fp, filepath.Join("feedback", feedback.WorkflowID+".json"), feedback)
}

func (fp *Persistence) FeedbackByWorkflow(_ context.Context, workflowID string) ([]*persistence.Feedback, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return readList[persistence.Feedback](fp, filepath.Join("feedback", workflowID+".json"))
}

func (fp *Persistence) writeJSON(relPath string, value any) error {
	fullPath := filepath.Join(fp.root, relPath)

	err := os.MkdirAll(filepath.Dir(fullPath), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", relPath, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", relPath, err)
	}

	err = os.WriteFile(fullPath, data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", relPath, err)
	}

	return nil
}

func (fp *Persistence) readJSON(relPath string, dest any) error {
	data, err := os.ReadFile(filepath.Join(fp.root, relPath))
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

// appendTo reads the existing list, appends one entry and rewrites the file.
func appendTo[T any](fp *Persistence, relPath string, entry *T) error {
	entries, err := readList[T](fp, relPath)
	if err != nil {
		return err
	}

	entries = append(entries, entry)

	return fp.writeJSON(relPath, entries)
}

func readList[T any](fp *Persistence, relPath string) ([]*T, error) {
	var entries []*T

	err := fp.readJSON(relPath, &entries)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", relPath, err)
	}

	return entries, nil
}
