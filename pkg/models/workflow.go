// Package models defines the core domain models for the decision-support workflow pipeline.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow run.
type WorkflowStatus string

const (
	WorkflowStatusPending          WorkflowStatus = "pending"
	WorkflowStatusRunning          WorkflowStatus = "running"
	WorkflowStatusAwaitingApproval WorkflowStatus = "awaiting_approval"
	WorkflowStatusApproved         WorkflowStatus = "approved"
	WorkflowStatusRejected         WorkflowStatus = "rejected"
	WorkflowStatusCompleted        WorkflowStatus = "completed"
	WorkflowStatusFailed           WorkflowStatus = "failed"
)

// IsTerminal reports whether no further agent stage may execute against the run.
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case WorkflowStatusApproved, WorkflowStatusRejected, WorkflowStatusCompleted, WorkflowStatusFailed:
		return true
	default:
		return false
	}
}

// AgentType identifies a stage of the workflow pipeline.
type AgentType string

const (
	AgentMonitor   AgentType = "monitor"
	AgentRetrieval AgentType = "retrieval"
	AgentPlanning  AgentType = "planning"
	AgentGuardrail AgentType = "guardrail"
	AgentNotifier  AgentType = "notifier"
)

// StepRecord is a single append-only audit trail entry.
type StepRecord struct {
	Agent     AgentType      `json:"agent"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// WorkflowState is the unit of work threaded through the agent pipeline.
// It is mutated exclusively by the orchestrator until a terminal status is
// reached, after which it is read-only.
type WorkflowState struct {
	WorkflowID    string         `json:"workflow_id"`
	Status        WorkflowStatus `json:"status"`
	CurrentAgent  AgentType      `json:"current_agent,omitempty"`
	Iteration     int            `json:"iteration"`
	MaxIterations int            `json:"max_iterations"`

	RiskEvent *RiskEvent `json:"risk_event,omitempty"`

	RetrievedContext  string        `json:"retrieved_context,omitempty"`
	RetrievedSources  []CitedSource `json:"retrieved_sources,omitempty"`
	ContextSufficient bool          `json:"context_sufficient"`

	ProposedAction *ActionCard `json:"action_card,omitempty"`

	ValidationPassed bool     `json:"validation_passed"`
	ValidationErrors []string `json:"validation_errors,omitempty"`

	FinalOutput map[string]any `json:"final_output,omitempty"`

	History   []StepRecord `json:"agent_history"`
	CreatedAt time.Time    `json:"created_at"`
}

// WorkflowRecord is the persistence representation of a terminal run.
// All timestamps and enums are flattened to plain strings before the write,
// so no language-native temporal or enum values reach the store.
type WorkflowRecord struct {
	WorkflowID       string         `json:"workflow_id"`
	Status           string         `json:"status"`
	TriggerType      string         `json:"trigger_type"`
	TargetRole       string         `json:"target_role"`
	RiskEvent        map[string]any `json:"risk_event,omitempty"`
	ActionCard       map[string]any `json:"action_card,omitempty"`
	FinalOutput      map[string]any `json:"final_output,omitempty"`
	AgentHistory     []AuditEntry   `json:"agent_history"`
	ValidationPassed bool           `json:"validation_passed"`
	ValidationErrors []string       `json:"validation_errors"`
	CreatedAt        string         `json:"created_at"`
	CompletedAt      string         `json:"completed_at"`
}

// AuditEntry is the string-normalized form of a StepRecord.
type AuditEntry struct {
	Agent     string         `json:"agent"`
	Timestamp string         `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// AuditEvent is the fine-grained per-stage record written to the audit store
// as each stage completes, independent of the terminal snapshot.
type AuditEvent struct {
	WorkflowID string         `json:"workflow_id"`
	Agent      string         `json:"agent"`
	Action     string         `json:"action"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
