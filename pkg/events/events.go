// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/acctcare/careops/pkg/models"
)

type EventType string

// Topic carries all workflow lifecycle and stage events.
const Topic = "careops.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowStartedEvent   EventType = "workflow.started"
	WorkflowCompletedEvent EventType = "workflow.completed"
	WorkflowFailedEvent    EventType = "workflow.failed"
	AgentStageEvent        EventType = "workflow.agent.stage"
	ActionApprovedEvent    EventType = "workflow.action.approved"
	ActionRejectedEvent    EventType = "workflow.action.rejected"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
}

type WorkflowStarted struct {
	BaseEvent

	TriggerType string `json:"trigger_type"`
	TargetRole  string `json:"target_role"`
}

func (w WorkflowStarted) GetType() EventType {
	return WorkflowStartedEvent
}

type WorkflowCompleted struct {
	BaseEvent

	Status     string        `json:"status"`
	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"duration"`
}

func (w WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}

type WorkflowFailed struct {
	BaseEvent

	Error      string   `json:"error,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

func (w WorkflowFailed) GetType() EventType {
	return WorkflowFailedEvent
}

// AgentStage is published once per executed pipeline stage, in stage order.
type AgentStage struct {
	BaseEvent

	Agent   models.AgentType `json:"agent"`
	Action  string           `json:"action"`
	Details map[string]any   `json:"details,omitempty"`
}

func (a AgentStage) GetType() EventType {
	return AgentStageEvent
}

type ActionApproved struct {
	BaseEvent
}

func (a ActionApproved) GetType() EventType {
	return ActionApprovedEvent
}

type ActionRejected struct {
	BaseEvent

	Reason string `json:"reason"`
}

func (a ActionRejected) GetType() EventType {
	return ActionRejectedEvent
}
