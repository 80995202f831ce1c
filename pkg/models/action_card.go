package models

import "time"

// Urgency is the priority of a proposed action.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// ActionType classifies what kind of intervention an action card proposes.
type ActionType string

const (
	ActionTransfer  ActionType = "transfer"
	ActionDischarge ActionType = "discharge"
	ActionEscalate  ActionType = "escalate"
	ActionAlert     ActionType = "alert"
	ActionConsult   ActionType = "consult"
)

// Role is a notification audience.
type Role string

const (
	RolePhysician Role = "physician"
	RoleNurse     Role = "nurse"
	RoleAdmin     Role = "admin"
	RolePatient   Role = "patient"
)

// CitedSource references a protocol document backing a recommendation.
type CitedSource struct {
	SourceID       string  `json:"source_id"`
	SourceTitle    string  `json:"source_title"`
	RelevanceScore float64 `json:"relevance_score"`
}

// ActionCard is the structured recommendation produced by a planning
// iteration. Steps are always plain strings; structured generator output is
// flattened before the card is built. A retry produces a fresh card, never a
// mutation of the prior one.
type ActionCard struct {
	CardID         string        `json:"card_id"`
	ActionType     ActionType    `json:"action_type"`
	Title          string        `json:"title"`
	Summary        string        `json:"summary"`
	Description    string        `json:"description"`
	Urgency        Urgency       `json:"urgency"`
	Rationale      string        `json:"rationale"`
	Steps          []string      `json:"steps"`
	TargetPatients []string      `json:"target_patients,omitempty"`
	CitedSources   []CitedSource `json:"cited_sources,omitempty"`
	GeneratedAt    time.Time     `json:"generated_at"`
}
