package models

import "time"

// Severity classifies how serious a detected risk event is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for event prioritization, higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// RiskEvent is a detected threshold breach or anomaly. Immutable once created;
// one workflow run consumes at most one.
type RiskEvent struct {
	EventID           string    `json:"event_id"`
	EventType         string    `json:"event_type"`
	Severity          Severity  `json:"severity"`
	DetectedAt        time.Time `json:"detected_at"`
	MetricName        string    `json:"metric_name"`
	CurrentValue      float64   `json:"current_value"`
	ThresholdValue    float64   `json:"threshold_value"`
	Unit              string    `json:"unit"`
	AffectedUnits     []string  `json:"affected_units,omitempty"`
	RelatedPatientIDs []string  `json:"related_patient_ids,omitempty"`
	Description       string    `json:"description,omitempty"`
}
