// Package monitor observes capacity forecasts and patient risk scores and
// emits risk events when thresholds are crossed.
package monitor

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acctcare/careops/pkg/forecast"
	"github.com/acctcare/careops/pkg/log"
	"github.com/acctcare/careops/pkg/models"
	"github.com/acctcare/careops/pkg/replay"
	"github.com/acctcare/careops/pkg/riskmodels"
)

// Patient-level alert thresholds.
const (
	EscalationThreshold  = 30.0
	ReadmissionThreshold = 25.0

	scanPatientLimit = 20
	scanHorizonHours = 6
)

// Status summarizes the monitor's configuration and activity.
type Status struct {
	Agent              string                           `json:"agent"`
	State              string                           `json:"status"`
	LastCheck          *time.Time                       `json:"last_check,omitempty"`
	CapacityThresholds map[string]ThresholdInfo         `json:"capacity_thresholds"`
	PatientThresholds  map[string]float64               `json:"patient_thresholds"`
	CurrentMetrics     map[string]forecast.MetricStatus `json:"current_metrics"`
	EventsTriggered    int                              `json:"events_triggered_total"`
}

// ThresholdInfo exposes a target's configured limits.
type ThresholdInfo struct {
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
}

// Agent scans forecasts and the patient census for risk. It implements the
// orchestrator's risk detector contract.
type Agent struct {
	forecaster *forecast.Forecaster
	census     *replay.Engine
	scorer     *riskmodels.Scorer
	logger     *slog.Logger

	mu        sync.Mutex
	lastCheck *time.Time
	triggered int
}

func NewAgent(forecaster *forecast.Forecaster, census *replay.Engine, scorer *riskmodels.Scorer) *Agent {
	return &Agent{
		forecaster: forecaster,
		census:     census,
		scorer:     scorer,
		logger:     log.WithModule("monitor"),
	}
}

// DetectEvents runs a full scan and returns events ordered most severe
// first. An empty slice means nothing crossed a threshold.
func (a *Agent) DetectEvents(ctx context.Context) ([]models.RiskEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	events := a.checkCapacity()
	events = append(events, a.checkPatients()...)

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Severity.Rank() > events[j].Severity.Rank()
	})

	a.mu.Lock()
	now := time.Now().UTC()
	a.lastCheck = &now
	a.triggered += len(events)
	a.mu.Unlock()

	a.logger.Info("monitoring scan complete", "events", len(events))
	return events, nil
}

func (a *Agent) checkCapacity() []models.RiskEvent {
	var events []models.RiskEvent
	for _, target := range forecast.Targets() {
		fc := a.forecaster.Forecast(target, scanHorizonHours)
		events = append(events, forecast.CheckThresholds(fc)...)
	}
	return events
}

func (a *Agent) checkPatients() []models.RiskEvent {
	var events []models.RiskEvent
	now := time.Now().UTC()

	for _, patient := range a.census.ActivePatients(scanPatientLimit) {
		assessment := a.scorer.Assess(patient)
		scores := assessment.Scores

		if scores.EscalationRisk24h >= EscalationThreshold {
			severity := models.SeverityHigh
			if scores.EscalationRisk24h >= 85 {
				severity = models.SeverityCritical
			}
			events = append(events, models.RiskEvent{
				EventID:           uuid.New().String(),
				EventType:         "patient_escalation_risk",
				Severity:          severity,
				DetectedAt:        now,
				MetricName:        "escalation_risk_24h",
				CurrentValue:      scores.EscalationRisk24h,
				ThresholdValue:    EscalationThreshold,
				Unit:              "%",
				AffectedUnits:     []string{patient.Unit},
				RelatedPatientIDs: []string{patient.PatientID},
			})
		}

		if scores.ReadmissionRisk30d >= ReadmissionThreshold {
			events = append(events, models.RiskEvent{
				EventID:           uuid.New().String(),
				EventType:         "high_readmission_risk",
				Severity:          models.SeverityMedium,
				DetectedAt:        now,
				MetricName:        "readmission_risk_30d",
				CurrentValue:      scores.ReadmissionRisk30d,
				ThresholdValue:    ReadmissionThreshold,
				Unit:              "%",
				AffectedUnits:     []string{patient.Unit},
				RelatedPatientIDs: []string{patient.PatientID},
			})
		}
	}
	return events
}

// MonitoringStatus reports the current configuration and metric standing.
func (a *Agent) MonitoringStatus() Status {
	a.mu.Lock()
	lastCheck := a.lastCheck
	triggered := a.triggered
	a.mu.Unlock()

	capacity := make(map[string]ThresholdInfo)
	for _, target := range forecast.Targets() {
		if t, ok := forecast.ThresholdsFor(target); ok {
			capacity[string(target)] = ThresholdInfo{Warning: t.Warning, Critical: t.Critical}
		}
	}

	return Status{
		Agent:              "monitor",
		State:              "active",
		LastCheck:          lastCheck,
		CapacityThresholds: capacity,
		PatientThresholds: map[string]float64{
			"escalation":  EscalationThreshold,
			"readmission": ReadmissionThreshold,
		},
		CurrentMetrics:  a.forecaster.CapacitySummary().Metrics,
		EventsTriggered: triggered,
	}
}
