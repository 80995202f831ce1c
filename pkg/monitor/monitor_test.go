package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acctcare/careops/pkg/features"
	"github.com/acctcare/careops/pkg/forecast"
	"github.com/acctcare/careops/pkg/replay"
	"github.com/acctcare/careops/pkg/riskmodels"
)

func newTestAgent() *Agent {
	return NewAgent(
		forecast.NewForecaster(42),
		replay.NewEngine(42, 20),
		riskmodels.NewScorer(features.NewStore(time.Minute)),
	)
}

func TestDetectEvents(t *testing.T) {
	agent := newTestAgent()

	events, err := agent.DetectEvents(context.Background())
	require.NoError(t, err)

	// A 20-patient census with ICU admissions always produces at least one
	// patient-level event.
	require.NotEmpty(t, events)

	// Ordered most severe first.
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i-1].Severity.Rank(), events[i].Severity.Rank())
	}

	for _, event := range events {
		assert.NotEmpty(t, event.EventID)
		assert.NotEmpty(t, event.EventType)
		assert.NotEmpty(t, event.MetricName)
		assert.False(t, event.DetectedAt.IsZero())
	}
}

func TestDetectEvents_PatientScan(t *testing.T) {
	agent := newTestAgent()

	events, err := agent.DetectEvents(context.Background())
	require.NoError(t, err)

	var sawEscalation bool
	for _, event := range events {
		if event.EventType == "patient_escalation_risk" {
			sawEscalation = true
			assert.GreaterOrEqual(t, event.CurrentValue, EscalationThreshold)
			assert.Equal(t, EscalationThreshold, event.ThresholdValue)
			require.Len(t, event.RelatedPatientIDs, 1)
			require.Len(t, event.AffectedUnits, 1)
		}
		if event.EventType == "high_readmission_risk" {
			assert.GreaterOrEqual(t, event.CurrentValue, ReadmissionThreshold)
		}
	}

	// Every ICU patient scores above the escalation threshold.
	assert.True(t, sawEscalation)
}

func TestDetectEvents_CancelledContext(t *testing.T) {
	agent := newTestAgent()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agent.DetectEvents(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMonitoringStatus(t *testing.T) {
	agent := newTestAgent()

	status := agent.MonitoringStatus()

	assert.Equal(t, "monitor", status.Agent)
	assert.Equal(t, "active", status.State)
	assert.Nil(t, status.LastCheck)
	assert.Equal(t, 0, status.EventsTriggered)

	require.Contains(t, status.CapacityThresholds, "icu_occupancy")
	assert.Equal(t, 90.0, status.CapacityThresholds["icu_occupancy"].Critical)
	assert.Equal(t, EscalationThreshold, status.PatientThresholds["escalation"])
	assert.Len(t, status.CurrentMetrics, 3)
}

func TestMonitoringStatus_AfterScan(t *testing.T) {
	agent := newTestAgent()

	events, err := agent.DetectEvents(context.Background())
	require.NoError(t, err)

	status := agent.MonitoringStatus()

	require.NotNil(t, status.LastCheck)
	assert.Equal(t, len(events), status.EventsTriggered)
}
