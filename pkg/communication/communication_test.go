package communication

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acctcare/careops/pkg/models"
	"github.com/acctcare/careops/pkg/notifier"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
	lastSystem string
}

func (s *stubGenerator) Generate(_ context.Context, prompt, system string) (string, error) {
	s.lastPrompt = prompt
	s.lastSystem = system
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub"
}

func testCard() *models.ActionCard {
	return &models.ActionCard{
		CardID:      "AC-deadbeef",
		ActionType:  models.ActionTransfer,
		Title:       "ICU Capacity Management",
		Summary:     "Review step-down eligible patients",
		Description: "Review step-down eligible patients",
		Urgency:     models.UrgencyHigh,
		Rationale:   "Projected occupancy above surge threshold",
		Steps:       []string{"Review stable patients", "Prepare step-down beds"},
	}
}

func TestDraftMessage_UsesLLM(t *testing.T) {
	generator := &stubGenerator{response: "SITUATION: ICU occupancy trending high."}
	service := NewService(generator, notifier.NewRoleFormatter())

	message, err := service.DraftMessage(context.Background(), testCard(), models.RolePhysician, nil)

	require.NoError(t, err)
	assert.Equal(t, "SITUATION: ICU occupancy trending high.", message)
	assert.Contains(t, generator.lastPrompt, "Physician")
	assert.Contains(t, generator.lastPrompt, "ICU Capacity Management")
}

func TestDraftMessage_FallbackOnLLMError(t *testing.T) {
	service := NewService(&stubGenerator{err: errors.New("connection refused")}, notifier.NewRoleFormatter())

	message, err := service.DraftMessage(context.Background(), testCard(), models.RoleNurse, nil)

	require.NoError(t, err)
	assert.Contains(t, message, "ACTION REQUIRED: ICU Capacity Management")
	assert.Contains(t, message, "  [ ] Review stable patients")
}

func TestDraftMessage_PatientRedacted(t *testing.T) {
	generator := &stubGenerator{response: "Dear Patient, Dr. Jane Doe will visit you shortly. Your care continues."}
	service := NewService(generator, notifier.NewRoleFormatter())

	message, err := service.DraftMessage(context.Background(), testCard(), models.RolePatient, &models.RiskEvent{
		EventType: "capacity_breach",
		Severity:  models.SeverityHigh,
	})

	require.NoError(t, err)
	assert.NotContains(t, message, "Jane Doe")
	assert.Contains(t, message, "[REDACTED_NAME]")
	assert.Contains(t, generator.lastSystem, "empathetic")
}

func TestDraftMessage_UnsupportedRole(t *testing.T) {
	service := NewService(&stubGenerator{}, notifier.NewRoleFormatter())

	_, err := service.DraftMessage(context.Background(), testCard(), models.Role("visitor"), nil)

	assert.ErrorIs(t, err, notifier.ErrUnsupportedRole)
}

func TestDraftMessage_NilCard(t *testing.T) {
	service := NewService(&stubGenerator{}, notifier.NewRoleFormatter())

	_, err := service.DraftMessage(context.Background(), nil, models.RoleNurse, nil)

	assert.Error(t, err)
}

func TestShiftReport(t *testing.T) {
	generator := &stubGenerator{response: "# Shift Handoff Report\n**Status**: Yellow"}
	service := NewService(generator, notifier.NewRoleFormatter())

	report, err := service.ShiftReport(context.Background(), []map[string]any{
		{"event_type": "capacity_breach", "severity": "high"},
	}, 8)

	require.NoError(t, err)
	assert.Contains(t, report, "Shift Handoff Report")
	assert.Contains(t, generator.lastPrompt, "Last 8 hours")
	assert.Contains(t, generator.lastPrompt, "capacity_breach")
}

func TestShiftReport_Fallback(t *testing.T) {
	service := NewService(&stubGenerator{err: errors.New("timeout")}, notifier.NewRoleFormatter())

	report, err := service.ShiftReport(context.Background(), []map[string]any{
		{"event_type": "capacity_breach", "severity": "high"},
		{"event_type": "patient_escalation_risk", "severity": "critical"},
	}, 0)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(report, "Shift Handoff Report (last 12 hours)"))
	assert.Contains(t, report, "- capacity_breach (high)")
	assert.Contains(t, report, "- patient_escalation_risk (critical)")
}

func TestShiftReport_FallbackNoEvents(t *testing.T) {
	service := NewService(&stubGenerator{err: errors.New("timeout")}, notifier.NewRoleFormatter())

	report, err := service.ShiftReport(context.Background(), nil, 12)

	require.NoError(t, err)
	assert.Contains(t, report, "No events recorded.")
}

func TestSimulateScenario(t *testing.T) {
	generator := &stubGenerator{response: `Here is my analysis:
{
  "predicted_impact": "ER census rises 40% within 2 hours",
  "risk_level_change": "high",
  "recommended_preparations": ["Open overflow beds", "Call in surge staff"]
}`}
	service := NewService(generator, notifier.NewRoleFormatter())

	result, err := service.SimulateScenario(context.Background(), "Multi-vehicle accident with 15 casualties")

	require.NoError(t, err)
	assert.Equal(t, "ER census rises 40% within 2 hours", result.PredictedImpact)
	assert.Equal(t, "high", result.RiskLevelChange)
	assert.Len(t, result.RecommendedPreparations, 2)
}

func TestSimulateScenario_LLMError(t *testing.T) {
	service := NewService(&stubGenerator{err: errors.New("down")}, notifier.NewRoleFormatter())

	_, err := service.SimulateScenario(context.Background(), "mass casualty event")

	assert.Error(t, err)
}

func TestSimulateScenario_ProseResponse(t *testing.T) {
	service := NewService(&stubGenerator{response: "I cannot simulate that."}, notifier.NewRoleFormatter())

	_, err := service.SimulateScenario(context.Background(), "flood warning")

	assert.Error(t, err)
}
