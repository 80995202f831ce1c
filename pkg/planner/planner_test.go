package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acctcare/careops/pkg/models"
)

type stubGenerator struct {
	response string
	err      error
}

func (s *stubGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	return s.response, s.err
}

func (s *stubGenerator) Model() string {
	return "stub"
}

func icuEvent() *models.RiskEvent {
	return &models.RiskEvent{
		EventID:        "evt-icu",
		EventType:      "capacity_breach",
		Severity:       models.SeverityCritical,
		MetricName:     "icu_occupancy",
		CurrentValue:   92.5,
		ThresholdValue: 90,
		Unit:           "%",
	}
}

func TestGeneratePlan_FromModelResponse(t *testing.T) {
	generator := &stubGenerator{response: `Here is the plan:
{
  "action_type": "escalate",
  "title": "Escalate ICU surge",
  "description": "Activate surge protocol",
  "urgency": "critical",
  "steps": ["Notify ICU attending", "Open overflow beds"],
  "affected_patients": ["PT-1001"],
  "rationale": "Occupancy exceeds surge threshold"
}
Let me know if you need more.`}

	agent, err := NewAgent(generator)
	require.NoError(t, err)

	sources := []models.CitedSource{{SourceID: "icu-surge", SourceTitle: "ICU Surge Protocol", RelevanceScore: 0.91}}
	card, err := agent.GeneratePlan(context.Background(), icuEvent(), "surge protocol text", sources)

	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, models.ActionEscalate, card.ActionType)
	assert.Equal(t, "Escalate ICU surge", card.Title)
	assert.Equal(t, models.UrgencyCritical, card.Urgency)
	assert.Equal(t, []string{"Notify ICU attending", "Open overflow beds"}, card.Steps)
	assert.Equal(t, []string{"PT-1001"}, card.TargetPatients)
	assert.Equal(t, sources, card.CitedSources)
	assert.Regexp(t, `^AC-[0-9a-f]{8}$`, card.CardID)
	assert.False(t, card.GeneratedAt.IsZero())
}

func TestGeneratePlan_FallbackOnModelError(t *testing.T) {
	agent, err := NewAgent(&stubGenerator{err: errors.New("connection refused")})
	require.NoError(t, err)

	card, err := agent.GeneratePlan(context.Background(), icuEvent(), "ICU capacity context", nil)

	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, models.ActionTransfer, card.ActionType)
	assert.Equal(t, "ICU Capacity Management", card.Title)
	assert.Equal(t, models.UrgencyHigh, card.Urgency)
	assert.Len(t, card.Steps, 3)
}

func TestGeneratePlan_GenericFallback(t *testing.T) {
	agent, err := NewAgent(&stubGenerator{err: errors.New("timeout")})
	require.NoError(t, err)

	event := &models.RiskEvent{
		EventID:      "evt-er",
		EventType:    "capacity_breach",
		Severity:     models.SeverityMedium,
		MetricName:   "er_arrivals",
		CurrentValue: 19,
		Unit:         " patients/hr",
	}

	card, err := agent.GeneratePlan(context.Background(), event, "emergency department context", nil)

	require.NoError(t, err)
	assert.Equal(t, models.ActionAlert, card.ActionType)
	assert.Equal(t, "Risk Alert", card.Title)
	assert.Equal(t, models.UrgencyMedium, card.Urgency)
	assert.Equal(t, []string{
		"Review the current situation",
		"Consult relevant protocols",
	}, card.Steps)
}

func TestGeneratePlan_FallbackOnInvalidSchema(t *testing.T) {
	// Missing the required rationale field.
	agent, err := NewAgent(&stubGenerator{response: `{
		"action_type": "alert",
		"title": "Incomplete",
		"description": "Missing fields",
		"urgency": "low",
		"steps": []
	}`})
	require.NoError(t, err)

	card, err := agent.GeneratePlan(context.Background(), icuEvent(), "icu context", nil)

	require.NoError(t, err)
	assert.Equal(t, "ICU Capacity Management", card.Title)
}

func TestGeneratePlan_FallbackOnInvalidUrgency(t *testing.T) {
	agent, err := NewAgent(&stubGenerator{response: `{
		"action_type": "alert",
		"title": "Bad urgency",
		"description": "Urgency outside the enum",
		"urgency": "immediately",
		"steps": ["step"],
		"rationale": "because"
	}`})
	require.NoError(t, err)

	card, err := agent.GeneratePlan(context.Background(), icuEvent(), "icu context", nil)

	require.NoError(t, err)
	assert.Equal(t, "ICU Capacity Management", card.Title)
}

func TestGeneratePlan_FallbackOnProseResponse(t *testing.T) {
	agent, err := NewAgent(&stubGenerator{response: "I cannot produce a plan right now."})
	require.NoError(t, err)

	card, err := agent.GeneratePlan(context.Background(), icuEvent(), "icu context", nil)

	require.NoError(t, err)
	assert.Equal(t, "ICU Capacity Management", card.Title)
}

func TestGeneratePlan_NilEvent(t *testing.T) {
	agent, err := NewAgent(&stubGenerator{err: errors.New("down")})
	require.NoError(t, err)

	card, err := agent.GeneratePlan(context.Background(), nil, "", nil)

	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, "Risk Alert", card.Title)
}

func TestExtractJSON(t *testing.T) {
	raw, err := extractJSON(`prefix {"a": {"b": 1}} suffix`)
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 1}}`, raw)

	_, err = extractJSON("no json here")
	assert.Error(t, err)

	_, err = extractJSON("} backwards {")
	assert.Error(t, err)
}

func TestFlattenSteps(t *testing.T) {
	steps := flattenSteps([]any{
		"plain string",
		map[string]any{"description": "from description"},
		map[string]any{"step": "from step"},
		map[string]any{"text": "from text"},
		42,
	})

	assert.Equal(t, []string{
		"plain string",
		"from description",
		"from step",
		"from text",
		"42",
	}, steps)
}

func TestFlattenSteps_NilAndScalar(t *testing.T) {
	assert.Equal(t, []string{"Review situation", "Take appropriate action"}, flattenSteps(nil))
	assert.Equal(t, []string{"just one"}, flattenSteps("just one"))
}

func TestBuildCard_Defaults(t *testing.T) {
	card := buildCard(map[string]any{}, nil)

	assert.Equal(t, models.ActionAlert, card.ActionType)
	assert.Equal(t, "Risk Response Action", card.Title)
	assert.Equal(t, models.UrgencyMedium, card.Urgency)
	assert.Equal(t, "Based on risk assessment", card.Rationale)
	assert.NotEmpty(t, card.Steps)
}
