package riskmodels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acctcare/careops/pkg/features"
	"github.com/acctcare/careops/pkg/models"
)

func highRiskVector() features.FeatureVector {
	return features.FeatureVector{
		"age":                 78,
		"diagnosis_count":     6,
		"has_heart_condition": 1,
		"has_sepsis":          1,
		"has_renal":           1,
		"has_respiratory":     0,
		"is_icu":              1,
		"los_days":            5,
	}
}

func lowRiskVector() features.FeatureVector {
	return features.FeatureVector{
		"age":             35,
		"diagnosis_count": 1,
		"is_icu":          0,
		"los_days":        2,
	}
}

func TestDischargeReadiness(t *testing.T) {
	high := DischargeReadiness(highRiskVector())
	low := DischargeReadiness(lowRiskVector())

	// A septic ICU patient is far less discharge-ready than a young ward
	// patient with one diagnosis.
	assert.Less(t, high, low)
	assert.GreaterOrEqual(t, high, 0.0)
	assert.LessOrEqual(t, low, 100.0)
}

func TestDischargeReadiness_LongStayBonus(t *testing.T) {
	shortStay := features.FeatureVector{"age": 50, "los_days": 1}
	longStay := features.FeatureVector{"age": 50, "los_days": 4}

	// Longer stays trend toward discharge-ready, weights aside the +15
	// adjustment dominates.
	assert.Greater(t, DischargeReadiness(longStay), DischargeReadiness(shortStay))
}

func TestReadmissionRisk_AgeAndDiagnosisAdjustments(t *testing.T) {
	base := features.FeatureVector{"age": 50, "diagnosis_count": 1}
	elderly := features.FeatureVector{"age": 75, "diagnosis_count": 1}
	comorbid := features.FeatureVector{"age": 50, "diagnosis_count": 6}

	assert.Greater(t, ReadmissionRisk(elderly), ReadmissionRisk(base))
	assert.Greater(t, ReadmissionRisk(comorbid), ReadmissionRisk(base))
}

func TestEscalationRisk_SepsisDominates(t *testing.T) {
	septic := EscalationRisk(highRiskVector())
	stable := EscalationRisk(lowRiskVector())

	assert.GreaterOrEqual(t, septic, 70.0)
	assert.Less(t, stable, 30.0)
}

func TestEscalationRisk_Clamped(t *testing.T) {
	extreme := features.FeatureVector{
		"age":             100,
		"is_icu":          1,
		"has_sepsis":      1,
		"has_respiratory": 1,
		"diagnosis_count": 12,
	}

	assert.LessOrEqual(t, EscalationRisk(extreme), 100.0)
}

func TestExpectedLOS(t *testing.T) {
	// 3 + (78-50)*0.05 + 4 + 6*0.5 + 3 = 14.4
	assert.InDelta(t, 14.4, ExpectedLOS(highRiskVector()), 0.01)

	// 3 + (35-50)*0.05 + 0 + 0.5 + 0 = 2.75
	assert.InDelta(t, 2.75, ExpectedLOS(lowRiskVector()), 0.01)
}

func TestExpectedLOS_Clamped(t *testing.T) {
	short := features.FeatureVector{"age": 0, "diagnosis_count": 0}
	long := features.FeatureVector{"age": 100, "is_icu": 1, "diagnosis_count": 40, "has_sepsis": 1}

	assert.Equal(t, 1.0, ExpectedLOS(short))
	assert.Equal(t, 30.0, ExpectedLOS(long))
}

func TestOverallRiskLevel(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, OverallRiskLevel(50, 20, 75))
	assert.Equal(t, models.SeverityCritical, OverallRiskLevel(50, 72, 10))
	assert.Equal(t, models.SeverityHigh, OverallRiskLevel(50, 20, 55))
	assert.Equal(t, models.SeverityHigh, OverallRiskLevel(25, 20, 10))
	assert.Equal(t, models.SeverityMedium, OverallRiskLevel(60, 45, 10))
	assert.Equal(t, models.SeverityMedium, OverallRiskLevel(60, 20, 35))
	assert.Equal(t, models.SeverityLow, OverallRiskLevel(60, 20, 10))
}

func TestAssess(t *testing.T) {
	scorer := NewScorer(features.NewStore(time.Minute))

	patient := models.Patient{
		PatientID:      "PT-1001",
		Age:            78,
		Gender:         "M",
		Unit:           "ICU",
		AdmissionDate:  time.Now().Add(-5 * 24 * time.Hour),
		DiagnosisCodes: []string{"A41.9", "I50.9", "N17.0", "J44.1", "I48.0", "K92.2"},
	}

	assessment := scorer.Assess(patient)

	require.Equal(t, "PT-1001", assessment.Scores.PatientID)
	assert.Equal(t, models.SeverityCritical, assessment.Scores.RiskLevel)
	assert.False(t, assessment.Scores.CalculatedAt.IsZero())

	// Every score category reports at most three contributing factors.
	for category, factors := range assessment.Factors {
		assert.LessOrEqual(t, len(factors), 3, category)
		for _, factor := range factors {
			assert.NotEmpty(t, factor.Feature)
			assert.Contains(t, []string{"increases", "decreases"}, factor.Direction)
		}
	}
}

func TestAssess_Deterministic(t *testing.T) {
	scorer := NewScorer(features.NewStore(time.Minute))

	patient := models.Patient{
		PatientID:      "PT-2001",
		Age:            60,
		Unit:           "Medicine Ward",
		AdmissionDate:  time.Now().Add(-48 * time.Hour),
		DiagnosisCodes: []string{"J18.9", "N18.3"},
	}

	first := scorer.Assess(patient)
	second := scorer.Assess(patient)

	assert.Equal(t, first.Scores.DischargeReadiness, second.Scores.DischargeReadiness)
	assert.Equal(t, first.Scores.ReadmissionRisk30d, second.Scores.ReadmissionRisk30d)
	assert.Equal(t, first.Scores.EscalationRisk24h, second.Scores.EscalationRisk24h)
	assert.Equal(t, first.Factors, second.Factors)
}
