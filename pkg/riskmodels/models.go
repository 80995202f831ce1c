package riskmodels

import (
	"math"
	"sort"
	"time"

	"github.com/acctcare/careops/pkg/features"
	"github.com/acctcare/careops/pkg/models"
)

// Factor is one feature's contribution to a score.
type Factor struct {
	Feature   string  `json:"feature"`
	Value     float64 `json:"value"`
	Impact    float64 `json:"impact"`
	Direction string  `json:"direction"`
}

// Assessment bundles all risk scores for a patient with the contributing
// factors behind each.
type Assessment struct {
	Scores  models.RiskScores   `json:"scores"`
	Factors map[string][]Factor `json:"factors"`
}

var dischargeWeights = map[string]float64{
	"age":                 -0.02,
	"is_icu":              -0.4,
	"diagnosis_count":     -0.1,
	"has_sepsis":          -0.3,
	"los_days":            0.1,
	"has_heart_condition": -0.15,
}

var readmissionWeights = map[string]float64{
	"age":                 0.015,
	"diagnosis_count":     0.12,
	"has_heart_condition": 0.25,
	"has_renal":           0.2,
	"los_days":            -0.05,
	"is_icu":              0.15,
}

var escalationWeights = map[string]float64{
	"age":             0.01,
	"is_icu":          0.3,
	"has_sepsis":      0.4,
	"has_respiratory": 0.25,
	"diagnosis_count": 0.08,
}

// Scorer produces clinical risk predictions from feature vectors.
// Weights approximate models trained on historical admissions.
type Scorer struct {
	store *features.Store
}

func NewScorer(store *features.Store) *Scorer {
	return &Scorer{store: store}
}

// Assess computes all scores for a patient.
func (s *Scorer) Assess(patient models.Patient) Assessment {
	fv := s.store.Features(patient)

	discharge := DischargeReadiness(fv)
	readmission := ReadmissionRisk(fv)
	escalation := EscalationRisk(fv)
	los := ExpectedLOS(fv)

	return Assessment{
		Scores: models.RiskScores{
			PatientID:          patient.PatientID,
			DischargeReadiness: round1(discharge),
			ReadmissionRisk30d: round1(readmission),
			EscalationRisk24h:  round1(escalation),
			ExpectedLOSDays:    round1(los),
			RiskLevel:          OverallRiskLevel(discharge, readmission, escalation),
			CalculatedAt:       time.Now().UTC(),
		},
		Factors: map[string][]Factor{
			"discharge":   topFactors(fv, dischargeWeights),
			"readmission": topFactors(fv, readmissionWeights),
			"escalation":  topFactors(fv, escalationWeights),
		},
	}
}

// DischargeReadiness estimates the probability of safe discharge, 0-100.
func DischargeReadiness(fv features.FeatureVector) float64 {
	score := weightedScore(fv, dischargeWeights, 60)
	if fv["los_days"] >= 3 {
		score += 15
	}
	if fv["is_icu"] > 0 {
		score -= 20
	}
	return clampScore(score)
}

// ReadmissionRisk estimates 30-day readmission probability, 0-100.
func ReadmissionRisk(fv features.FeatureVector) float64 {
	score := weightedScore(fv, readmissionWeights, 25)
	switch age := fv["age"]; {
	case age > 70:
		score += 15
	case age > 60:
		score += 8
	}
	switch diag := fv["diagnosis_count"]; {
	case diag > 5:
		score += 20
	case diag > 3:
		score += 10
	}
	return clampScore(score)
}

// EscalationRisk estimates the chance of a critical event within 24h, 0-100.
func EscalationRisk(fv features.FeatureVector) float64 {
	score := weightedScore(fv, escalationWeights, 15)
	if fv["has_sepsis"] > 0 {
		score += 30
	}
	if fv["is_icu"] > 0 {
		score += 25
	}
	if fv["has_respiratory"] > 0 {
		score += 15
	}
	return clampScore(score)
}

// ExpectedLOS predicts length of stay in days, clamped to 1-30.
func ExpectedLOS(fv features.FeatureVector) float64 {
	los := 3.0
	los += (fv["age"] - 50) * 0.05
	los += fv["is_icu"] * 4
	los += fv["diagnosis_count"] * 0.5
	los += fv["has_sepsis"] * 3
	return math.Min(30, math.Max(1, los))
}

// OverallRiskLevel maps scores to a severity bucket.
func OverallRiskLevel(discharge, readmission, escalation float64) models.Severity {
	switch {
	case escalation >= 70 || readmission >= 70:
		return models.SeverityCritical
	case escalation >= 50 || readmission >= 50 || discharge <= 30:
		return models.SeverityHigh
	case escalation >= 30 || readmission >= 40:
		return models.SeverityMedium
	}
	return models.SeverityLow
}

func weightedScore(fv features.FeatureVector, weights map[string]float64, base float64) float64 {
	score := base
	for feature, weight := range weights {
		if value, ok := fv[feature]; ok {
			score += value * weight * 10
		}
	}
	return clampScore(score)
}

func topFactors(fv features.FeatureVector, weights map[string]float64) []Factor {
	out := make([]Factor, 0, len(weights))
	for feature, weight := range weights {
		value, ok := fv[feature]
		if !ok || value == 0 {
			continue
		}
		direction := "decreases"
		if value*weight > 0 {
			direction = "increases"
		}
		out = append(out, Factor{
			Feature:   feature,
			Value:     value,
			Impact:    math.Round(math.Abs(value*weight)*100) / 100,
			Direction: direction,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Impact != out[j].Impact {
			return out[i].Impact > out[j].Impact
		}
		return out[i].Feature < out[j].Feature
	})
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

func clampScore(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
