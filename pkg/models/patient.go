package models

import "time"

// Vitals is a patient vital-signs snapshot.
type Vitals struct {
	Timestamp       time.Time `json:"timestamp"`
	HeartRate       float64   `json:"heart_rate"`
	BPSystolic      float64   `json:"blood_pressure_systolic"`
	BPDiastolic     float64   `json:"blood_pressure_diastolic"`
	SpO2            float64   `json:"spo2"`
	RespiratoryRate float64   `json:"respiratory_rate"`
	Temperature     float64   `json:"temperature"`
}

// Patient is one member of the replayed census.
type Patient struct {
	PatientID      string    `json:"patient_id"`
	Name           string    `json:"name"`
	Age            int       `json:"age"              validate:"gte=0,lte=150"`
	Gender         string    `json:"gender"`
	Unit           string    `json:"unit"`
	AdmissionDate  time.Time `json:"admission_date"`
	DiagnosisCodes []string  `json:"diagnosis_codes"`
	DiagnosisText  string    `json:"diagnosis_text"`
	CurrentVitals  *Vitals   `json:"current_vitals,omitempty"`
}

// RiskScores holds the model outputs for one patient.
type RiskScores struct {
	PatientID          string    `json:"patient_id"`
	DischargeReadiness float64   `json:"discharge_readiness"`
	ReadmissionRisk30d float64   `json:"readmission_risk_30d"`
	EscalationRisk24h  float64   `json:"escalation_risk_24h"`
	ExpectedLOSDays    float64   `json:"expected_los_days"`
	RiskLevel          Severity  `json:"risk_level"`
	CalculatedAt       time.Time `json:"calculated_at"`
}

// ForecastPoint is a single forecast data point with confidence bounds.
type ForecastPoint struct {
	Timestamp      time.Time `json:"timestamp"`
	PredictedValue float64   `json:"predicted_value"`
	LowerBound     float64   `json:"lower_bound"`
	UpperBound     float64   `json:"upper_bound"`
	ActualValue    *float64  `json:"actual_value,omitempty"`
}

// CapacityForecast is a time-series forecast for one operational metric.
type CapacityForecast struct {
	MetricName           string          `json:"metric_name"`
	Unit                 string          `json:"unit"`
	ForecastHorizonHours int             `json:"forecast_horizon_hours"`
	DataPoints           []ForecastPoint `json:"data_points"`
}
