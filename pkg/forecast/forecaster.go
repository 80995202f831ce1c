package forecast

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acctcare/careops/pkg/log"
	"github.com/acctcare/careops/pkg/models"
)

// Target identifies an operational metric to forecast.
type Target string

const (
	TargetICUOccupancy  Target = "icu_occupancy"
	TargetERArrivals    Target = "er_arrivals"
	TargetWardOccupancy Target = "ward_occupancy"
)

// Targets lists all forecastable metrics in a stable order.
func Targets() []Target {
	return []Target{TargetICUOccupancy, TargetERArrivals, TargetWardOccupancy}
}

// Thresholds holds the warning and critical capacity limits for a target.
type Thresholds struct {
	Critical float64
	Warning  float64
	Unit     string
}

var thresholds = map[Target]Thresholds{
	TargetICUOccupancy:  {Critical: 90, Warning: 80, Unit: "%"},
	TargetERArrivals:    {Critical: 25, Warning: 18, Unit: "patients/hr"},
	TargetWardOccupancy: {Critical: 95, Warning: 85, Unit: "%"},
}

// ThresholdsFor returns the configured thresholds for a target.
func ThresholdsFor(target Target) (Thresholds, bool) {
	t, ok := thresholds[target]
	return t, ok
}

func (t Target) isOccupancy() bool {
	return t == TargetICUOccupancy || t == TargetWardOccupancy
}

type sample struct {
	ts    time.Time
	value float64
}

type arModel struct {
	coefficients []float64
	mean         float64
	std          float64
	lastValues   []float64
}

type seasonality struct {
	daily  [24]float64
	weekly [7]float64
}

// Forecaster produces capacity forecasts using an autoregressive model
// with daily and weekly seasonality decomposed from historical samples.
type Forecaster struct {
	seed   int64
	logger *slog.Logger

	mu      sync.Mutex
	history map[Target][]sample
}

// NewForecaster creates a forecaster. Historical series are synthesized
// lazily per target from seed.
func NewForecaster(seed int64) *Forecaster {
	return &Forecaster{
		seed:    seed,
		logger:  log.WithModule("forecast"),
		history: make(map[Target][]sample),
	}
}

const (
	historyDays   = 30
	arOrder       = 2
	includeRecent = 6
)

func (f *Forecaster) historical(target Target) []sample {
	if h, ok := f.history[target]; ok {
		return h
	}
	h := synthesizeHistory(target, f.seed, historyDays)
	f.history[target] = h
	return h
}

// synthesizeHistory builds an hourly series with circadian and weekly
// structure matching observed hospital load patterns.
func synthesizeHistory(target Target, seed int64, days int) []sample {
	rng := rand.New(rand.NewSource(seed + int64(hashTarget(target))))
	now := time.Now().UTC().Truncate(time.Hour)
	n := days * 24
	out := make([]sample, 0, n)
	for i := n - 1; i >= 0; i-- {
		ts := now.Add(-time.Duration(i) * time.Hour)
		hour := float64(ts.Hour())
		weekday := ts.Weekday()

		var value float64
		switch target {
		case TargetICUOccupancy:
			value = 75 +
				5*math.Sin(2*math.Pi*(hour-6)/24) +
				3*math.Sin(2*math.Pi*(float64(weekday)-2)/7) +
				rng.NormFloat64()*3
		case TargetERArrivals:
			value = 10 + 6*math.Sin(2*math.Pi*(hour-10)/24) + rng.NormFloat64()*2
			if weekday == time.Saturday || weekday == time.Sunday {
				value += 4
			}
		default:
			value = 70 + 3*math.Sin(2*math.Pi*(hour-8)/24) + rng.NormFloat64()*2
		}

		upper := 50.0
		if target.isOccupancy() {
			upper = 100
		}
		out = append(out, sample{ts: ts, value: clamp(value, 0, upper)})
	}
	return out
}

func fitAR(history []sample) arModel {
	values := make([]float64, len(history))
	for i, s := range history {
		values[i] = s.value
	}

	coefs := make([]float64, 0, arOrder)
	for lag := 1; lag <= arOrder && lag < len(values); lag++ {
		c := lagCorrelation(values, lag)
		if math.IsNaN(c) {
			c = 0.5
		}
		coefs = append(coefs, c)
	}

	mean, std := meanStd(values)
	last := make([]float64, arOrder)
	copy(last, values[len(values)-arOrder:])

	return arModel{coefficients: coefs, mean: mean, std: std, lastValues: last}
}

func decompose(history []sample) seasonality {
	values := make([]float64, len(history))
	for i, s := range history {
		values[i] = s.value
	}
	mean, _ := meanStd(values)

	var s seasonality
	var dailySum [24]float64
	var dailyCount [24]int
	var weeklySum [7]float64
	var weeklyCount [7]int
	for _, smp := range history {
		h := smp.ts.Hour()
		d := int(smp.ts.Weekday())
		dailySum[h] += smp.value
		dailyCount[h]++
		weeklySum[d] += smp.value
		weeklyCount[d]++
	}
	for h := 0; h < 24; h++ {
		if dailyCount[h] > 0 {
			s.daily[h] = dailySum[h]/float64(dailyCount[h]) - mean
		}
	}
	for d := 0; d < 7; d++ {
		if weeklyCount[d] > 0 {
			s.weekly[d] = weeklySum[d]/float64(weeklyCount[d]) - mean
		}
	}
	return s
}

// Forecast predicts the next horizonHours for a target, prefixed with the
// most recent actual samples.
func (f *Forecaster) Forecast(target Target, horizonHours int) models.CapacityForecast {
	f.mu.Lock()
	defer f.mu.Unlock()

	if horizonHours <= 0 {
		horizonHours = 24
	}
	history := f.historical(target)
	model := fitAR(history)
	season := decompose(history)

	cfg := thresholds[target]
	points := make([]models.ForecastPoint, 0, includeRecent+horizonHours)

	for _, s := range history[len(history)-includeRecent:] {
		actual := round1(s.value)
		points = append(points, models.ForecastPoint{
			Timestamp:      s.ts,
			PredictedValue: round1(s.value),
			LowerBound:     round1(s.value - 2),
			UpperBound:     round1(s.value + 2),
			ActualValue:    &actual,
		})
	}

	now := time.Now().UTC()
	last := append([]float64(nil), model.lastValues...)
	for i := 0; i < horizonHours; i++ {
		future := now.Add(time.Duration(i) * time.Hour)

		pred := model.mean
		for j, coef := range model.coefficients {
			if j < len(last) {
				pred += coef * (last[len(last)-1-j] - model.mean)
			}
		}
		pred += season.daily[future.Hour()]
		pred += season.weekly[int(future.Weekday())]

		if target.isOccupancy() {
			pred = clamp(pred, 0, 100)
		} else {
			pred = math.Max(0, pred)
		}

		ciWidth := model.std * (1 + 0.05*float64(i))
		points = append(points, models.ForecastPoint{
			Timestamp:      future,
			PredictedValue: round1(pred),
			LowerBound:     round1(math.Max(0, pred-ciWidth)),
			UpperBound:     round1(math.Min(100, pred+ciWidth)),
		})

		last = append(last[1:], pred)
	}

	f.logger.Debug("forecast generated", "target", string(target), "horizon_hours", horizonHours)

	return models.CapacityForecast{
		MetricName:           string(target),
		Unit:                 cfg.Unit,
		ForecastHorizonHours: horizonHours,
		DataPoints:           points,
	}
}

// AllForecasts returns forecasts for every target.
func (f *Forecaster) AllForecasts(horizonHours int) map[Target]models.CapacityForecast {
	out := make(map[Target]models.CapacityForecast, len(Targets()))
	for _, target := range Targets() {
		out[target] = f.Forecast(target, horizonHours)
	}
	return out
}

// CheckThresholds scans a forecast for breaches and returns at most one
// risk event per severity, keeping the earliest occurrence.
func CheckThresholds(forecast models.CapacityForecast) []models.RiskEvent {
	target := Target(forecast.MetricName)
	cfg, ok := thresholds[target]
	if !ok {
		return nil
	}

	var events []models.RiskEvent
	seen := map[models.Severity]bool{}
	for _, point := range forecast.DataPoints {
		value := point.PredictedValue
		if point.ActualValue != nil {
			value = *point.ActualValue
		}

		var severity models.Severity
		var eventType string
		var threshold float64
		switch {
		case value >= cfg.Critical:
			severity = models.SeverityCritical
			eventType = string(target) + "_critical"
			threshold = cfg.Critical
		case value >= cfg.Warning:
			severity = models.SeverityHigh
			eventType = string(target) + "_warning"
			threshold = cfg.Warning
		default:
			continue
		}
		if seen[severity] {
			continue
		}
		seen[severity] = true

		events = append(events, models.RiskEvent{
			EventID:        uuid.New().String(),
			EventType:      eventType,
			Severity:       severity,
			DetectedAt:     point.Timestamp,
			MetricName:     string(target),
			CurrentValue:   value,
			ThresholdValue: threshold,
			Unit:           cfg.Unit,
			AffectedUnits:  affectedUnits(target),
			Description:    describeBreach(target, value, threshold, cfg.Unit),
		})
	}
	return events
}

// MetricStatus is the current standing of one metric against its thresholds.
type MetricStatus struct {
	Current           float64 `json:"current"`
	Status            string  `json:"status"`
	ThresholdWarning  float64 `json:"threshold_warning"`
	ThresholdCritical float64 `json:"threshold_critical"`
	Unit              string  `json:"unit"`
}

// CapacitySummary is a point-in-time view across all metrics.
type CapacitySummary struct {
	Timestamp time.Time               `json:"timestamp"`
	Metrics   map[string]MetricStatus `json:"metrics"`
	Alerts    []models.RiskEvent      `json:"alerts"`
}

// CapacitySummary reports current status and near-term alerts per metric.
func (f *Forecaster) CapacitySummary() CapacitySummary {
	summary := CapacitySummary{
		Timestamp: time.Now().UTC(),
		Metrics:   make(map[string]MetricStatus),
	}

	for _, target := range Targets() {
		fc := f.Forecast(target, 6)
		if len(fc.DataPoints) == 0 {
			continue
		}
		cfg := thresholds[target]
		current := fc.DataPoints[0]
		value := current.PredictedValue
		if current.ActualValue != nil {
			value = *current.ActualValue
		}

		status := "normal"
		switch {
		case value >= cfg.Critical:
			status = "critical"
		case value >= cfg.Warning:
			status = "warning"
		}

		summary.Metrics[string(target)] = MetricStatus{
			Current:           value,
			Status:            status,
			ThresholdWarning:  cfg.Warning,
			ThresholdCritical: cfg.Critical,
			Unit:              cfg.Unit,
		}

		if alerts := CheckThresholds(fc); len(alerts) > 0 {
			summary.Alerts = append(summary.Alerts, alerts[0])
		}
	}
	return summary
}

func affectedUnits(target Target) []string {
	switch target {
	case TargetICUOccupancy:
		return []string{"Medical ICU", "Surgical ICU", "Cardiac ICU"}
	case TargetERArrivals:
		return []string{"Emergency Department", "Trauma Bay"}
	default:
		return []string{"Ward-East", "Ward-West", "Ward-North"}
	}
}

func describeBreach(target Target, value, threshold float64, unit string) string {
	return fmt.Sprintf("%s projected at %.1f%s, above the %.1f%s limit",
		target, value, unit, threshold, unit)
}

func lagCorrelation(values []float64, lag int) float64 {
	a := values[lag:]
	b := values[:len(values)-lag]
	meanA, stdA := meanStd(a)
	meanB, stdB := meanStd(b)
	if stdA == 0 || stdB == 0 {
		return 0
	}
	var cov float64
	for i := range a {
		cov += (a[i] - meanA) * (b[i] - meanB)
	}
	cov /= float64(len(a))
	return cov / (stdA * stdB)
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func hashTarget(t Target) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(t); i++ {
		h ^= uint32(t[i])
		h *= 16777619
	}
	return h
}
