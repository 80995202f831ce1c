package replay

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/acctcare/careops/pkg/log"
	"github.com/acctcare/careops/pkg/models"
)

// Unit names used by the synthetic census.
const (
	UnitICU = "ICU"
	UnitER  = "ER"
	UnitMed = "Medicine Ward"
)

// diagnosisNames maps ICD-10 prefixes to readable descriptions.
var diagnosisNames = map[string]string{
	"I50": "Heart Failure",
	"A41": "Sepsis",
	"J18": "Pneumonia",
	"I21": "Acute MI",
	"I63": "Stroke",
	"J44": "COPD",
	"K92": "GI Bleed",
	"N17": "Acute Kidney Injury",
	"I48": "Atrial Fibrillation",
}

var diagnosisCodes = sortedKeys(diagnosisNames)

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Engine replays a de-identified patient census. Admissions are generated
// from a fixed seed so that repeated calls within one process see the same
// cohort, with vitals re-sampled against the current wall clock.
type Engine struct {
	seed   int64
	size   int
	logger *slog.Logger

	mu       sync.Mutex
	patients []models.Patient
}

// NewEngine creates a replay engine producing size patients from seed.
func NewEngine(seed int64, size int) *Engine {
	if size <= 0 {
		size = 40
	}
	return &Engine{
		seed:   seed,
		size:   size,
		logger: log.WithModule("replay"),
	}
}

func (e *Engine) ensureLoaded() {
	if e.patients != nil {
		return
	}
	rng := rand.New(rand.NewSource(e.seed))
	now := time.Now().UTC()
	patients := make([]models.Patient, 0, e.size)
	for i := 0; i < e.size; i++ {
		patients = append(patients, e.generatePatient(rng, now, i))
	}
	e.patients = patients
	e.logger.Info("census loaded", "patients", len(patients), "seed", e.seed)
}

func (e *Engine) generatePatient(rng *rand.Rand, now time.Time, idx int) models.Patient {
	age := 35 + rng.Intn(55)
	gender := "F"
	if rng.Intn(2) == 0 {
		gender = "M"
	}

	unit := UnitMed
	switch {
	case idx%4 == 0:
		unit = UnitICU
	case idx%5 == 0:
		unit = UnitER
	}
	isICU := unit == UnitICU

	nCodes := 1 + rng.Intn(4)
	if isICU {
		nCodes++
	}
	codes := make([]string, 0, nCodes)
	texts := make([]string, 0, nCodes)
	seen := map[string]bool{}
	for len(codes) < nCodes {
		code := diagnosisCodes[rng.Intn(len(diagnosisCodes))]
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
		texts = append(texts, diagnosisNames[code])
	}

	losDays := 1 + rng.Intn(9)
	admitted := now.Add(-time.Duration(losDays*24+rng.Intn(12)) * time.Hour)

	p := models.Patient{
		PatientID:      fmt.Sprintf("P-%05d", 10000+idx),
		Name:           fmt.Sprintf("Patient %05d", 10000+idx),
		Age:            age,
		Gender:         gender,
		Unit:           unit,
		AdmissionDate:  admitted,
		DiagnosisCodes: codes,
		DiagnosisText:  joinDiagnoses(texts),
	}
	v := GenerateVitals(rng, now, isICU)
	p.CurrentVitals = &v
	return p
}

func joinDiagnoses(texts []string) string {
	out := ""
	for i, t := range texts {
		if i > 0 {
			out += "; "
		}
		out += t
	}
	return out
}

// GenerateVitals samples a vitals snapshot with a circadian pattern. ICU
// patients run faster and less saturated than ward patients.
func GenerateVitals(rng *rand.Rand, at time.Time, isICU bool) models.Vitals {
	hour := at.Hour()
	baseHR := 65.0
	if hour >= 6 && hour < 22 {
		baseHR = 75.0
	}
	if isICU {
		baseHR += 15
	}

	systolic := 120 + rng.NormFloat64()*12
	spo2 := 97 + rng.NormFloat64()*2
	rr := 16 + rng.NormFloat64()*3
	if isICU {
		systolic += 10
		spo2 -= 3
		rr += 4
	}
	spo2 = clamp(spo2, 85, 100)

	return models.Vitals{
		Timestamp:       at,
		HeartRate:       math.Round(baseHR + rng.NormFloat64()*8),
		BPSystolic:      math.Round(systolic),
		BPDiastolic:     math.Round(systolic * 0.65),
		SpO2:            math.Round(spo2*10) / 10,
		RespiratoryRate: math.Round(rr),
		Temperature:     math.Round((37+rng.NormFloat64()*0.3)*10) / 10,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// ActivePatients returns up to limit patients from the replayed census.
func (e *Engine) ActivePatients(limit int) []models.Patient {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoaded()

	if limit <= 0 || limit > len(e.patients) {
		limit = len(e.patients)
	}
	out := make([]models.Patient, limit)
	copy(out, e.patients[:limit])
	return out
}

// PatientByID returns the patient with the given id, or false.
func (e *Engine) PatientByID(id string) (models.Patient, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoaded()

	for _, p := range e.patients {
		if p.PatientID == id {
			return p, true
		}
	}
	return models.Patient{}, false
}

// VitalsHistory returns hourly vitals samples for the trailing window.
func (e *Engine) VitalsHistory(id string, hours int) ([]models.Vitals, error) {
	p, ok := e.PatientByID(id)
	if !ok {
		return nil, fmt.Errorf("patient %s not found in census", id)
	}
	if hours <= 0 {
		hours = 24
	}
	isICU := p.Unit == UnitICU
	rng := rand.New(rand.NewSource(e.seed + int64(hashString(id))))
	now := time.Now().UTC()
	history := make([]models.Vitals, 0, hours)
	for i := hours - 1; i >= 0; i-- {
		history = append(history, GenerateVitals(rng, now.Add(-time.Duration(i)*time.Hour), isICU))
	}
	return history, nil
}

// UnitCensus returns a count of patients per unit.
func (e *Engine) UnitCensus() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoaded()

	census := make(map[string]int)
	for _, p := range e.patients {
		census[p.Unit]++
	}
	return census
}

func hashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
