package replay

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivePatients(t *testing.T) {
	engine := NewEngine(42, 20)

	patients := engine.ActivePatients(0)
	require.Len(t, patients, 20)

	for _, p := range patients {
		assert.NotEmpty(t, p.PatientID)
		assert.GreaterOrEqual(t, p.Age, 35)
		assert.LessOrEqual(t, p.Age, 89)
		assert.Contains(t, []string{"M", "F"}, p.Gender)
		assert.Contains(t, []string{UnitICU, UnitER, UnitMed}, p.Unit)
		assert.NotEmpty(t, p.DiagnosisCodes)
		assert.NotEmpty(t, p.DiagnosisText)
		assert.True(t, p.AdmissionDate.Before(time.Now()))
		require.NotNil(t, p.CurrentVitals)
	}
}

func TestActivePatients_Limit(t *testing.T) {
	engine := NewEngine(42, 20)

	assert.Len(t, engine.ActivePatients(5), 5)
	assert.Len(t, engine.ActivePatients(100), 20)
}

func TestCensus_DeterministicPerSeed(t *testing.T) {
	first := NewEngine(7, 10).ActivePatients(0)
	second := NewEngine(7, 10).ActivePatients(0)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].PatientID, second[i].PatientID)
		assert.Equal(t, first[i].Age, second[i].Age)
		assert.Equal(t, first[i].DiagnosisCodes, second[i].DiagnosisCodes)
		assert.Equal(t, first[i].Unit, second[i].Unit)
	}
}

func TestCensus_DiffersAcrossSeeds(t *testing.T) {
	first := NewEngine(1, 10).ActivePatients(0)
	second := NewEngine(2, 10).ActivePatients(0)

	same := true
	for i := range first {
		if first[i].Age != second[i].Age || first[i].DiagnosisText != second[i].DiagnosisText {
			same = false
			break
		}
	}
	assert.False(t, same)
}

func TestPatientByID(t *testing.T) {
	engine := NewEngine(42, 10)
	patients := engine.ActivePatients(0)

	found, ok := engine.PatientByID(patients[3].PatientID)
	require.True(t, ok)
	assert.Equal(t, patients[3].PatientID, found.PatientID)

	_, ok = engine.PatientByID("P-99999")
	assert.False(t, ok)
}

func TestUnitCensus(t *testing.T) {
	engine := NewEngine(42, 20)

	census := engine.UnitCensus()

	total := 0
	for _, count := range census {
		total += count
	}
	assert.Equal(t, 20, total)

	// idx%4==0 patients land in the ICU.
	assert.Equal(t, 5, census[UnitICU])
}

func TestVitalsHistory(t *testing.T) {
	engine := NewEngine(42, 10)
	patients := engine.ActivePatients(0)

	history, err := engine.VitalsHistory(patients[0].PatientID, 12)
	require.NoError(t, err)
	require.Len(t, history, 12)

	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].Timestamp.After(history[i-1].Timestamp))
	}
	for _, v := range history {
		assert.GreaterOrEqual(t, v.SpO2, 85.0)
		assert.LessOrEqual(t, v.SpO2, 100.0)
		assert.Greater(t, v.HeartRate, 0.0)
	}
}

func TestVitalsHistory_UnknownPatient(t *testing.T) {
	engine := NewEngine(42, 10)

	_, err := engine.VitalsHistory("P-99999", 12)
	assert.Error(t, err)
}

func TestGenerateVitals_ICUShift(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Same stream position, different acuity.
	ward := GenerateVitals(rand.New(rand.NewSource(1)), at, false)
	icu := GenerateVitals(rand.New(rand.NewSource(1)), at, true)

	assert.Greater(t, icu.HeartRate, ward.HeartRate)
	assert.Less(t, icu.SpO2, ward.SpO2)
	assert.Greater(t, icu.RespiratoryRate, ward.RespiratoryRate)
}
