package nlp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNote = "Mr. John Smith, MRN: 12345678, admitted 03/15/2024 with sepsis " +
	"and heart failure. BP 140/90, HR of 110 bpm. Started furosemide. " +
	"Creatinine of 2.1. Contact: (555) 123-4567, jsmith@example.com."

func TestDetectPHI(t *testing.T) {
	p := NewPipeline()

	matches := p.DetectPHI(sampleNote)

	types := make(map[PHIType]bool)
	for _, m := range matches {
		types[m.Type] = true
	}

	assert.True(t, types[PHIName])
	assert.True(t, types[PHIMRN])
	assert.True(t, types[PHIDate])
	assert.True(t, types[PHIPhone])
	assert.True(t, types[PHIEmail])
}

func TestDetectPHI_LongestMatchWins(t *testing.T) {
	p := NewPipeline()

	// The title form subsumes the bare name form of the same span.
	matches := p.DetectPHI("Seen by Dr. Jane Doe today.")

	require.Len(t, matches, 1)
	assert.Equal(t, "Dr. Jane Doe", matches[0].Text)
	assert.Equal(t, PHIName, matches[0].Type)
}

func TestDetectPHI_SortedByPosition(t *testing.T) {
	p := NewPipeline()

	matches := p.DetectPHI(sampleNote)

	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i].Start, matches[i-1].End)
	}
}

func TestDetectPHI_Age(t *testing.T) {
	p := NewPipeline()

	matches := p.DetectPHI("patient is 72 years old with dyspnea")

	require.NotEmpty(t, matches)
	assert.Equal(t, PHIAge, matches[0].Type)
	assert.Equal(t, "[REDACTED_AGE]", matches[0].Replacement)
}

func TestDeidentify(t *testing.T) {
	p := NewPipeline()

	deid, matches := p.Deidentify(sampleNote)

	assert.NotContains(t, deid, "John Smith")
	assert.NotContains(t, deid, "12345678")
	assert.NotContains(t, deid, "03/15/2024")
	assert.NotContains(t, deid, "jsmith@example.com")

	assert.Contains(t, deid, "[REDACTED_NAME]")
	assert.Contains(t, deid, "[REDACTED_MRN]")
	assert.Contains(t, deid, "[REDACTED_DATE]")
	assert.Contains(t, deid, "[REDACTED_EMAIL]")

	// Clinical content survives redaction.
	assert.Contains(t, deid, "sepsis")
	assert.Contains(t, deid, "furosemide")

	assert.NotEmpty(t, matches)
}

func TestDeidentify_NoPHI(t *testing.T) {
	p := NewPipeline()

	deid, matches := p.Deidentify("patient stable on current regimen")

	assert.Equal(t, "patient stable on current regimen", deid)
	assert.Empty(t, matches)
}

func TestExtractEntities(t *testing.T) {
	p := NewPipeline()

	entities := p.ExtractEntities("History of heart failure and COPD. BP 140/90. On furosemide. Troponin 0.8.")

	byLabel := make(map[EntityType][]string)
	for _, e := range entities {
		byLabel[e.Label] = append(byLabel[e.Label], strings.ToLower(e.Text))
	}

	assert.Contains(t, byLabel[EntityDisease], "heart failure")
	assert.Contains(t, byLabel[EntityDisease], "copd")
	assert.Contains(t, byLabel[EntityDrug], "furosemide")
	assert.NotEmpty(t, byLabel[EntityVitalSign])
	assert.NotEmpty(t, byLabel[EntityLabValue])

	// Sorted by position.
	for i := 1; i < len(entities); i++ {
		assert.GreaterOrEqual(t, entities[i].Start, entities[i-1].Start)
	}
}

func TestProcessNote(t *testing.T) {
	p := NewPipeline()

	result := p.ProcessNote(sampleNote)

	assert.Equal(t, len(sampleNote), result.OriginalLength)
	assert.Equal(t, len(result.PHIRemoved), result.PHICount)
	assert.Equal(t, len(result.Entities), result.EntityCount)
	assert.Greater(t, result.PHICount, 0)
	assert.Greater(t, result.EntityCount, 0)
	assert.NotContains(t, result.DeidentifiedText, "John Smith")
	assert.NotEmpty(t, result.EntitiesByType["DISEASE"])
	assert.False(t, result.ProcessedAt.IsZero())

	// The embedding text is whitespace-normalized and redacted.
	assert.NotContains(t, result.EmbeddingReadyText, "  ")
	assert.Contains(t, result.EmbeddingReadyText, "[REDACTED_NAME]")
}

func TestSummarizeEntities(t *testing.T) {
	p := NewPipeline()

	summary := p.SummarizeEntities("Sepsis with renal failure. Started heparin. Lactate 4.2.")

	assert.Contains(t, summary, "Clinical Summary:")
	assert.Contains(t, summary, "Conditions: sepsis")
	assert.Contains(t, summary, "Medications: heparin")
	assert.Contains(t, summary, "Labs: lactate 4.2")
}

func TestNormalizeForEmbedding(t *testing.T) {
	assert.Equal(t, "Stable overnight. No events.",
		normalizeForEmbedding("  Stable   overnight...  No events. "))
}
