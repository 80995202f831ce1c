package nlp

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// PHIType classifies protected health information.
type PHIType string

const (
	PHIName  PHIType = "NAME"
	PHIDate  PHIType = "DATE"
	PHIMRN   PHIType = "MRN"
	PHISSN   PHIType = "SSN"
	PHIPhone PHIType = "PHONE"
	PHIEmail PHIType = "EMAIL"
	PHIAge   PHIType = "AGE"
)

// EntityType classifies clinical entities.
type EntityType string

const (
	EntityDisease   EntityType = "DISEASE"
	EntityDrug      EntityType = "DRUG"
	EntityProcedure EntityType = "PROCEDURE"
	EntityAnatomy   EntityType = "ANATOMY"
	EntityVitalSign EntityType = "VITAL_SIGN"
	EntityLabValue  EntityType = "LAB_VALUE"
)

// PHIMatch is one detected span of protected information.
type PHIMatch struct {
	Text        string  `json:"text"`
	Type        PHIType `json:"type"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
	Replacement string  `json:"replacement"`
}

// Entity is one extracted clinical mention.
type Entity struct {
	Text  string     `json:"text"`
	Label EntityType `json:"label"`
	Start int        `json:"start"`
	End   int        `json:"end"`
}

// NoteResult is the output of processing a clinical note.
type NoteResult struct {
	OriginalLength     int                 `json:"original_length"`
	DeidentifiedText   string              `json:"deidentified_text"`
	PHIRemoved         []PHIMatch          `json:"phi_removed"`
	PHICount           int                 `json:"phi_count"`
	Entities           []Entity            `json:"entities"`
	EntitiesByType     map[string][]string `json:"entities_by_type"`
	EntityCount        int                 `json:"entity_count"`
	EmbeddingReadyText string              `json:"embedding_ready_text"`
	ProcessedAt        time.Time           `json:"processed_at"`
}

var phiPatterns = []struct {
	phiType PHIType
	re      *regexp.Regexp
}{
	{PHIName, regexp.MustCompile(`\b(?:Dr\.?|Mr\.?|Mrs\.?|Ms\.?)\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?`)},
	{PHIName, regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\b`)},
	{PHIDate, regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)},
	{PHIDate, regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4}\b`)},
	{PHIDate, regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)},
	{PHIMRN, regexp.MustCompile(`(?i)\bMRN[:\s]*\d{6,10}\b`)},
	{PHIMRN, regexp.MustCompile(`(?i)\b(?:Patient\s+ID|PID)[:\s]*\d+\b`)},
	{PHISSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{PHIPhone, regexp.MustCompile(`\b\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)},
	{PHIEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{PHIAge, regexp.MustCompile(`(?i)\b\d{1,3}\s*(?:year|yr|y\.?o\.?|years?\s*old)\b`)},
}

var clinicalPatterns = []struct {
	label EntityType
	re    *regexp.Regexp
}{
	{EntityDisease, regexp.MustCompile(`(?i)\b(?:diabetes|hypertension|CHF|heart failure|pneumonia|sepsis|COPD|asthma|stroke|MI|myocardial infarction|cancer|infection|fever|arrhythmia|atrial fibrillation|kidney disease|renal failure|respiratory failure|anemia|depression|anxiety)\b`)},
	{EntityDrug, regexp.MustCompile(`(?i)\b(?:aspirin|metformin|lisinopril|metoprolol|atorvastatin|omeprazole|amlodipine|albuterol|prednisone|gabapentin|losartan|furosemide|hydrochlorothiazide|insulin|heparin|warfarin|clopidogrel|acetaminophen|ibuprofen|morphine)\b`)},
	{EntityProcedure, regexp.MustCompile(`(?i)\b(?:surgery|catheterization|intubation|dialysis|biopsy|MRI|CT scan|X-ray|ultrasound|EKG|ECG|echocardiogram|colonoscopy|endoscopy|bronchoscopy|angioplasty|CABG|tracheostomy|thoracentesis|lumbar puncture)\b`)},
	{EntityAnatomy, regexp.MustCompile(`(?i)\b(?:heart|lung|liver|kidney|brain|chest|abdomen|left ventricular|right ventricular|pulmonary|hepatic|renal|cardiac|coronary|aortic|mitral|tricuspid)\b`)},
	{EntityVitalSign, regexp.MustCompile(`(?i)\b(?:BP|blood pressure|HR|heart rate|RR|respiratory rate|SpO2|O2 sat|oxygen saturation|temp|temperature|pulse)\s*(?:of\s+)?[\d./]+(?:\s*(?:mmHg|bpm|/min|%|°[CF]))?`)},
	{EntityLabValue, regexp.MustCompile(`(?i)\b(?:WBC|RBC|Hgb|Hct|platelets?|creatinine|BUN|glucose|sodium|potassium|chloride|CO2|calcium|magnesium|troponin|BNP|lactate|INR|PT|PTT)\s*(?:of\s+)?[\d.]+`)},
}

var phiReplacements = map[PHIType]string{
	PHIName:  "[REDACTED_NAME]",
	PHIDate:  "[REDACTED_DATE]",
	PHIMRN:   "[REDACTED_MRN]",
	PHISSN:   "[REDACTED_SSN]",
	PHIPhone: "[REDACTED_PHONE]",
	PHIEmail: "[REDACTED_EMAIL]",
	PHIAge:   "[REDACTED_AGE]",
}

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	punctRepeatRe = regexp.MustCompile(`([.!?])([.!?])+`)
)

// Pipeline runs clinical text processing: de-identification, entity
// extraction and normalization for retrieval.
type Pipeline struct{}

func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// DetectPHI finds protected spans in text, longest match winning on overlap.
func (p *Pipeline) DetectPHI(text string) []PHIMatch {
	var matches []PHIMatch
	for _, pat := range phiPatterns {
		for _, loc := range pat.re.FindAllStringIndex(text, -1) {
			matches = append(matches, PHIMatch{
				Text:        text[loc[0]:loc[1]],
				Type:        pat.phiType,
				Start:       loc[0],
				End:         loc[1],
				Replacement: phiReplacements[pat.phiType],
			})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	return removeOverlapping(matches)
}

func removeOverlapping(matches []PHIMatch) []PHIMatch {
	if len(matches) == 0 {
		return nil
	}
	result := []PHIMatch{matches[0]}
	for _, m := range matches[1:] {
		last := &result[len(result)-1]
		if m.Start >= last.End {
			result = append(result, m)
		} else if m.End-m.Start > last.End-last.Start {
			*last = m
		}
	}
	return result
}

// Deidentify replaces all detected PHI spans with typed placeholders.
func (p *Pipeline) Deidentify(text string) (string, []PHIMatch) {
	matches := p.DetectPHI(text)
	out := text
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		out = out[:m.Start] + m.Replacement + out[m.End:]
	}
	return out, matches
}

// ExtractEntities finds clinical mentions by pattern, sorted by position.
func (p *Pipeline) ExtractEntities(text string) []Entity {
	var entities []Entity
	for _, pat := range clinicalPatterns {
		for _, loc := range pat.re.FindAllStringIndex(text, -1) {
			entities = append(entities, Entity{
				Text:  text[loc[0]:loc[1]],
				Label: pat.label,
				Start: loc[0],
				End:   loc[1],
			})
		}
	}
	sort.SliceStable(entities, func(i, j int) bool { return entities[i].Start < entities[j].Start })
	return entities
}

// ProcessNote runs the full pipeline on one clinical note.
func (p *Pipeline) ProcessNote(text string) NoteResult {
	deid, phi := p.Deidentify(text)
	entities := p.ExtractEntities(deid)

	byType := make(map[string][]string)
	for _, e := range entities {
		byType[string(e.Label)] = appendUnique(byType[string(e.Label)], e.Text)
	}

	return NoteResult{
		OriginalLength:     len(text),
		DeidentifiedText:   deid,
		PHIRemoved:         phi,
		PHICount:           len(phi),
		Entities:           entities,
		EntitiesByType:     byType,
		EntityCount:        len(entities),
		EmbeddingReadyText: normalizeForEmbedding(deid),
		ProcessedAt:        time.Now().UTC(),
	}
}

// SummarizeEntities renders a structured entity summary for display.
func (p *Pipeline) SummarizeEntities(text string) string {
	entities := p.ExtractEntities(text)

	byType := make(map[EntityType][]string)
	for _, e := range entities {
		byType[e.Label] = appendUnique(byType[e.Label], strings.ToLower(e.Text))
	}

	lines := []string{"Clinical Summary:"}
	for _, section := range []struct {
		label EntityType
		title string
	}{
		{EntityDisease, "Conditions"},
		{EntityDrug, "Medications"},
		{EntityProcedure, "Procedures"},
		{EntityVitalSign, "Vitals"},
		{EntityLabValue, "Labs"},
	} {
		if values := byType[section.label]; len(values) > 0 {
			lines = append(lines, "  "+section.title+": "+strings.Join(values, ", "))
		}
	}
	return strings.Join(lines, "\n")
}

func normalizeForEmbedding(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = punctRepeatRe.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
