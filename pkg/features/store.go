package features

import (
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/acctcare/careops/pkg/log"
	"github.com/acctcare/careops/pkg/models"
)

// FeatureVector is a flat map of model-ready features for one patient.
type FeatureVector map[string]float64

// Store computes and caches per-patient feature vectors. Vectors are
// derived from the census snapshot, so a short TTL keeps them aligned
// with the replay engine without recomputing on every score request.
type Store struct {
	cache  *cache.Cache
	logger *slog.Logger
}

// NewStore creates a feature store with the given cache TTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{
		cache:  cache.New(ttl, 2*ttl),
		logger: log.WithModule("features"),
	}
}

// Features returns the feature vector for a patient, cached by patient id.
func (s *Store) Features(patient models.Patient) FeatureVector {
	if cached, ok := s.cache.Get(patient.PatientID); ok {
		return cached.(FeatureVector)
	}

	fv := Extract(patient)
	s.cache.Set(patient.PatientID, fv, cache.DefaultExpiration)
	s.logger.Debug("features computed", "patient_id", patient.PatientID, "features", len(fv))
	return fv
}

// Invalidate drops the cached vector for a patient.
func (s *Store) Invalidate(patientID string) {
	s.cache.Delete(patientID)
}

// Extract derives the raw feature vector without caching.
func Extract(patient models.Patient) FeatureVector {
	fv := FeatureVector{}

	// Demographics.
	fv["age"] = float64(patient.Age)
	fv["gender_m"] = boolFeature(strings.EqualFold(patient.Gender, "M"))
	fv["gender_f"] = boolFeature(strings.EqualFold(patient.Gender, "F"))

	// Clinical, keyed on ICD-10 chapter prefixes.
	fv["diagnosis_count"] = float64(len(patient.DiagnosisCodes))
	fv["has_heart_condition"] = boolFeature(hasCodePrefix(patient.DiagnosisCodes, "I"))
	fv["has_respiratory"] = boolFeature(hasCodePrefix(patient.DiagnosisCodes, "J"))
	fv["has_sepsis"] = boolFeature(hasCodePrefix(patient.DiagnosisCodes, "A41"))
	fv["has_renal"] = boolFeature(hasCodePrefix(patient.DiagnosisCodes, "N"))

	// Operational.
	fv["is_icu"] = boolFeature(strings.EqualFold(patient.Unit, "ICU"))
	fv["los_days"] = lengthOfStayDays(patient.AdmissionDate)

	return fv
}

func hasCodePrefix(codes []string, prefix string) bool {
	for _, code := range codes {
		if strings.HasPrefix(strings.ToUpper(code), prefix) {
			return true
		}
	}
	return false
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func lengthOfStayDays(admitted time.Time) float64 {
	if admitted.IsZero() {
		return 0
	}
	days := time.Since(admitted).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}
