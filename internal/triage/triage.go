// Package triage ranks doctor specialties against a patient's free-text
// reason for visit. It is a convenience collaborator for the staff
// assignment flow; appointment correctness never depends on its output.
package triage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/carebridge/hospital-scheduling/internal/scheduling"
)

const fallbackSpecialty = "General Medicine"

// symptomSpecialtyMap maps reason keywords to the specialty most likely to
// handle them. Longer keywords weigh more when several specialties match.
var symptomSpecialtyMap = map[string]string{
	// Cardiology
	"heart":          "Cardiology",
	"chest pain":     "Cardiology",
	"chest":          "Cardiology",
	"palpitation":    "Cardiology",
	"blood pressure": "Cardiology",
	"hypertension":   "Cardiology",
	"cardiac":        "Cardiology",

	// Dermatology
	"skin":    "Dermatology",
	"rash":    "Dermatology",
	"acne":    "Dermatology",
	"eczema":  "Dermatology",
	"allergy": "Dermatology",
	"itching": "Dermatology",
	"hives":   "Dermatology",

	// Orthopedics
	"bone":      "Orthopedics",
	"fracture":  "Orthopedics",
	"joint":     "Orthopedics",
	"back pain": "Orthopedics",
	"spine":     "Orthopedics",
	"knee":      "Orthopedics",
	"shoulder":  "Orthopedics",
	"arthritis": "Orthopedics",

	// Neurology
	"headache":  "Neurology",
	"migraine":  "Neurology",
	"seizure":   "Neurology",
	"numbness":  "Neurology",
	"dizziness": "Neurology",
	"nerve":     "Neurology",
	"brain":     "Neurology",

	// Gastroenterology
	"stomach":      "Gastroenterology",
	"digestion":    "Gastroenterology",
	"nausea":       "Gastroenterology",
	"vomiting":     "Gastroenterology",
	"diarrhea":     "Gastroenterology",
	"constipation": "Gastroenterology",
	"liver":        "Gastroenterology",
	"abdomen":      "Gastroenterology",

	// Pulmonology
	"breathing":           "Pulmonology",
	"cough":               "Pulmonology",
	"asthma":              "Pulmonology",
	"lung":                "Pulmonology",
	"respiratory":         "Pulmonology",
	"shortness of breath": "Pulmonology",

	// ENT
	"ear":     "ENT",
	"nose":    "ENT",
	"throat":  "ENT",
	"sinus":   "ENT",
	"hearing": "ENT",
	"tonsil":  "ENT",

	// Ophthalmology
	"eye":     "Ophthalmology",
	"vision":  "Ophthalmology",
	"blurry":  "Ophthalmology",
	"glasses": "Ophthalmology",

	// Pediatrics
	"child":  "Pediatrics",
	"baby":   "Pediatrics",
	"infant": "Pediatrics",
	"kid":    "Pediatrics",

	// Gynecology
	"pregnancy": "Gynecology",
	"menstrual": "Gynecology",
	"period":    "Gynecology",
	"pelvic":    "Gynecology",

	// Urology
	"urinary":  "Urology",
	"bladder":  "Urology",
	"kidney":   "Urology",
	"prostate": "Urology",

	// General/Internal Medicine (fallback)
	"fever":    fallbackSpecialty,
	"cold":     fallbackSpecialty,
	"flu":      fallbackSpecialty,
	"fatigue":  fallbackSpecialty,
	"weakness": fallbackSpecialty,
	"checkup":  fallbackSpecialty,
	"general":  fallbackSpecialty,
}

type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceMedium Relevance = "medium"
	RelevanceLow    Relevance = "low"
)

type Suggestion struct {
	Doctor      scheduling.Doctor
	MatchReason string
	Relevance   Relevance
}

// DoctorDirectory is the slice of the scheduling repository the suggester
// reads from.
type DoctorDirectory interface {
	ListDoctors(ctx context.Context) ([]scheduling.Doctor, error)
	ListDoctorsBySpecialty(ctx context.Context, specialty string) ([]scheduling.Doctor, error)
}

type Suggester struct {
	doctors DoctorDirectory
}

func NewSuggester(doctors DoctorDirectory) *Suggester {
	return &Suggester{doctors: doctors}
}

// AnalyzeSymptoms extracts the specialties a reason text points at, most
// relevant first. Matching keywords add their length to the specialty's
// weight so longer, more specific phrases dominate.
func AnalyzeSymptoms(reason string) []string {
	lower := strings.ToLower(reason)

	weights := make(map[string]int)
	for keyword, specialty := range symptomSpecialtyMap {
		if strings.Contains(lower, keyword) {
			weights[specialty] += len(keyword)
		}
	}
	if len(weights) == 0 {
		return []string{fallbackSpecialty}
	}

	specs := make([]string, 0, len(weights))
	for spec := range weights {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool {
		if weights[specs[i]] != weights[specs[j]] {
			return weights[specs[i]] > weights[specs[j]]
		}
		return specs[i] < specs[j]
	})
	return specs
}

// SuggestDoctors returns up to limit doctors ranked by how well their
// specialty matches the reason text. Doctors of the top specialty rank
// high, other matched specialties medium; when nothing matches it falls
// back to general practitioners and then to any doctor at all.
func (s *Suggester) SuggestDoctors(ctx context.Context, reason string, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = 5
	}

	specialties := AnalyzeSymptoms(reason)

	var suggestions []Suggestion
	seen := make(map[string]struct{})

	for _, spec := range specialties {
		doctors, err := s.doctors.ListDoctorsBySpecialty(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("list doctors for %s: %w", spec, err)
		}
		relevance := RelevanceMedium
		if spec == specialties[0] {
			relevance = RelevanceHigh
		}
		for _, doc := range doctors {
			if _, ok := seen[doc.ID.String()]; ok {
				continue
			}
			seen[doc.ID.String()] = struct{}{}
			suggestions = append(suggestions, Suggestion{
				Doctor:      doc,
				MatchReason: fmt.Sprintf("Specializes in %s", doc.Specialty),
				Relevance:   relevance,
			})
		}
	}

	if len(suggestions) == 0 {
		general, err := s.doctors.ListDoctorsBySpecialty(ctx, fallbackSpecialty)
		if err != nil {
			return nil, fmt.Errorf("list general practitioners: %w", err)
		}
		for _, doc := range general {
			suggestions = append(suggestions, Suggestion{
				Doctor:      doc,
				MatchReason: "General practitioner",
				Relevance:   RelevanceLow,
			})
		}
	}

	if len(suggestions) == 0 {
		all, err := s.doctors.ListDoctors(ctx)
		if err != nil {
			return nil, fmt.Errorf("list doctors: %w", err)
		}
		for _, doc := range all {
			suggestions = append(suggestions, Suggestion{
				Doctor:      doc,
				MatchReason: "Available doctor",
				Relevance:   RelevanceLow,
			})
		}
	}

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// Summary renders a short human-readable hint for the assignment screen.
func Summary(reason string) string {
	specialties := AnalyzeSymptoms(reason)
	if len(specialties) == 1 && specialties[0] == fallbackSpecialty {
		return "General consultation recommended"
	}
	if len(specialties) == 1 {
		return fmt.Sprintf("Suggested specialty: %s", specialties[0])
	}
	if len(specialties) > 3 {
		specialties = specialties[:3]
	}
	return fmt.Sprintf("Suggested specialties: %s", strings.Join(specialties, ", "))
}
