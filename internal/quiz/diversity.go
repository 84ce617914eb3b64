package quiz

import (
	"strings"

	"github.com/xxxsen/studymate/internal/model"
)

// DiversityProfile counts the sources a batch of questions is attributed to.
type DiversityProfile struct {
	Total   int
	Sources map[string]int
}

func NewDiversityProfile(questions []model.Question) DiversityProfile {
	p := DiversityProfile{Total: len(questions), Sources: make(map[string]int)}
	for _, q := range questions {
		src := strings.ToLower(strings.Join(strings.Fields(q.SourceUsed), " "))
		if src == "" {
			continue
		}
		p.Sources[src]++
	}
	return p
}

func (p DiversityProfile) UniqueSources() int {
	return len(p.Sources)
}

// Ratio is unique sources over questions. Questions without a source count
// toward the total only.
func (p DiversityProfile) Ratio() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(len(p.Sources)) / float64(p.Total)
}

// Acceptable reports whether the batch spans enough sources. Single-question
// batches always pass.
func (p DiversityProfile) Acceptable(threshold float64) bool {
	if p.Total <= 1 {
		return true
	}
	return p.Ratio() >= threshold && p.UniqueSources() > 1
}
