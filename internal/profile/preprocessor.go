package profile

import (
	"sort"
	"time"

	"github.com/ZanzyTHEbar/learning-profile/internal/database"
	"github.com/ZanzyTHEbar/learning-profile/internal/scoring"
)

// DefaultMinSpacing is the window in which a respondent's repeated
// submission of the same quiz replaces the earlier one.
const DefaultMinSpacing = 10 * time.Minute

// Preprocessor cleans a child's assessment history before weighting.
type Preprocessor struct {
	minSpacing time.Duration
}

// NewPreprocessor creates a new preprocessor
func NewPreprocessor(minSpacing time.Duration) *Preprocessor {
	if minSpacing < 0 {
		minSpacing = 0
	}
	return &Preprocessor{minSpacing: minSpacing}
}

// Process returns a cleaned copy ordered by submission time. The input is
// not modified.
func (p *Preprocessor) Process(assessments []database.Assessment) []database.Assessment {
	events := make([]database.Assessment, len(assessments))
	copy(events, assessments)

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].SubmittedAt.Before(events[j].SubmittedAt)
	})

	events = p.dropEmpty(events)
	return p.collapseResubmissions(events)
}

// collapseResubmissions keeps only the newest of a burst of submissions
// from the same respondent for the same quiz.
func (p *Preprocessor) collapseResubmissions(events []database.Assessment) []database.Assessment {
	if len(events) == 0 || p.minSpacing == 0 {
		return events
	}

	type burstKey struct {
		respondent string
		quiz       scoring.QuizType
	}
	lastKept := make(map[burstKey]int)

	cleaned := make([]database.Assessment, 0, len(events))
	for _, event := range events {
		key := burstKey{respondent: respondentKey(event), quiz: event.QuizType}
		if idx, ok := lastKept[key]; ok && event.SubmittedAt.Sub(cleaned[idx].SubmittedAt) < p.minSpacing {
			cleaned[idx] = event
			continue
		}
		lastKept[key] = len(cleaned)
		cleaned = append(cleaned, event)
	}

	// A replaced entry moved forward in time; restore ordering.
	sort.SliceStable(cleaned, func(i, j int) bool {
		return cleaned[i].SubmittedAt.Before(cleaned[j].SubmittedAt)
	})
	return cleaned
}

// dropEmpty removes assessments that answered no skill question.
func (p *Preprocessor) dropEmpty(events []database.Assessment) []database.Assessment {
	cleaned := events[:0]
	for _, event := range events {
		if answersAnySkill(event.Responses) {
			cleaned = append(cleaned, event)
		}
	}
	return cleaned
}

func answersAnySkill(responses scoring.Responses) bool {
	for id := range responses {
		if _, ok := scoring.SkillForQuestion(id); ok {
			return true
		}
	}
	return false
}
