package scoring

// Source is one scored assessment offered for consolidation.
type Source struct {
	Scores         ScoreVector    `json:"scores"`
	Weight         float64        `json:"weight"`
	QuizType       QuizType       `json:"quizType"`
	RespondentType RespondentType `json:"respondentType"`
	RespondentID   string         `json:"respondentId,omitempty"`
}

// HasValidWeight reports whether the source takes part in weighting.
// Zero, negative and non-finite weights exclude it.
func (s Source) HasValidWeight() bool {
	return isFinite(s.Weight) && s.Weight > 0
}

// IsProfessional reports whether the source comes from a teacher or other professional.
func (s Source) IsProfessional() bool {
	return s.QuizType == QuizTeacherClassroom || s.RespondentType.IsProfessional()
}

// validSources keeps the sources with a usable weight.
func validSources(sources []Source) []Source {
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		if s.HasValidWeight() {
			out = append(out, s)
		}
	}
	return out
}

// Consolidate combines weighted score vectors into one.
//
// Each skill is the weighted mean over the sources that carry a finite
// score for it (clamped to [1, 5]), rounded to two decimals. A skill no valid source supplies
// gets the neutral 3.0. Consolidate does not discount repeated sources; callers
// that want diminishing returns scale the weights they pass in.
func Consolidate(sources []Source) ScoreVector {
	out := NeutralVector()
	valid := validSources(sources)
	if len(valid) == 0 {
		return out
	}

	scores := make([]float64, len(valid))
	supplied := make([]bool, len(valid))
	for _, skill := range skillOrder {
		// Weights are rescaled by the largest weight among the sources that
		// supply this skill, so the sums stay finite and never reach zero.
		maxWeight := 0.0
		for i, s := range valid {
			scores[i], supplied[i] = s.Scores.bounded(skill)
			if supplied[i] && s.Weight > maxWeight {
				maxWeight = s.Weight
			}
		}
		var weightedSum, totalWeight float64
		for i, s := range valid {
			if !supplied[i] {
				continue
			}
			w := s.Weight / maxWeight
			weightedSum += scores[i] * w
			totalWeight += w
		}
		if totalWeight > 0 {
			out.Skills[skill] = clip(round2(weightedSum/totalWeight), MinScore, MaxScore)
		}
	}

	for _, field := range preferenceOrder {
		best := -1.0
		for _, s := range valid {
			p, ok := s.Scores.Preferences[field]
			if !ok || s.Weight <= best {
				continue
			}
			if p.Kind == KindMultiChoice {
				p = MultiChoice(p.Choices)
			}
			out.Preferences[field] = p
			best = s.Weight
		}
	}
	return out
}
