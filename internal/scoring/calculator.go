package scoring

import (
	"math"
	"sort"
)

// Point tiers of the collapsed Likert scale.
const (
	pointsLow  = 0.0
	pointsMid  = 0.5
	pointsHigh = 1.0
)

// PointsFromResponse converts one raw response to {0, 0.5, 1.0}.
// Preference questions, unmapped ids and non-numeric values score 0.
func PointsFromResponse(questionID int, v Value) float64 {
	if _, ok := SkillForQuestion(questionID); !ok {
		return pointsLow
	}
	if v.Kind != KindLikert || math.IsNaN(v.Number) {
		return pointsLow
	}
	// ±Inf clamps to the nearest bound like any other out-of-range number.
	n := clip(v.Number, MinScore, MaxScore)
	switch {
	case n >= 5:
		return pointsHigh
	case n >= 3:
		return pointsMid
	default:
		return pointsLow
	}
}

// CalculateScores aggregates one assessment's responses into a score vector.
//
// Each skill's score is 1 + 4*mean(points) rounded to two decimals; a skill no
// response touched scores 1.0. Preference answers pass through verbatim.
// quizType and ageGroup are accepted for symmetry with the quiz configuration
// layer and do not alter the arithmetic.
func CalculateScores(responses Responses, quizType QuizType, ageGroup AgeGroup) ScoreVector {
	out := DefaultScoringVector()
	if len(responses) == 0 {
		return out
	}

	ids := make([]int, 0, len(responses))
	for id := range responses {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var (
		sums   [SkillCount]float64
		counts [SkillCount]int
	)
	for _, id := range ids {
		v := responses[id]
		if skill, ok := SkillForQuestion(id); ok {
			i := skill.Index()
			sums[i] += PointsFromResponse(id, v)
			counts[i]++
			continue
		}
		if field, ok := PreferenceForQuestion(id); ok {
			if v.Kind == KindMultiChoice {
				v = MultiChoice(v.Choices)
			}
			out.Preferences[field] = v
		}
	}

	for i, skill := range skillOrder {
		if counts[i] == 0 {
			continue
		}
		avg := sums[i] / float64(counts[i])
		out.Skills[skill] = clip(round2(MinScore+4*avg), MinScore, MaxScore)
	}
	return out
}
