package profile

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ZanzyTHEbar/learning-profile/internal/database"
	"github.com/ZanzyTHEbar/learning-profile/internal/scoring"
)

// WeightPolicy turns stored assessments into weighted consolidation sources.
type WeightPolicy struct {
	BaseWeights    map[scoring.QuizType]float64 `json:"baseWeights" yaml:"base_weights" mapstructure:"base_weights"`
	DefaultWeight  float64                      `json:"defaultWeight" yaml:"default_weight" mapstructure:"default_weight"`
	RepeatFactor   float64                      `json:"repeatFactor" yaml:"repeat_factor" mapstructure:"repeat_factor"`
	DecayDays      float64                      `json:"decayDays" yaml:"decay_days" mapstructure:"decay_days"`
	ShortDecayDays float64                      `json:"shortDecayDays" yaml:"short_decay_days" mapstructure:"short_decay_days"`
	HorizonBlend   float64                      `json:"horizonBlend" yaml:"horizon_blend" mapstructure:"horizon_blend"`
}

// DefaultWeightPolicy favours classroom observations over home ones and
// halves every repeat from the same respondent.
func DefaultWeightPolicy() WeightPolicy {
	return WeightPolicy{
		BaseWeights: map[scoring.QuizType]float64{
			scoring.QuizTeacherClassroom: 0.6,
			scoring.QuizParentHome:       0.4,
			scoring.QuizGeneral:          0.5,
		},
		DefaultWeight:  0.5,
		RepeatFactor:   0.5,
		DecayDays:      180,
		ShortDecayDays: 30,
		HorizonBlend:   0.25,
	}
}

// Validate rejects policies that would produce invalid source weights.
func (p WeightPolicy) Validate() error {
	check := func(name string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s must be a finite non-negative number, got %v", name, v)
		}
		return nil
	}

	for quiz, w := range p.BaseWeights {
		if !quiz.Valid() {
			return fmt.Errorf("unknown quiz type %q in base weights", quiz)
		}
		if err := check("base weight for "+string(quiz), w); err != nil {
			return err
		}
	}
	if err := check("default weight", p.DefaultWeight); err != nil {
		return err
	}
	if !(p.RepeatFactor > 0 && p.RepeatFactor <= 1) {
		return fmt.Errorf("repeat factor must be in (0, 1], got %v", p.RepeatFactor)
	}
	if !(p.DecayDays > 0) || math.IsInf(p.DecayDays, 0) {
		return fmt.Errorf("decay days must be positive, got %v", p.DecayDays)
	}
	if !(p.ShortDecayDays > 0) || math.IsInf(p.ShortDecayDays, 0) {
		return fmt.Errorf("short decay days must be positive, got %v", p.ShortDecayDays)
	}
	if !(p.HorizonBlend >= 0 && p.HorizonBlend <= 1) {
		return fmt.Errorf("horizon blend must be in [0, 1], got %v", p.HorizonBlend)
	}
	return nil
}

func (p WeightPolicy) baseWeight(q scoring.QuizType) float64 {
	if q == "" {
		q = scoring.QuizGeneral
	}
	if w, ok := p.BaseWeights[q]; ok {
		return w
	}
	return p.DefaultWeight
}

// DecayWeight computes exp(-deltaDays/tau).
func DecayWeight(deltaDays float64, tau float64) float64 {
	if tau <= 0 {
		return 0
	}
	return math.Exp(-deltaDays / tau)
}

// BlendDualHorizon blends short- and long-horizon aggregates.
func BlendDualHorizon(shortAgg, longAgg, lambda float64) float64 {
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	return lambda*shortAgg + (1-lambda)*longAgg
}

// Recency returns the blended decay multiplier for an assessment age.
func (p WeightPolicy) Recency(age time.Duration) float64 {
	days := age.Hours() / 24
	if days < 0 {
		days = 0
	}
	return BlendDualHorizon(DecayWeight(days, p.ShortDecayDays), DecayWeight(days, p.DecayDays), p.HorizonBlend)
}

func respondentKey(a database.Assessment) string {
	if a.RespondentID != "" {
		return "id:" + a.RespondentID
	}
	return "type:" + string(a.RespondentType)
}

// WeightSources converts assessments into consolidation sources. Repeats
// from one respondent get diminishing returns, newest first, and every
// source decays with age. The output keeps submission order.
func (p WeightPolicy) WeightSources(assessments []database.Assessment, now time.Time) []scoring.Source {
	order := make([]int, len(assessments))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return assessments[order[i]].SubmittedAt.Before(assessments[order[j]].SubmittedAt)
	})

	// Walk newest to oldest so the repeat index counts newer siblings.
	weights := make([]float64, len(assessments))
	seen := make(map[string]int)
	for i := len(order) - 1; i >= 0; i-- {
		a := assessments[order[i]]
		key := respondentKey(a)
		k := seen[key]
		seen[key] = k + 1

		weights[order[i]] = p.baseWeight(a.QuizType) *
			math.Pow(p.RepeatFactor, float64(k)) *
			p.Recency(now.Sub(a.SubmittedAt))
	}

	sources := make([]scoring.Source, 0, len(assessments))
	for _, idx := range order {
		a := assessments[idx]
		sources = append(sources, scoring.Source{
			Scores:         a.Scores,
			Weight:         weights[idx],
			QuizType:       a.QuizType,
			RespondentType: a.RespondentType,
			RespondentID:   a.RespondentID,
		})
	}
	return sources
}
