package scoring

import (
	"math"
	"sort"
)

// Confidence components, in points out of 100.
const (
	confidenceBase         = 30.0
	agreementBonusMax      = 25.0
	professionalBonus      = 15.0
	completenessBonusMax   = 20.0
	corroborationPerSource = 5.0
	corroborationBonusMax  = 10.0

	// meanDiffForZeroAgreement is the mean pairwise gap at which the agreement bonus vanishes.
	meanDiffForZeroAgreement = 2.0

	moderateConflictGap = 1.5
	severeConflictGap   = 3.0
)

// Severity grades a disagreement between sources on one skill.
type Severity string

const (
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Conflict records the largest disagreement between two sources on a skill.
type Conflict struct {
	Skill         Skill    `json:"skill"`
	MaxDifference float64  `json:"maxDifference"`
	Severity      Severity `json:"severity"`
	Respondents   []string `json:"respondents,omitempty"`
}

// AgreementReport is the structured confidence result. Severe conflicts
// set RequiresReview rather than failing the computation.
type AgreementReport struct {
	Confidence     float64            `json:"confidence"`
	Agreement      string             `json:"agreement"`
	MeanDifference float64            `json:"meanDifference"`
	Conflicts      []Conflict         `json:"conflicts"`
	RequiresReview bool               `json:"requiresReview"`
	SubScores      map[string]float64 `json:"subScores"`
}

// Assess estimates how trustworthy a consolidation of sources is.
//
// Confidence starts at a base of 30 and gains an agreement bonus (smaller
// mean pairwise gap on shared skills), a bonus for any professional source,
// a completeness bonus from the mean fraction of skills each source
// populates, and a corroboration bonus per additional source. The result is
// clamped to [0, 100]; no usable source means 0.
func Assess(sources []Source) AgreementReport {
	report := AgreementReport{
		Agreement: "n/a",
		Conflicts: []Conflict{},
		SubScores: map[string]float64{},
	}
	valid := validSources(sources)
	if len(valid) == 0 {
		return report
	}

	var (
		diffSum   float64
		diffPairs int
	)
	for _, skill := range skillOrder {
		c, sum, pairs := compareSkill(valid, skill)
		diffSum += sum
		diffPairs += pairs
		if c != nil {
			report.Conflicts = append(report.Conflicts, *c)
			if c.Severity == SeveritySevere {
				report.RequiresReview = true
			}
		}
	}

	agreement := 0.0
	if diffPairs > 0 {
		mean := diffSum / float64(diffPairs)
		report.MeanDifference = round2(mean)
		agreement = agreementBonusMax * math.Max(0, 1-mean/meanDiffForZeroAgreement)
		switch {
		case mean < 0.5:
			report.Agreement = "high"
		case mean < 1.0:
			report.Agreement = "moderate"
		default:
			report.Agreement = "low"
		}
	}

	professional := 0.0
	for _, s := range valid {
		if s.IsProfessional() {
			professional = professionalBonus
			break
		}
	}

	coverage := 0.0
	for _, s := range valid {
		coverage += float64(s.Scores.Populated()) / float64(SkillCount)
	}
	completeness := completenessBonusMax * coverage / float64(len(valid))

	corroboration := math.Min(corroborationBonusMax, corroborationPerSource*float64(len(valid)-1))

	total := confidenceBase + agreement + professional + completeness + corroboration
	if !isFinite(total) {
		total = confidenceBase
	}
	report.Confidence = round1(clip(total, 0, 100))
	report.SubScores = map[string]float64{
		"base":          confidenceBase,
		"agreement":     round2(agreement),
		"professional":  professional,
		"completeness":  round2(completeness),
		"corroboration": corroboration,
	}

	sort.SliceStable(report.Conflicts, func(i, j int) bool {
		return report.Conflicts[i].MaxDifference > report.Conflicts[j].MaxDifference
	})
	return report
}

// compareSkill returns the sum and count of pairwise gaps for a skill and,
// when the widest gap is large enough, the conflict it represents.
func compareSkill(sources []Source, skill Skill) (*Conflict, float64, int) {
	type point struct {
		score      float64
		respondent string
	}
	points := make([]point, 0, len(sources))
	for _, s := range sources {
		if x, ok := s.Scores.bounded(skill); ok {
			points = append(points, point{score: x, respondent: respondentLabel(s)})
		}
	}
	if len(points) < 2 {
		return nil, 0, 0
	}

	var (
		sum    float64
		pairs  int
		widest float64
		lo, hi int
	)
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			d := math.Abs(points[i].score - points[j].score)
			sum += d
			pairs++
			if d > widest {
				widest, lo, hi = d, i, j
			}
		}
	}

	var severity Severity
	switch {
	case widest >= severeConflictGap:
		severity = SeveritySevere
	case widest >= moderateConflictGap:
		severity = SeverityModerate
	default:
		return nil, sum, pairs
	}
	return &Conflict{
		Skill:         skill,
		MaxDifference: round2(widest),
		Severity:      severity,
		Respondents:   []string{points[lo].respondent, points[hi].respondent},
	}, sum, pairs
}

func respondentLabel(s Source) string {
	if s.RespondentID != "" {
		return s.RespondentID
	}
	if s.RespondentType != "" {
		return string(s.RespondentType)
	}
	return string(s.QuizType)
}

// ConfidenceScore returns only the 0-100 confidence score for sources.
func ConfidenceScore(sources []Source) float64 { return Assess(sources).Confidence }

// DetectConflicts returns the moderate and severe disagreements between sources.
func DetectConflicts(sources []Source) []Conflict { return Assess(sources).Conflicts }
