package scoring

import "sort"

// FallbackLabel is returned when no curated combination applies.
const FallbackLabel = "Unique Learner"

const (
	strengthThreshold = 4.0
	growthThreshold   = 3.0
	relativeTopN      = 2
)

// personalityLabels is keyed "primary-secondary" in declaration order;
// lookups try both orders.
var personalityLabels = map[string]string{
	"Communication-Collaboration":           "Social Communicator",
	"Communication-Content":                 "Knowledgeable Storyteller",
	"Communication-Critical Thinking":       "Persuasive Thinker",
	"Communication-Creative Innovation":     "Expressive Creator",
	"Communication-Confidence":              "Natural Leader",
	"Communication-Literacy":                "Budding Wordsmith",
	"Communication-Math":                    "Clear Explainer",
	"Collaboration-Content":                 "Team Scholar",
	"Collaboration-Critical Thinking":       "Collaborative Problem Solver",
	"Collaboration-Creative Innovation":     "Creative Collaborator",
	"Collaboration-Confidence":              "Team Captain",
	"Collaboration-Literacy":                "Story Circle Leader",
	"Collaboration-Math":                    "Team Strategist",
	"Content-Critical Thinking":             "Curious Investigator",
	"Content-Creative Innovation":           "Imaginative Explorer",
	"Content-Confidence":                    "Confident Learner",
	"Content-Literacy":                      "Avid Reader",
	"Content-Math":                          "Young Scientist",
	"Critical Thinking-Creative Innovation": "Creative Problem Solver",
	"Critical Thinking-Confidence":          "Bold Thinker",
	"Critical Thinking-Literacy":            "Analytical Reader",
	"Critical Thinking-Math":                "Logical Thinker",
	"Creative Innovation-Confidence":        "Fearless Creator",
	"Creative Innovation-Literacy":          "Creative Storyteller",
	"Creative Innovation-Math":              "Inventive Builder",
	"Confidence-Literacy":                   "Confident Reader",
	"Confidence-Math":                       "Math Champion",
	"Literacy-Math":                         "Academic All-Star",
}

// Insights is the derived narrative for a score vector.
type Insights struct {
	Personality string   `json:"personality"`
	Strengths   []string `json:"strengths"`
	GrowthAreas []string `json:"growthAreas"`
}

type rankedSkill struct {
	skill Skill
	score float64
}

// rank returns the finite skills sorted by score descending; ties keep
// declaration order.
func rank(v ScoreVector) []rankedSkill {
	out := make([]rankedSkill, 0, SkillCount)
	for _, s := range skillOrder {
		if x, ok := v.Score(s); ok {
			out = append(out, rankedSkill{skill: s, score: x})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

// PersonalityLabel names the learner after their two strongest skills.
func PersonalityLabel(v ScoreVector) string {
	ranked := rank(v)
	if len(ranked) < 2 {
		return FallbackLabel
	}
	primary, secondary := string(ranked[0].skill), string(ranked[1].skill)
	if label, ok := personalityLabels[primary+"-"+secondary]; ok {
		return label
	}
	if label, ok := personalityLabels[secondary+"-"+primary]; ok {
		return label
	}
	return FallbackLabel
}

// StrengthsAndGrowth lists skills scoring >= 4.0 as strengths and < 3.0 as
// growth areas. When nothing reaches the strength threshold the top and
// bottom two skills of the ranking are used instead, so a compressed score
// distribution still yields something to report.
func StrengthsAndGrowth(v ScoreVector) (strengths, growthAreas []string) {
	strengths, growthAreas = []string{}, []string{}
	ranked := rank(v)
	if len(ranked) == 0 {
		return strengths, growthAreas
	}

	for _, r := range ranked {
		if r.score >= strengthThreshold {
			strengths = append(strengths, string(r.skill))
		}
	}
	for i := len(ranked) - 1; i >= 0; i-- {
		if ranked[i].score < growthThreshold {
			growthAreas = append(growthAreas, string(ranked[i].skill))
		}
	}
	if len(strengths) > 0 {
		return strengths, growthAreas
	}

	n := relativeTopN
	if n > len(ranked) {
		n = len(ranked)
	}
	growthAreas = growthAreas[:0]
	for i := 0; i < n; i++ {
		strengths = append(strengths, string(ranked[i].skill))
		growthAreas = append(growthAreas, string(ranked[len(ranked)-1-i].skill))
	}
	return strengths, growthAreas
}

// Describe bundles the personality label with strengths and growth areas.
func Describe(v ScoreVector) Insights {
	strengths, growth := StrengthsAndGrowth(v)
	return Insights{
		Personality: PersonalityLabel(v),
		Strengths:   strengths,
		GrowthAreas: growth,
	}
}
