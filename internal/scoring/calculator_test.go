package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillForQuestion(t *testing.T) {
	tests := []struct {
		name     string
		id       int
		expected Skill
		ok       bool
	}{
		{"first communication question", 1, Communication, true},
		{"last communication question", 3, Communication, true},
		{"first collaboration question", 4, Collaboration, true},
		{"content block", 8, Content, true},
		{"critical thinking block", 12, CriticalThinking, true},
		{"creative innovation block", 13, CreativeInnovation, true},
		{"confidence block", 17, Confidence, true},
		{"literacy block", 21, Literacy, true},
		{"last math question", 24, Math, true},
		{"preference id is not a skill", 25, "", false},
		{"extended id is unmapped", 29, "", false},
		{"zero id", 0, "", false},
		{"negative id", -7, "", false},
		{"absurdly large id", math.MaxInt32, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skill, ok := SkillForQuestion(tt.id)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, skill)
		})
	}
}

func TestPreferenceForQuestion(t *testing.T) {
	expected := []PreferenceField{Engagement, Modality, Social, Interests}
	for i, field := range expected {
		got, ok := PreferenceForQuestion(25 + i)
		assert.True(t, ok)
		assert.Equal(t, field, got)
	}

	_, ok := PreferenceForQuestion(24)
	assert.False(t, ok)
	_, ok = PreferenceForQuestion(29)
	assert.False(t, ok)
}

func TestPointsFromResponse(t *testing.T) {
	tests := []struct {
		name     string
		id       int
		value    Value
		expected float64
	}{
		{"likert 1", 1, Likert(1), 0.0},
		{"likert 2", 1, Likert(2), 0.0},
		{"likert 3", 1, Likert(3), 0.5},
		{"likert 4", 1, Likert(4), 0.5},
		{"likert 5", 1, Likert(5), 1.0},
		{"fractional 4.9 stays mid tier", 1, Likert(4.9), 0.5},
		{"fractional 2.99 stays low tier", 1, Likert(2.99), 0.0},
		{"zero clamps low", 1, Likert(0), 0.0},
		{"six clamps high", 1, Likert(6), 1.0},
		{"negative clamps low", 1, Likert(-1), 0.0},
		{"large negative clamps low", 1, Likert(-5), 0.0},
		{"huge value clamps high", 1, Likert(1e100), 1.0},
		{"positive infinity clamps high", 1, Likert(math.Inf(1)), 1.0},
		{"negative infinity clamps low", 1, Likert(math.Inf(-1)), 0.0},
		{"NaN scores nothing", 1, Likert(math.NaN()), 0.0},
		{"string response scores nothing", 1, Choice("5"), 0.0},
		{"array response scores nothing", 1, MultiChoice([]string{"5"}), 0.0},
		{"malformed response scores nothing", 1, Malformed(), 0.0},
		{"preference question never scores", 25, Likert(5), 0.0},
		{"interests question never scores", 28, MultiChoice([]string{"art"}), 0.0},
		{"extended question never scores", 31, Likert(5), 0.0},
		{"zero id", 0, Likert(5), 0.0},
		{"negative id", -3, Likert(5), 0.0},
		{"absurd id", math.MaxInt64, Likert(5), 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PointsFromResponse(tt.id, tt.value)
			assert.Equal(t, tt.expected, got)
			assert.False(t, math.IsNaN(got))
			assert.False(t, math.IsInf(got, 0))
		})
	}
}

func uniformResponses(value float64) Responses {
	r := Responses{}
	for id := 1; id <= 24; id++ {
		r[id] = Likert(value)
	}
	return r
}

func TestCalculateScores_ScaleEndpoints(t *testing.T) {
	tests := []struct {
		name      string
		responses Responses
		expected  float64
	}{
		{"all fives give maximum", uniformResponses(5), 5.0},
		{"all ones give minimum", uniformResponses(1), 1.0},
		{"all threes give midpoint", uniformResponses(3), 3.0},
		{"no responses give minimum", Responses{}, 1.0},
		{"nil responses give minimum", nil, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := CalculateScores(tt.responses, QuizParentHome, "5-6")
			require.Len(t, v.Skills, SkillCount)
			for _, skill := range Skills() {
				assert.Equal(t, tt.expected, v.Skills[skill], "skill %s", skill)
			}
			assert.Empty(t, v.Preferences)
		})
	}
}

func TestCalculateScores_EndToEnd(t *testing.T) {
	responses := Responses{
		1: Likert(5), 2: Likert(5), 3: Likert(4),
		13: Likert(5), 14: Likert(5), 15: Likert(5),
		22: Likert(2), 23: Likert(3), 24: Likert(2),
	}

	v := CalculateScores(responses, QuizParentHome, "5-6")

	assert.Equal(t, 4.33, v.Skills[Communication])
	assert.Greater(t, v.Skills[Communication], 4.0)
	assert.Equal(t, 5.0, v.Skills[CreativeInnovation])
	assert.Greater(t, v.Skills[CreativeInnovation], 4.5)
	assert.Equal(t, 1.67, v.Skills[Math])
	assert.Less(t, v.Skills[Math], 3.0)
	assert.Equal(t, 1.0, v.Skills[Literacy], "untouched skills default to the minimum")

	strengths, growth := StrengthsAndGrowth(v)
	assert.Contains(t, strengths, string(CreativeInnovation))
	assert.Contains(t, strengths, string(Communication))
	assert.Contains(t, growth, string(Math))
	assert.Equal(t, "Expressive Creator", PersonalityLabel(v))
}

func TestCalculateScores_PreferencePassthrough(t *testing.T) {
	responses := Responses{
		1:  Likert(5),
		10: Likert(3),
		25: Choice("hands-on"),
		26: Choice("creative"),
		27: Choice("small-group"),
		28: MultiChoice([]string{"art", "stories"}),
	}
	withPrefs := CalculateScores(responses, QuizParentHome, "5-6")

	assert.Equal(t, Choice("hands-on"), withPrefs.Preferences[Engagement])
	assert.Equal(t, Choice("creative"), withPrefs.Preferences[Modality])
	assert.Equal(t, Choice("small-group"), withPrefs.Preferences[Social])
	assert.Equal(t, MultiChoice([]string{"art", "stories"}), withPrefs.Preferences[Interests])

	withoutPrefs := CalculateScores(Responses{1: Likert(5), 10: Likert(3)}, QuizParentHome, "5-6")
	assert.Equal(t, withoutPrefs.Skills, withPrefs.Skills)
}

func TestCalculateScores_PreferenceIsCopied(t *testing.T) {
	interests := []string{"art", "stories"}
	v := CalculateScores(Responses{28: MultiChoice(interests)}, QuizGeneral, "")
	v.Preferences[Interests].Choices[0] = "mutated"

	again := CalculateScores(Responses{28: MultiChoice(interests)}, QuizGeneral, "")
	assert.Equal(t, "art", again.Preferences[Interests].Choices[0])
}

func TestCalculateScores_MalformedInputs(t *testing.T) {
	responses := Responses{
		-1:  Likert(5),
		0:   Likert(5),
		1:   Choice("five"),
		2:   Malformed(),
		3:   Likert(math.NaN()),
		4:   Likert(math.Inf(1)),
		5:   Likert(-100),
		6:   MultiChoice(nil),
		29:  Likert(5),
		450: Likert(5),
	}

	v := CalculateScores(responses, "unknown", "99-100")

	for _, skill := range Skills() {
		x := v.Skills[skill]
		assert.GreaterOrEqual(t, x, MinScore)
		assert.LessOrEqual(t, x, MaxScore)
	}
	assert.Equal(t, 1.0, v.Skills[Communication], "non-numeric answers score zero points")
	// 4 -> +Inf (1.0), 5 -> -100 (0), 6 -> malformed (0): mean 1/3
	assert.Equal(t, 2.33, v.Skills[Collaboration])
}

func TestCalculateScores_QuizTypeAndAgeDoNotChangeArithmetic(t *testing.T) {
	responses := Responses{1: Likert(4), 5: Likert(5), 20: Likert(2)}
	base := CalculateScores(responses, QuizParentHome, "5-6")

	for _, quiz := range []QuizType{QuizTeacherClassroom, QuizGeneral, ""} {
		for _, age := range []AgeGroup{"2-4", "7-9", ""} {
			assert.Equal(t, base.Skills, CalculateScores(responses, quiz, age).Skills)
		}
	}
}

func TestCalculateScores_Deterministic(t *testing.T) {
	responses := Responses{}
	for id := -50; id < 200; id++ {
		responses[id] = Likert(float64((id*7)%6 + 1))
	}

	first := CalculateScores(responses, QuizGeneral, "")
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, CalculateScores(responses, QuizGeneral, ""))
	}
}

func TestCalculateScores_LargeInput(t *testing.T) {
	responses := make(Responses, 100000)
	for id := 0; id < 100000; id++ {
		responses[id] = Likert(5)
	}

	v := CalculateScores(responses, QuizGeneral, "")
	for _, skill := range Skills() {
		assert.Equal(t, 5.0, v.Skills[skill])
	}
}

func BenchmarkCalculateScores(b *testing.B) {
	responses := uniformResponses(4)
	responses[25] = Choice("hands-on")
	responses[28] = MultiChoice([]string{"art", "music"})

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = CalculateScores(responses, QuizParentHome, "5-6")
	}
}
