package scoring

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Value
	}{
		{"integer", `5`, Likert(5)},
		{"fraction", `3.5`, Likert(3.5)},
		{"negative", `-2`, Likert(-2)},
		{"exponent", `1e2`, Likert(100)},
		{"string", `"hands-on"`, Choice("hands-on")},
		{"numeric string stays text", `"5"`, Choice("5")},
		{"string array", `["art","music"]`, MultiChoice([]string{"art", "music"})},
		{"empty array", `[]`, MultiChoice(nil)},
		{"mixed array", `["art",3]`, Malformed()},
		{"object", `{"a":1}`, Malformed()},
		{"boolean", `true`, Malformed()},
		{"null", `null`, Malformed()},
		{"empty", ``, Malformed()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeValue([]byte(tt.input))
			assert.True(t, tt.expected.Equal(got), "got %+v", got)
		})
	}
}

func TestValue_OverflowClampsToInfinity(t *testing.T) {
	v := decodeValue([]byte(`1e400`))
	require.Equal(t, KindLikert, v.Kind)
	assert.True(t, math.IsInf(v.Number, 1))
	assert.Equal(t, 1.0, PointsFromResponse(1, v))

	v = decodeValue([]byte(`-1e400`))
	require.Equal(t, KindLikert, v.Kind)
	assert.True(t, math.IsInf(v.Number, -1))
	assert.Equal(t, 0.0, PointsFromResponse(1, v))
}

func TestValue_MarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected string
	}{
		{"likert", Likert(4), `4`},
		{"choice", Choice("visual"), `"visual"`},
		{"multi choice", MultiChoice([]string{"a", "b"}), `["a","b"]`},
		{"malformed", Malformed(), `null`},
		{"NaN", Likert(math.NaN()), `null`},
		{"infinity", Likert(math.Inf(1)), `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestResponses_UnmarshalJSON(t *testing.T) {
	var r Responses
	err := json.Unmarshal([]byte(`{
		"1": 5,
		"2": "4",
		"3": null,
		"25": "hands-on",
		"28": ["art", "stories"],
		"abc": 5,
		"-4": 2,
		"1.5": 3
	}`), &r)
	require.NoError(t, err)

	assert.Len(t, r, 6)
	assert.Equal(t, Likert(5), r[1])
	assert.Equal(t, Choice("4"), r[2])
	assert.Equal(t, KindMalformed, r[3].Kind)
	assert.Equal(t, Choice("hands-on"), r[25])
	assert.Equal(t, MultiChoice([]string{"art", "stories"}), r[28])
	assert.Equal(t, Likert(2), r[-4])
}

func TestResponses_UnmarshalNonObject(t *testing.T) {
	for _, input := range []string{`[]`, `"x"`, `42`, `true`} {
		var r Responses
		require.NoError(t, json.Unmarshal([]byte(input), &r), input)
		assert.NotNil(t, r, input)
		assert.Empty(t, r, input)
	}
}

func TestResponses_RoundTripScoresTheSame(t *testing.T) {
	original := Responses{1: Likert(5), 2: Likert(3), 13: Likert(4), 26: Choice("visual")}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Responses
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t,
		CalculateScores(original, QuizGeneral, ""),
		CalculateScores(decoded, QuizGeneral, ""))
}

func TestScoreVector_JSON(t *testing.T) {
	v := DefaultScoringVector()
	v.Skills[Math] = 4.25
	v.Skills[Literacy] = math.NaN()
	v.Preferences[Modality] = Choice("visual")

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var flat map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, 4.25, flat["Math"])
	assert.Equal(t, "visual", flat["Modality"])
	assert.NotContains(t, flat, "Literacy")

	var decoded ScoreVector
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 4.25, decoded.Skills[Math])
	assert.Len(t, decoded.Skills, SkillCount-1)
	assert.Equal(t, Choice("visual"), decoded.Preferences[Modality])
}

func TestScoreVector_UnmarshalPartial(t *testing.T) {
	var v ScoreVector
	err := json.Unmarshal([]byte(`{
		"Communication": 4.5,
		"Math": "high",
		"Literacy": null,
		"Unknown": 3,
		"Social": "solo"
	}`), &v)
	require.NoError(t, err)

	assert.Equal(t, map[Skill]float64{Communication: 4.5}, v.Skills)
	assert.Equal(t, 1, v.Populated())
	assert.Equal(t, Choice("solo"), v.Preferences[Social])
}

func TestScoreVector_Clone(t *testing.T) {
	v := NeutralVector()
	v.Preferences[Interests] = MultiChoice([]string{"lego"})

	c := v.Clone()
	c.Skills[Math] = 5
	c.Preferences[Interests].Choices[0] = "dinosaurs"

	assert.Equal(t, NeutralScore, v.Skills[Math])
	assert.Equal(t, "lego", v.Preferences[Interests].Choices[0])
}
