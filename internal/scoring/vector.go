package scoring

import (
	"bytes"
	"encoding/json"
	"math"
)

const (
	MinScore = 1.0
	MaxScore = 5.0
	// NeutralScore is the consolidation default when no source supplies a skill.
	NeutralScore = 3.0
)

// ScoreVector holds the eight skill scores plus any captured preferences.
// Vectors produced by this package always carry all eight skills; vectors
// decoded from callers may be partial.
type ScoreVector struct {
	Skills      map[Skill]float64
	Preferences map[PreferenceField]Value
}

func newVector(fill float64) ScoreVector {
	v := ScoreVector{
		Skills:      make(map[Skill]float64, SkillCount),
		Preferences: make(map[PreferenceField]Value),
	}
	for _, s := range skillOrder {
		v.Skills[s] = fill
	}
	return v
}

// DefaultScoringVector is the all-1.0 vector the calculator returns for no data.
func DefaultScoringVector() ScoreVector { return newVector(MinScore) }

// NeutralVector is the all-3.0 vector consolidation returns for no data.
func NeutralVector() ScoreVector { return newVector(NeutralScore) }

// Score returns the finite score for s.
func (v ScoreVector) Score(s Skill) (float64, bool) {
	x, ok := v.Skills[s]
	if !ok || !isFinite(x) {
		return 0, false
	}
	return x, true
}

// bounded returns the finite score for s clamped to the valid score range.
func (v ScoreVector) bounded(s Skill) (float64, bool) {
	x, ok := v.Score(s)
	if !ok {
		return 0, false
	}
	return clip(x, MinScore, MaxScore), true
}

// Populated counts the skills with a finite score.
func (v ScoreVector) Populated() int {
	n := 0
	for _, s := range skillOrder {
		if _, ok := v.Score(s); ok {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (v ScoreVector) Clone() ScoreVector {
	out := ScoreVector{
		Skills:      make(map[Skill]float64, len(v.Skills)),
		Preferences: make(map[PreferenceField]Value, len(v.Preferences)),
	}
	for k, x := range v.Skills {
		out.Skills[k] = x
	}
	for k, p := range v.Preferences {
		if p.Kind == KindMultiChoice {
			p = MultiChoice(p.Choices)
		}
		out.Preferences[k] = p
	}
	return out
}

// MarshalJSON flattens skills and preferences into one object. Non-finite
// skill scores are omitted since JSON cannot carry them.
func (v ScoreVector) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(v.Skills)+len(v.Preferences))
	for k, x := range v.Skills {
		if isFinite(x) {
			flat[string(k)] = x
		}
	}
	for k, p := range v.Preferences {
		flat[string(k)] = p
	}
	return json.Marshal(flat)
}

// UnmarshalJSON accepts partial and malformed vectors: skill entries that
// are not numbers are dropped and unknown keys are ignored.
func (v *ScoreVector) UnmarshalJSON(data []byte) error {
	out := ScoreVector{
		Skills:      make(map[Skill]float64),
		Preferences: make(map[PreferenceField]Value),
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		for k, msg := range raw {
			if s := Skill(k); s.Valid() {
				if x, ok := decodeValue(bytes.TrimSpace(msg)).FiniteNumber(); ok {
					out.Skills[s] = x
				}
				continue
			}
			if p := PreferenceField(k); p.Valid() {
				out.Preferences[p] = decodeValue(msg)
			}
		}
	}
	*v = out
	return nil
}

func isFinite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func round2(x float64) float64 { return math.Round(x*100) / 100 }

func round1(x float64) float64 { return math.Round(x*10) / 10 }

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
