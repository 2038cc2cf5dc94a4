package scoring

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// ValueKind discriminates the shapes a raw response can take.
type ValueKind int

const (
	KindMalformed ValueKind = iota
	KindLikert
	KindChoice
	KindMultiChoice
)

func (k ValueKind) String() string {
	switch k {
	case KindLikert:
		return "likert"
	case KindChoice:
		return "choice"
	case KindMultiChoice:
		return "multi_choice"
	default:
		return "malformed"
	}
}

// Value is a raw response normalised at the boundary. The zero Value is Malformed.
type Value struct {
	Kind    ValueKind
	Number  float64
	Text    string
	Choices []string
}

func Likert(n float64) Value { return Value{Kind: KindLikert, Number: n} }
func Choice(s string) Value  { return Value{Kind: KindChoice, Text: s} }
func Malformed() Value       { return Value{} }

func MultiChoice(items []string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{Kind: KindMultiChoice, Choices: cp}
}

// FiniteNumber returns the Likert value when it is a finite number.
func (v Value) FiniteNumber() (float64, bool) {
	if v.Kind != KindLikert || math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
		return 0, false
	}
	return v.Number, true
}

// Equal compares two values by kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindLikert:
		return v.Number == o.Number || (math.IsNaN(v.Number) && math.IsNaN(o.Number))
	case KindChoice:
		return v.Text == o.Text
	case KindMultiChoice:
		if len(v.Choices) != len(o.Choices) {
			return false
		}
		for i := range v.Choices {
			if v.Choices[i] != o.Choices[i] {
				return false
			}
		}
		return true
	}
	return true
}

// Interface returns the value in its loosely typed JSON shape.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindLikert:
		return v.Number
	case KindChoice:
		return v.Text
	case KindMultiChoice:
		return v.Choices
	}
	return nil
}

// MarshalJSON writes the raw response shape. Non-finite numbers become null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == KindLikert {
		if _, ok := v.FiniteNumber(); !ok {
			return []byte("null"), nil
		}
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON never fails: anything that is not a number, string or
// string array decodes to Malformed.
func (v *Value) UnmarshalJSON(data []byte) error {
	*v = decodeValue(data)
	return nil
}

func decodeValue(data []byte) Value {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Malformed()
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Malformed()
		}
		return Choice(s)
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return Malformed()
		}
		if items == nil {
			items = []string{}
		}
		return Value{Kind: KindMultiChoice, Choices: items}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			// ParseFloat reports overflow with ±Inf, which still clamps.
			if math.IsInf(n, 0) {
				return Likert(n)
			}
			return Malformed()
		}
		return Likert(n)
	}
	return Malformed()
}

// Responses maps question ids to raw response values for one submission.
type Responses map[int]Value

// UnmarshalJSON decodes a JSON object keyed by question id. Keys that are
// not integers are dropped and a non-object payload yields an empty map.
func (r *Responses) UnmarshalJSON(data []byte) error {
	out := Responses{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		for k, msg := range raw {
			id, err := strconv.Atoi(k)
			if err != nil {
				continue
			}
			out[id] = decodeValue(msg)
		}
	}
	*r = out
	return nil
}

// MarshalJSON writes the responses keyed by decimal question id.
func (r Responses) MarshalJSON() ([]byte, error) {
	raw := make(map[string]Value, len(r))
	for id, v := range r {
		raw[strconv.Itoa(id)] = v
	}
	return json.Marshal(raw)
}
