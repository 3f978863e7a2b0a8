package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Float is a float64 whose JSON form tolerates the sentinel values used by the
// statistics documents. Finite values are plain JSON numbers; +Inf, -Inf and
// NaN are written as the strings "Infinity", "-Infinity" and "NaN".
type Float float64

// Inf returns positive or negative infinity as a Float.
func Inf(sign int) Float {
	return Float(math.Inf(sign))
}

// IsFinite reports whether f is neither infinite nor NaN.
func (f Float) IsFinite() bool {
	v := float64(f)
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *Float) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case "Infinity", "+Infinity", "inf", "+inf":
			*f = Inf(1)
		case "-Infinity", "-inf":
			*f = Inf(-1)
		case "NaN", "nan":
			*f = Float(math.NaN())
		default:
			return fmt.Errorf("invalid float sentinel %q", s)
		}
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid float %q: %w", data, err)
	}
	*f = Float(v)
	return nil
}
