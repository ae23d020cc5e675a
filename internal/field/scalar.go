package field

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Text is a string value.
type Text struct {
	Required  bool
	MaxLength int
}

func (f Text) Clean(raw any) (any, error) {
	var s string
	switch v := raw.(type) {
	case nil:
	case string:
		s = v
	default:
		return nil, Invalid("Enter a valid text value.")
	}
	if f.Required && strings.TrimSpace(s) == "" {
		return nil, Invalid(msgRequired)
	}
	if f.MaxLength > 0 && utf8.RuneCountInString(s) > f.MaxLength {
		return nil, Invalid("Ensure this value has at most %d characters.", f.MaxLength)
	}
	return s, nil
}

func (f Text) ToNative(stored any, _ Resolver) (any, error) {
	s, _ := stored.(string)
	return s, nil
}

// Number is a float64 value, optionally restricted to integers or a range.
type Number struct {
	Required bool
	Integer  bool
	Min      *float64
	Max      *float64
}

func (f Number) Clean(raw any) (any, error) {
	var n float64
	switch v := raw.(type) {
	case nil:
		if f.Required {
			return nil, Invalid(msgRequired)
		}
		return nil, nil
	case float64:
		n = v
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, Invalid("Enter a number.")
		}
		n = parsed
	case string:
		if strings.TrimSpace(v) == "" {
			if f.Required {
				return nil, Invalid(msgRequired)
			}
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, Invalid("Enter a number.")
		}
		n = parsed
	default:
		return nil, Invalid("Enter a number.")
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, Invalid("Enter a number.")
	}
	if f.Integer && math.Trunc(n) != n {
		return nil, Invalid("Enter a whole number.")
	}
	if f.Min != nil && n < *f.Min {
		return nil, Invalid("Ensure this value is greater than or equal to %v.", *f.Min)
	}
	if f.Max != nil && n > *f.Max {
		return nil, Invalid("Ensure this value is less than or equal to %v.", *f.Max)
	}
	return n, nil
}

func (f Number) ToNative(stored any, _ Resolver) (any, error) {
	if stored == nil {
		return nil, nil
	}
	n, ok := stored.(float64)
	if !ok {
		return nil, nil
	}
	// whole numbers past the int64 range stay float64
	if f.Integer && n >= math.MinInt64 && n < math.MaxInt64 {
		return int64(n), nil
	}
	return n, nil
}

// Bool is a checkbox. A missing value is false.
type Bool struct{}

func (Bool) Clean(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(v) {
		case "", "0", "false", "off":
			return false, nil
		case "1", "true", "on":
			return true, nil
		}
	case float64:
		return v != 0, nil
	}
	return nil, Invalid("Enter a valid boolean.")
}

func (Bool) ToNative(stored any, _ Resolver) (any, error) {
	b, _ := stored.(bool)
	return b, nil
}

// Choice is a string restricted to a fixed list.
type Choice struct {
	Required bool
	Choices  []string
}

func (f Choice) Clean(raw any) (any, error) {
	s, ok := raw.(string)
	if raw != nil && !ok {
		return nil, Invalid("Select a valid choice.")
	}
	if s == "" {
		if f.Required {
			return nil, Invalid(msgRequired)
		}
		return "", nil
	}
	if !slices.Contains(f.Choices, s) {
		return nil, Invalid("Select a valid choice. %s is not one of the available choices.", s)
	}
	return s, nil
}

func (f Choice) ToNative(stored any, _ Resolver) (any, error) {
	s, _ := stored.(string)
	return s, nil
}
