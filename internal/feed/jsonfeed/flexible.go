package jsonfeed

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexibleField can hold a string, a number or a bool. Aggregators disagree
// on how they encode the same value (alt_baro is a number or "ground").
type FlexibleField struct {
	value any
	set   bool
}

// UnmarshalJSON implements custom JSON unmarshaling for FlexibleField
func (f *FlexibleField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = FlexibleField{}
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.value, f.set = num, true
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		f.value, f.set = str, true
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.value, f.set = b, true
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleField", data)
}

// Present reports whether the field was in the object at all
func (f FlexibleField) Present() bool {
	return f.set
}

// Float64 returns the numeric value and whether there was one
func (f FlexibleField) Float64() (float64, bool) {
	switch v := f.value.(type) {
	case float64:
		return v, true
	case string:
		if v == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Int returns the value truncated to an int
func (f FlexibleField) Int() (int, bool) {
	v, ok := f.Float64()
	if !ok || v > math.MaxInt32 || v < math.MinInt32 {
		return 0, false
	}
	return int(v), true
}

// Bool treats non-zero numbers, true and "1" as set
func (f FlexibleField) Bool() (bool, bool) {
	switch v := f.value.(type) {
	case bool:
		return v, true
	case float64:
		return v != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "-1":
			return true, true
		case "0", "false":
			return false, true
		}
	}
	return false, false
}

// String returns the value as a string
func (f FlexibleField) String() string {
	switch v := f.value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
