package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseAmount parses a decimal amount as typed by a user. Both '.' and ','
// are accepted as decimal separator.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	a := Amount(f)
	if err := a.Validate(); err != nil {
		return 0, err
	}
	return a, nil
}

// String formats the amount with two decimals; NaN renders as "NaN".
func (a Amount) String() string {
	if a.IsNaN() {
		return "NaN"
	}
	return strconv.FormatFloat(float64(a), 'f', 2, 64)
}

// MarshalJSON writes non-finite amounts as null.
func (a Amount) MarshalJSON() ([]byte, error) {
	f := float64(a)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts numbers and numeric strings. Anything else decodes to
// NaN instead of failing the whole payload.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil && n != "" {
		if f, err := n.Float64(); err == nil {
			*a = Amount(f)
			return nil
		}
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*a = Amount(f)
			return nil
		}
	}
	*a = Amount(math.NaN())
	return nil
}
