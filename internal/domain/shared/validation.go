package shared

import (
	"math"
	"strconv"
	"strings"
)

// Score bounds. Values outside [MinScore, MaxScore] are invalid.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// TermLength is the number of digits in a term code such as "1141".
const TermLength = 4

// RequiredKeys returns the keys that are absent from record or mapped to nil,
// in the order they were requested.
func RequiredKeys(record map[string]any, keys ...string) []string {
	var missing []string
	for _, key := range keys {
		if v, ok := record[key]; !ok || v == nil {
			missing = append(missing, key)
		}
	}
	return missing
}

// RequireKeys is RequiredKeys reported as a validation error.
func RequireKeys(domain, op string, record map[string]any, keys ...string) error {
	if missing := RequiredKeys(record, keys...); len(missing) > 0 {
		return NewValidationError(domain, op, "missing required keys", missing...)
	}
	return nil
}

// ParseScore parses a non-empty score string and checks its range.
// ok is false for non-numeric, non-finite or out-of-range input.
func ParseScore(s string) (value float64, ok bool) {
	v, ok := parseFinite(s)
	if !ok {
		return 0, false
	}
	if v < MinScore || v > MaxScore {
		return v, false
	}
	return v, true
}

// ValidateScoreValue accepts the empty string (unset) or a number in [0, 100].
func ValidateScoreValue(field, s string) error {
	if s == "" {
		return nil
	}
	if _, ok := parseFinite(s); !ok {
		return NewValidationError("score", "Validate", "score must be a valid number", field)
	}
	if _, ok := ParseScore(s); !ok {
		return NewValidationError("score", "Validate", "score must be between 0 and 100", field)
	}
	return nil
}

// parseFinite rejects NaN and the infinities, which ParseFloat accepts.
func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ValidateTerm checks that a term code is exactly four ASCII digits.
func ValidateTerm(term string) error {
	if len(term) != TermLength {
		return NewValidationError("term", "Validate", "term must be 4 digits", "term")
	}
	for i := 0; i < len(term); i++ {
		if term[i] < '0' || term[i] > '9' {
			return NewValidationError("term", "Validate", "term must contain only digits", "term")
		}
	}
	return nil
}
