package vin

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// LabelValue is a label or value from a label/value payload. Upstreams send
// strings, numbers, booleans or null; all are read as text, with null, false
// and zero read as empty.
type LabelValue string

func (v *LabelValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*v = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = LabelValue(s)
	case 'n', 'f':
		*v = ""
	case 't':
		*v = "true"
	case '{', '[':
		*v = LabelValue(data)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return err
		}
		if f == 0 {
			*v = ""
		} else {
			*v = LabelValue(strconv.FormatFloat(f, 'f', -1, 64))
		}
	}
	return nil
}

// LabelEntry is one {"label","value"} pair.
type LabelEntry struct {
	Label LabelValue `json:"label"`
	Value LabelValue `json:"value"`
}

// LabelMap maps normalized label keys to their first non-empty value.
type LabelMap map[string]string

// NormalizeLabelKey lowercases label, collapses every run of characters
// outside [a-z0-9] into a single underscore and trims the ends, so
// "Model Year" and "model-year " both become "model_year".
func NormalizeLabelKey(label string) string {
	mapped := strings.Map(func(r rune) rune {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			return r
		}
		return ' '
	}, strings.ToLower(label))
	return strings.Join(strings.Fields(mapped), "_")
}

// BuildLabelMap indexes entries by normalized label. The first non-empty
// value for a key wins; empty keys and empty values are ignored.
func BuildLabelMap(entries []LabelEntry) LabelMap {
	m := make(LabelMap, len(entries))
	for _, e := range entries {
		key := NormalizeLabelKey(string(e.Label))
		val := strings.TrimSpace(string(e.Value))
		if key == "" || val == "" {
			continue
		}
		if _, ok := m[key]; !ok {
			m[key] = val
		}
	}
	return m
}

// Pick returns the value of the first candidate label that has one.
func (m LabelMap) Pick(candidates ...string) string {
	for _, c := range candidates {
		if v := strings.TrimSpace(m[NormalizeLabelKey(c)]); v != "" {
			return v
		}
	}
	return ""
}

// firstNonEmpty returns the first value that is not blank, trimmed.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
