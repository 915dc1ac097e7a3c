// Package normalize turns the loosely shaped records returned by the B2B
// commerce API (legacy REST fields, GraphQL connections, numeric status
// codes, epoch or ISO dates) into the stable shapes served to the portal UI.
//
// Nothing in this package returns an error: missing or malformed fields
// degrade to zero amounts, "N/A" names, default status labels and nil dates.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record is an upstream object as decoded from JSON.
type Record = map[string]interface{}

// NotAvailable is the placeholder for names with no usable source field.
const NotAvailable = "N/A"

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1e11

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Lookup resolves a dotted path such as "details.header.costLines".
func Lookup(rec Record, path string) interface{} {
	if rec == nil {
		return nil
	}

	var current interface{} = rec
	for _, part := range strings.Split(path, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}

		current, ok = node[part]
		if !ok {
			return nil
		}
	}

	return current
}

// First returns the first path whose value is present.
func First(rec Record, paths ...string) interface{} {
	for _, path := range paths {
		if v := Lookup(rec, path); isPresent(v) {
			return v
		}
	}
	return nil
}

// Float reads numbers, numeric strings and {value: ...} money objects.
func Float(v interface{}) (float64, bool) {
	if obj, ok := v.(map[string]interface{}); ok {
		return scalar(obj["value"])
	}
	return scalar(v)
}

func scalar(v interface{}) (float64, bool) {
	var f float64

	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return f, true
}

// Amount is Float with a zero default.
func Amount(v interface{}) float64 {
	f, _ := Float(v)
	return f
}

func Int(v interface{}) (int64, bool) {
	f, ok := scalar(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Str renders scalars as trimmed strings; anything else is "".
func Str(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// Bool accepts booleans, non-zero numbers and "true"/"1"/"yes".
func Bool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y":
			return true
		}
		return false
	default:
		f, ok := scalar(v)
		return ok && f != 0
	}
}

// Time detects epoch seconds, epoch milliseconds and ISO-8601 strings.
func Time(v interface{}) (time.Time, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return time.Time{}, false
		}

		if _, err := strconv.ParseFloat(s, 64); err != nil {
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t.UTC(), true
				}
			}
			return time.Time{}, false
		}
	}

	n, ok := scalar(v)
	if !ok || n <= 0 {
		return time.Time{}, false
	}

	if n < epochMillisThreshold {
		n *= 1000
	}

	return time.UnixMilli(int64(n)).UTC(), true
}

// TimePtr is Time with nil for absent dates.
func TimePtr(v interface{}) *time.Time {
	t, ok := Time(v)
	if !ok {
		return nil
	}
	return &t
}

// Nodes flattens GraphQL connections ({edges: [{node: {...}}]}), {data: [...]}
// envelopes and plain arrays into records. Non-object items are skipped.
func Nodes(v interface{}) []Record {
	switch t := v.(type) {
	case []interface{}:
		out := make([]Record, 0, len(t))
		for _, item := range t {
			rec, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if node, ok := rec["node"].(map[string]interface{}); ok {
				rec = node
			}
			out = append(out, rec)
		}
		return out
	case []Record:
		return t
	case map[string]interface{}:
		if edges, ok := t["edges"]; ok {
			return Nodes(edges)
		}
		if data, ok := t["data"]; ok {
			return Nodes(data)
		}
		if list, ok := t["list"]; ok {
			return Nodes(list)
		}
		return nil
	default:
		return nil
	}
}

// Name joins first and last name, falling back to the first non-empty
// alternative and finally to NotAvailable.
func Name(first, last string, alternatives ...string) string {
	full := strings.Join(strings.Fields(strings.TrimSpace(first)+" "+strings.TrimSpace(last)), " ")
	if full != "" {
		return full
	}

	for _, alt := range alternatives {
		if alt = strings.TrimSpace(alt); alt != "" {
			return alt
		}
	}

	return NotAvailable
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// isPresent treats nil and blank strings as absent; zero numbers are present.
func isPresent(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	default:
		return true
	}
}
