package scorecard

import (
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
)

// Decode parses a provider document. Anything that is not a JSON object yields nil.
func Decode(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var doc map[string]any
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	return doc
}

// Lookup walks a dotted path through nested objects. Numeric segments index into arrays.
func Lookup(doc map[string]any, path string) any {
	if doc == nil || path == "" {
		return nil
	}
	var current any = doc
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil
			}
			current = value
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			current = node[idx]
		default:
			return nil
		}
	}
	return current
}

// StringValue renders scalars as trimmed text. Objects and arrays render as "".
func StringValue(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		return ""
	}
}

func firstString(doc map[string]any, paths ...string) string {
	for _, path := range paths {
		if value := StringValue(Lookup(doc, path)); value != "" {
			return value
		}
	}
	return ""
}

func firstMap(doc map[string]any, paths ...string) map[string]any {
	for _, path := range paths {
		if value, ok := Lookup(doc, path).(map[string]any); ok && len(value) > 0 {
			return value
		}
	}
	return nil
}

func firstSlice(doc map[string]any, paths ...string) []any {
	for _, path := range paths {
		if value, ok := Lookup(doc, path).([]any); ok && len(value) > 0 {
			return value
		}
	}
	return nil
}

func firstTime(doc map[string]any, paths ...string) *time.Time {
	for _, path := range paths {
		if parsed := parseTimestamp(Lookup(doc, path)); parsed != nil {
			return parsed
		}
	}
	return nil
}

// firstNumber returns the first path holding a numeric value. ok is false when none did.
func firstNumber(doc map[string]any, paths ...string) (float64, bool) {
	for _, path := range paths {
		if value, ok := asFloat64(Lookup(doc, path)); ok {
			return value, true
		}
	}
	return 0, false
}

func asFloat64(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTimestamp accepts epoch seconds or milliseconds (as numbers or digit strings) and common date layouts.
func parseTimestamp(value any) *time.Time {
	switch typed := value.(type) {
	case float64:
		return fromEpoch(int64(typed))
	case int64:
		return fromEpoch(typed)
	case int:
		return fromEpoch(int64(typed))
	case string:
		text := strings.TrimSpace(typed)
		if text == "" {
			return nil
		}
		if epoch, err := strconv.ParseInt(text, 10, 64); err == nil {
			return fromEpoch(epoch)
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, text); err == nil {
				v := parsed.UTC()
				return &v
			}
		}
	}
	return nil
}

func fromEpoch(epoch int64) *time.Time {
	var v time.Time
	switch {
	case epoch > 1e12:
		v = time.UnixMilli(epoch).UTC()
	case epoch > 1e9:
		v = time.Unix(epoch, 0).UTC()
	default:
		return nil
	}
	return &v
}
