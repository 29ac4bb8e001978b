package tiktok

import (
	"strings"

	"github.com/spf13/cast"
)

// The marketplace API uses several optional or alternate field names for the
// same concept. These extractors centralize the fallback order instead of
// scattering nullable chains through the engines.

// fieldString returns the first non-empty string among the given keys.
func fieldString(payload map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			if s := cast.ToString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// fieldInt returns the first non-zero integer among the given keys.
func fieldInt(payload map[string]interface{}, keys ...string) int {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			if n := cast.ToInt(v); n != 0 {
				return n
			}
		}
	}
	return 0
}

// fieldInt64 returns the first non-zero int64 among the given keys.
func fieldInt64(payload map[string]interface{}, keys ...string) int64 {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			if n := cast.ToInt64(v); n != 0 {
				return n
			}
		}
	}
	return 0
}

// amountValue normalizes the provider's money shapes to a float. The field
// may be a bare numeric string or an object {"amount": ..., "currency": ...};
// nil yields 0.
func amountValue(v interface{}) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case map[string]interface{}:
		if inner, ok := val["amount"]; ok {
			return cast.ToFloat64(inner)
		}
		return 0
	default:
		return cast.ToFloat64(val)
	}
}

// fieldAmount applies amountValue over the first present key.
func fieldAmount(payload map[string]interface{}, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := payload[k]; ok && v != nil {
			return amountValue(v)
		}
	}
	return 0
}

// fieldMap returns a nested object, or nil.
func fieldMap(payload map[string]interface{}, key string) map[string]interface{} {
	if v, ok := payload[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

// fieldSlice returns a nested array of objects.
func fieldSlice(payload map[string]interface{}, key string) []map[string]interface{} {
	raw, ok := payload[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

const phoneMask = '*'

// maskPhone produces the stored representation of a customer phone number.
// If the provider already masked it, only formatting is normalized; otherwise
// everything but the last four digits is masked. Raw numbers are never the
// stored representation.
func maskPhone(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.ContainsRune(trimmed, phoneMask) {
		// Already masked upstream; collapse internal whitespace only.
		return strings.Join(strings.Fields(trimmed), "")
	}
	var digits []rune
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 4 {
		return string(digits)
	}
	masked := make([]rune, len(digits))
	for i := range digits {
		if i < len(digits)-4 {
			masked[i] = phoneMask
		} else {
			masked[i] = digits[i]
		}
	}
	return string(masked)
}
