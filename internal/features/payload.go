package features

import (
	"fmt"
	"math"
)

// Payload is the canonical request shape consumed by feature builders: a
// mapping of field names to scalars, text, or collections, produced upstream
// from transcripts, captions, and device sensor metadata.
//
// Accessors are total. A missing or mistyped field yields a zero value so
// builders stay deterministic on partial edge payloads.
type Payload map[string]any

// Float returns the field as a float64, or 0 when missing or non-numeric.
func (p Payload) Float(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Bool returns the field interpreted as a flag feature: 1 for true, 0 otherwise.
func (p Payload) Bool(key string) float64 {
	switch v := p[key].(type) {
	case bool:
		if v {
			return 1
		}
		return 0
	case float64:
		if v != 0 && !math.IsNaN(v) {
			return 1
		}
		return 0
	case int:
		if v != 0 {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Text returns the field as a string, or "" when missing.
func (p Payload) Text(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// Count returns the length of a collection field, or 0 when missing.
func (p Payload) Count(key string) float64 {
	switch v := p[key].(type) {
	case []any:
		return float64(len(v))
	case []string:
		return float64(len(v))
	case []float64:
		return float64(len(v))
	case map[string]any:
		return float64(len(v))
	default:
		return 0
	}
}
