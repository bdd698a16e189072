package model

// Documented Event metadata keys.
const (
	MetaAverage   = "average"   // float64, moving average of the signal (0-100)
	MetaFrom      = "from"      // string, previous listener state
	MetaTo        = "to"        // string, new listener state
	MetaCores     = "cores"     // []float64, per-core load (0-100)
	MetaThreshold = "threshold" // float64, threshold crossed (the warning threshold on recovery)
)

// Documented Intervention parameter keys.
const (
	ParamDuration = "duration" // float64 seconds
	ParamPattern  = "pattern"  // string, e.g. "4-7-8"
	ParamQuestion = "question" // string
	ParamQuote    = "quote"    // string
)

// Metadata carries JSON-like diagnostic values keyed by the Meta* constants.
// Values are limited to float64, string, bool and []float64 so that a cloned
// map shares nothing mutable with its source.
type Metadata map[string]any

// Params are intervention parameters keyed by the Param* constants; same value rules as Metadata.
type Params = Metadata

// Float returns the value at key as float64. Integer values are widened.
func (m Metadata) Float(key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// String returns the value at key as a string.
func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key].(string)
	return v, ok
}

// Floats returns the value at key as a float slice.
func (m Metadata) Floats(key string) ([]float64, bool) {
	switch v := m[key].(type) {
	case []float64:
		return v, true
	case []any:
		out := make([]float64, 0, len(v))
		for _, x := range v {
			f, ok := x.(float64)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	}
	return nil, false
}

// Clone returns a deep copy of m; nil stays nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		switch tv := v.(type) {
		case []float64:
			out[k] = append([]float64(nil), tv...)
		case []any:
			out[k] = append([]any(nil), tv...)
		default:
			out[k] = v
		}
	}
	return out
}
