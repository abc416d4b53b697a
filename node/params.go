package node

import (
	"time"

	"github.com/spf13/cast"
)

// Params is the free-form parameter bag a topology passes to a node
// implementation. Values come from YAML, so typed access goes through
// lenient casts.
type Params map[string]any

// String returns the string value for key, or fallback if absent.
func (p Params) String(key, fallback string) string {
	v, ok := p[key]
	if !ok {
		return fallback
	}
	return cast.ToString(v)
}

// Int returns the integer value for key, or fallback if absent.
func (p Params) Int(key string, fallback int) int {
	v, ok := p[key]
	if !ok {
		return fallback
	}
	return cast.ToInt(v)
}

// Float returns the float value for key, or fallback if absent.
func (p Params) Float(key string, fallback float64) float64 {
	v, ok := p[key]
	if !ok {
		return fallback
	}
	return cast.ToFloat64(v)
}

// Duration returns the duration value for key (number of seconds or a
// duration string), or fallback if absent.
func (p Params) Duration(key string, fallback time.Duration) time.Duration {
	v, ok := p[key]
	if !ok {
		return fallback
	}
	switch tv := v.(type) {
	case int, int64, float64:
		return time.Duration(cast.ToFloat64(tv) * float64(time.Second))
	default:
		d, err := time.ParseDuration(cast.ToString(v))
		if err != nil {
			return fallback
		}
		return d
	}
}

// Strings returns the string-slice value for key, or nil if absent.
func (p Params) Strings(key string) []string {
	v, ok := p[key]
	if !ok {
		return nil
	}
	return cast.ToStringSlice(v)
}
