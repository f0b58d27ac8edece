package process

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Variables is the instance-scoped variable map. Values are arbitrary, but
// the typed getters understand the encodings produced by handlers and
// external task completions (native Go values and their string forms).
type Variables map[string]any

// Clone returns a shallow copy of the variable map.
func (v Variables) Clone() Variables {
	if v == nil {
		return Variables{}
	}
	c := make(Variables, len(v))
	for k, val := range v {
		c[k] = val
	}
	return c
}

// Merge copies every entry of other into v, overwriting existing keys.
func (v Variables) Merge(other Variables) {
	for k, val := range other {
		v[k] = val
	}
}

// Pick returns a new map holding only the named variables, skipping any
// that are unset.
func (v Variables) Pick(names ...string) Variables {
	p := make(Variables, len(names))
	for _, n := range names {
		if val, ok := v[n]; ok {
			p[n] = val
		}
	}
	return p
}

// Has reports whether the variable is set.
func (v Variables) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// String returns the variable's string form, or "" if unset.
func (v Variables) String(name string) string {
	val, ok := v[name]
	if !ok {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return fmt.Sprint(val)
}

// Bool returns true when the variable is the boolean true or the string
// "true".
func (v Variables) Bool(name string) bool {
	switch val := v[name].(type) {
	case bool:
		return val
	case string:
		return val == "true"
	default:
		return false
	}
}

// Int returns the variable as an integer, with ok reporting whether the
// value was present and convertible.
func (v Variables) Int(name string) (int, bool) {
	switch val := v[name].(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case string:
		n, err := strconv.Atoi(val)
		return n, err == nil
	default:
		return 0, false
	}
}

// Decimal returns the variable as an exact decimal, with ok reporting
// whether the value was present and convertible. Monetary amounts arrive
// as decimal.Decimal from handlers and as strings from task completions.
func (v Variables) Decimal(name string) (decimal.Decimal, bool) {
	switch val := v[name].(type) {
	case decimal.Decimal:
		return val, true
	case string:
		d, err := decimal.NewFromString(val)
		return d, err == nil
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case float64:
		return decimal.NewFromFloat(val), true
	default:
		return decimal.Decimal{}, false
	}
}
