package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IntParam reads an integer parameter, accepting the numeric types produced by
// YAML and JSON decoding.
func IntParam(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%s: expected integer, got %v", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%s: expected integer, got %T", key, v)
	}
}

// FloatParam reads a float parameter.
func FloatParam(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%s: expected number, got %T", key, v)
	}
}

// DecimalParam reads a decimal parameter. Strings are parsed exactly.
func DecimalParam(params map[string]any, key string, def decimal.Decimal) (decimal.Decimal, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %w", key, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case decimal.Decimal:
		return n, nil
	default:
		return decimal.Zero, fmt.Errorf("%s: expected number, got %T", key, v)
	}
}

// BoolParam reads a boolean parameter.
func BoolParam(params map[string]any, key string, def bool) (bool, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s: expected bool, got %T", key, v)
	}
	return b, nil
}

// StringParam reads a string parameter.
func StringParam(params map[string]any, key string, def string) (string, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %T", key, v)
	}
	return s, nil
}
