package tools

import (
	"fmt"
	"strconv"
)

// GetStringParam safely gets a string parameter from arguments
func GetStringParam(arguments map[string]interface{}, key string, required bool) (string, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return "", fmt.Errorf("missing required argument: %s", key)
		}
		return "", nil
	}

	switch v := val.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("invalid type for argument %s: expected string, got %T", key, val)
	}
}

// GetIntParam safely gets an integer parameter from arguments. The second
// return value reports whether the argument was present.
func GetIntParam(arguments map[string]interface{}, key string, required bool) (int, bool, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return 0, false, fmt.Errorf("missing required argument: %s", key)
		}
		return 0, false, nil
	}

	switch v := val.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, true, fmt.Errorf("invalid value for argument %s: expected an integer, got %v", key, v)
		}
		return int(v), true, nil
	case int:
		return v, true, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, true, fmt.Errorf("invalid value for argument %s: %w", key, err)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("invalid type for argument %s: expected number, got %T", key, val)
	}
}

// GetObjectParam safely gets a map/object parameter from arguments
func GetObjectParam(arguments map[string]interface{}, key string, required bool) (map[string]interface{}, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return nil, fmt.Errorf("missing required argument: %s", key)
		}
		return nil, nil
	}

	obj, ok := val.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid type for argument %s: expected object", key)
	}

	return obj, nil
}

// GetArrayParam safely gets an array parameter from arguments
func GetArrayParam(arguments map[string]interface{}, key string, required bool) ([]interface{}, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return nil, fmt.Errorf("missing required argument: %s", key)
		}
		return nil, nil
	}

	arr, ok := val.([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid type for argument %s: expected array", key)
	}

	return arr, nil
}
