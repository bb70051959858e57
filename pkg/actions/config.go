package actions

import (
	"encoding/json"
	"fmt"
)

// String reads a string value from an action config. Non-string scalars are formatted.
func String(config map[string]any, key string) string {
	switch v := config[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Strings reads a string or a list of strings from an action config.
func Strings(config map[string]any, key string) []string {
	switch v := config[key].(type) {
	case string:
		if v == "" {
			return nil
		}

		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))

		for _, item := range v {
			if s := fmt.Sprint(item); s != "" {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

// StringMap reads an object of string values from an action config.
func StringMap(config map[string]any, key string) map[string]string {
	out := make(map[string]string)

	switch v := config[key].(type) {
	case map[string]string:
		for k, s := range v {
			out[k] = s
		}
	case map[string]any:
		for k, item := range v {
			out[k] = fmt.Sprint(item)
		}
	}

	return out
}

// Body renders a config value as a request body: strings as is, anything else as JSON.
func Body(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	default:
		body, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}

		return body, nil
	}
}
