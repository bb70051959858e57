package expression

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// NeedsTemplating reports whether input contains a {{path}} placeholder.
func NeedsTemplating(input string) bool {
	return placeholder.MatchString(input)
}

// Interpolate replaces every {{path}} placeholder in input with the value of path in env.
// Paths that cannot be resolved render as an empty string; malformed expressions are an error.
func (e *Engine) Interpolate(input string, env map[string]any) (string, error) {
	if !NeedsTemplating(input) {
		return input, nil
	}

	var firstErr error

	out := placeholder.ReplaceAllStringFunc(input, func(match string) string {
		code := placeholder.FindStringSubmatch(match)[1]

		if err := e.Compile(code); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to parse template '%s': %w", code, err)
			}

			return match
		}

		value, err := e.Evaluate(code, env)
		if err != nil {
			return ""
		}

		return format(value)
	})

	if firstErr != nil {
		return "", firstErr
	}

	return out, nil
}

// InterpolateValue interpolates every string found in value, descending into maps and slices.
func (e *Engine) InterpolateValue(value any, env map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return e.Interpolate(v, env)
	case map[string]any:
		out := make(map[string]any, len(v))

		for key, item := range v {
			rendered, err := e.InterpolateValue(item, env)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}

			out[key] = rendered
		}

		return out, nil
	case []any:
		out := make([]any, len(v))

		for i, item := range v {
			rendered, err := e.InterpolateValue(item, env)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}

			out[i] = rendered
		}

		return out, nil
	case []string:
		out := make([]string, len(v))

		for i, item := range v {
			rendered, err := e.Interpolate(item, env)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}

			out[i] = rendered
		}

		return out, nil
	default:
		return value, nil
	}
}

func format(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
