package usecase

import (
	"fmt"
	"sort"

	"ai-image-studio/internal/domain"
	"ai-image-studio/internal/domain/ports/adapter"
)

// outputKeyProbe is the ordered set of object keys probed when a model
// returns an unfamiliar keyed shape.
var outputKeyProbe = []string{"url", "image", "output", "result", "data"}

// ResolveOutputURL normalizes the polymorphic model output down to a single
// asset URL. Rules are tried in order:
//
//  1. keyed object with a "url" entry
//  2. first element of a list (string, or object with "url")
//  3. bare string
//  4. probe of well-known object keys, accepting a scalar or the first
//     element of a list
//
// Anything else is an ErrUnrecognizedOutput naming the available keys.
func ResolveOutputURL(out adapter.ModelOutput) (string, error) {
	if out.IsObject() {
		if u, ok := asString(out.Object["url"]); ok {
			return u, nil
		}
	}

	if out.IsList() {
		if len(out.List) > 0 {
			if u, ok := asString(out.List[0]); ok {
				return u, nil
			}
			if m, ok := out.List[0].(map[string]any); ok {
				if u, ok := asString(m["url"]); ok {
					return u, nil
				}
			}
		}
		return "", fmt.Errorf("%w: empty or non-url list", domain.ErrUnrecognizedOutput)
	}

	if out.IsText() {
		return out.Text, nil
	}

	if out.IsObject() {
		for _, key := range outputKeyProbe {
			v, present := out.Object[key]
			if !present {
				continue
			}
			if u, ok := asString(v); ok {
				return u, nil
			}
			if list, ok := v.([]any); ok && len(list) > 0 {
				if u, ok := asString(list[0]); ok {
					return u, nil
				}
			}
		}
		keys := make([]string, 0, len(out.Object))
		for k := range out.Object {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("%w: object keys %v", domain.ErrUnrecognizedOutput, keys)
	}

	return "", fmt.Errorf("%w: empty output", domain.ErrUnrecognizedOutput)
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
