package monitor

import "reflect"

// Diff returns the entries of actual that are new or different from expected.
//
// Nested mappings are compared recursively and kept only when their own diff
// is non-empty. Any other value is kept when the key is missing from expected
// or the values are not deeply equal. Equality includes the dynamic type, so
// int(1) and float64(1) differ; Status.Fields always yields float64 durations.
// Keys present only in expected are never reported.
func Diff(actual, expected map[string]any) map[string]any {
	out := make(map[string]any)

	for key, value := range actual {
		previous, found := expected[key]

		if nested, ok := value.(map[string]any); ok {
			previousNested, _ := previous.(map[string]any)
			if sub := Diff(nested, previousNested); len(sub) > 0 {
				out[key] = sub
			}
			continue
		}

		if !found || !reflect.DeepEqual(value, previous) {
			out[key] = value
		}
	}

	return out
}
