package domain

import (
	"errors"
	"fmt"
)

// flattenSeparator joins nested property keys into flattened ones.
const flattenSeparator = "-"

// ErrDuplicateKey reports that two distinct nested paths collapsed to the same
// flattened key. It signals a structural change in the upstream schema and is
// surfaced apart from all other failures. Match with errors.Is.
var ErrDuplicateKey = errors.New("duplicate flattened key")

// Flatten collapses arbitrarily nested string-keyed maps into a single-level
// map. Each leaf value at nesting path [k1, k2, ..., kn] is stored under
// "k1-k2-...-kn". Values that are not maps, including lists, pass through as
// opaque leaves. A map with no nesting comes back unchanged; a map whose
// values are all empty maps yields an empty result. The input is never
// mutated.
func Flatten(m map[string]any) (map[string]any, error) {
	flat := make(map[string]any, len(m))
	if err := flattenInto(flat, "", m); err != nil {
		return nil, err
	}
	return flat, nil
}

func flattenInto(dst map[string]any, prefix string, m map[string]any) error {
	for key, value := range m {
		flatKey := key
		if prefix != "" {
			flatKey = prefix + flattenSeparator + key
		}

		if nested, ok := value.(map[string]any); ok {
			if err := flattenInto(dst, flatKey, nested); err != nil {
				return err
			}
			continue
		}

		if _, exists := dst[flatKey]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateKey, flatKey)
		}
		dst[flatKey] = value
	}
	return nil
}
