// Package strings normalizes user-supplied string lists such as grant
// allowlists and binding section names.
package strings

import "strings"

// DedupeAndTrim trims every element and drops empties and duplicates, keeping
// first-occurrence order. A nil or empty input comes back as is, so callers
// that treat nil and empty differently keep that distinction.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		t := strings.TrimSpace(v)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
