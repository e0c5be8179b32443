// Package strings provides string list helpers for configuration values.
package strings

import (
	"strings"
)

// SplitList flattens comma separated entries, trimming each part and
// dropping blanks and repeats. Order is preserved.
//
// Example:
//
//	SplitList([]string{" a,b ", "b", ",c"})
//	// Returns: []string{"a", "b", "c"}
func SplitList(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var result []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if _, ok := seen[trimmed]; !ok {
				seen[trimmed] = struct{}{}
				result = append(result, trimmed)
			}
		}
	}
	return result
}
