package util

import "strings"

// FirstNonEmpty returns the first value that is non-empty after trimming.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
