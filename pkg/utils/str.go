package utils

import "strings"

// Coalesce returns the first non-empty string among values.
func Coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// SplitList splits s on any of the given separators, trims whitespace and
// drops empty elements. With no separators it splits on commas. Used for
// address lists like "host1:6379;host2:6379".
func SplitList(s string, seps ...string) []string {
	if len(seps) == 0 {
		seps = []string{","}
	}
	canon := s
	for _, sep := range seps[1:] {
		canon = strings.ReplaceAll(canon, sep, seps[0])
	}
	parts := strings.Split(canon, seps[0])
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
