package utils

import "strings"

// BodyPreview turns a response body into a single log line of at most limit
// runes. Runs of whitespace, newlines included, collapse to one space.
func BodyPreview(body []byte, limit int) string {
	if limit <= 0 {
		return ""
	}

	s := strings.Join(strings.Fields(string(body)), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
