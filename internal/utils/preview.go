package utils

import "strings"

// BodyPreview renders a response body on one line for the logs. Runs of
// whitespace collapse to a single space and anything past limit runes is cut
// off with an ellipsis.
func BodyPreview(body []byte, limit int) string {
	if limit <= 0 {
		return ""
	}

	line := strings.Join(strings.Fields(string(body)), " ")
	runes := []rune(line)
	if len(runes) <= limit {
		return line
	}
	return string(runes[:limit]) + "..."
}
