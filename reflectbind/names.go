package reflectbind

import (
	"strings"
	"unicode"
)

// toSnakeCase converts PascalCase to snake_case.
// Handles acronyms: GetHTTPServer -> get_http_server
func toSnakeCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if !unicode.IsUpper(r) {
			result.WriteRune(r)
			continue
		}

		end := i + 1
		for end < len(runes) && unicode.IsUpper(runes[end]) {
			end++
		}
		// last capital of a run followed by lowercase starts the next word
		if end > i+1 && end < len(runes) && unicode.IsLower(runes[end]) {
			end--
		}

		if i > 0 {
			result.WriteByte('_')
		}
		for j := i; j < end; j++ {
			result.WriteRune(unicode.ToLower(runes[j]))
		}
		i = end - 1
	}
	return result.String()
}
