package llm

import "strings"

// StripCodeFences removes markdown code fences (```json ... ```) from a
// model response. Models frequently wrap structured JSON output in fences
// even when asked not to; every structured-extraction caller strips them
// before unmarshalling.
func StripCodeFences(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")
	return strings.TrimSpace(response)
}
