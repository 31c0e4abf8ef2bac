package notion

import "strings"

// NormalizeID canonicalizes a Notion page or database id. Ids copied out
// of the Notion UI carry dashes while webhook payloads and API responses
// may not; config rows store either form. Every id comparison and map key
// in this codebase goes through this function.
func NormalizeID(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(trimmed, "-", ""))
}
