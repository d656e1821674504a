package search

import "strings"

// Snippet shortens chunk content for result previews. Truncation backs up
// to the last word boundary before maxLen so no word is cut in half; a
// non-positive maxLen disables truncation.
func Snippet(content string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	cut := content[:maxLen]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
