package logic

import "strings"

// MaxTitleLength is the number of characters kept when deriving a conversation title
const MaxTitleLength = 50

// DeriveTitle derives a conversation title from the first user message.
// Content longer than MaxTitleLength characters is cut and suffixed with "...".
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= MaxTitleLength {
		return content
	}
	return string(runes[:MaxTitleLength]) + "..."
}

// Preview shortens content for log lines
func Preview(content string, limit int) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}
