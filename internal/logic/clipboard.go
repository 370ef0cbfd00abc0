package logic

import (
	"fmt"
	"strings"

	"beacon-chat/internal/models"
)

// FormatForClipboard renders a message as plain text with its cited sources appended
func FormatForClipboard(msg models.Message) string {
	if len(msg.Sources) == 0 {
		return msg.Content
	}

	var b strings.Builder
	b.WriteString(msg.Content)
	b.WriteString("\n\nSources:\n")
	for i, s := range msg.Sources {
		name := s.Filename
		if name == "" {
			name = s.Path
		}
		if s.Path != "" && s.Path != name {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, name, s.Path)
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i+1, name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
