package domain

import "strings"

const maxChatMessageLen = 1000

// SanitizeChatText trims and caps message text. Returns false for messages
// that are empty after trimming.
func SanitizeChatText(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	if len(trimmed) > maxChatMessageLen {
		trimmed = trimmed[:maxChatMessageLen]
	}

	return trimmed, true
}
