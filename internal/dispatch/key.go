package dispatch

import (
	"fmt"
	"strings"
)

// ConversationKey canonicalizes a platform channel identifier into the key
// used by the thread registry and the per-conversation worker map.
func ConversationKey(channelID string) (string, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return "", fmt.Errorf("conversation id is required")
	}
	if strings.Contains(channelID, " ") {
		return "", fmt.Errorf("conversation id must not contain spaces")
	}
	return "discord:" + channelID, nil
}

// Truncate caps text at limit characters. Counting is by rune so a multibyte
// reply is never split inside a character.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
