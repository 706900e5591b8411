package moderation

import "strings"

// FindBannedWord reports the first word of the list, in list order, that occurs
// in content as a case-insensitive substring. Blank words never match.
func FindBannedWord(content string, words []string) (string, bool) {
	lowered := strings.ToLower(content)
	for _, w := range words {
		needle := strings.ToLower(strings.TrimSpace(w))
		if needle == "" {
			continue
		}
		if strings.Contains(lowered, needle) {
			return w, true
		}
	}
	return "", false
}
