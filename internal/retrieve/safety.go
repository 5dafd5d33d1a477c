package retrieve

import "strings"

var unsafeKeywords = []string{"porn", "sex", "nude", "xxx", "adult", "escort", "naked", "redtube"}

// IsSafe reports whether a snippet or URL is free of adult-content keywords
func IsSafe(textOrURL string) bool {
	lower := strings.ToLower(textOrURL)
	for _, word := range unsafeKeywords {
		if strings.Contains(lower, word) {
			return false
		}
	}
	return true
}
