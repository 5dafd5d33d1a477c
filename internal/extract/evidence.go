package extract

import (
	"net/url"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

// NormalizeURL returns a comparison key for a result link: lowercased
// scheme and host, no fragment, no trailing slash. Links that are not
// http(s) return "".
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") ||
		strings.HasPrefix(raw, "javascript:") || strings.HasPrefix(raw, "mailto:") {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return parsed.String()
}

// DedupeEvidence removes evidence with repeated or unusable URLs, keeping
// the first occurrence
func DedupeEvidence(evidence []model.Evidence) []model.Evidence {
	seen := make(map[string]bool)
	unique := make([]model.Evidence, 0, len(evidence))

	for _, ev := range evidence {
		key := NormalizeURL(ev.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, ev)
	}

	return unique
}

// HostOf returns the lowercased host of a URL, or "" when it cannot be parsed
func HostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
