package normalize

import "strings"

// Keyword returns a normalized form of a search keyword suitable for
// case-insensitive matching. Normalization currently trims surrounding
// whitespace and lower-cases the value.
func Keyword(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// ID returns a normalized opaque identifier: surrounding whitespace is
// trimmed, the value is otherwise left untouched.
func ID(id string) string {
	return strings.TrimSpace(id)
}

// MatchesKeyword reports whether the candidate contains the already
// normalized keyword. An empty keyword matches everything.
func MatchesKeyword(candidate, keyword string) bool {
	if keyword == "" {
		return true
	}
	return strings.Contains(strings.ToLower(candidate), keyword)
}
