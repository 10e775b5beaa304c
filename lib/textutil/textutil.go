package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeKey lowercases and trims a lookup key, inner whitespace is removed.
func NormalizeKey(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

var isbnRegex = regexp.MustCompile(`^(?:\d{10}|\d{13}|\d{9}[Xx])$`)

// IsISBN reports whether keyword looks like an ISBN-10 or ISBN-13, dashes and spaces ignored.
func IsISBN(keyword string) bool {
	return isbnRegex.MatchString(StripISBN(keyword))
}

// StripISBN removes the separators commonly found in printed ISBNs.
func StripISBN(keyword string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(keyword))
}

// FirstToken returns the first comma separated token of s, trimmed.
func FirstToken(s string) string {
	first, _, _ := strings.Cut(s, ",")
	return strings.TrimSpace(first)
}
