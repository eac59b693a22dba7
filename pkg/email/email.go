// Package email holds the loose email helpers shared by the payload parser
// and the validation rules.
package email

import (
	"regexp"
	"strings"
)

// looseFormat is intentionally permissive: the goal is catching obvious typos,
// not full RFC 5322 compliance.
var looseFormat = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Valid reports whether s looks like an email address.
func Valid(s string) bool {
	return looseFormat.MatchString(s)
}

// ParseAddress splits a `Name <email>` string into its parts. When the input
// carries no angle-bracketed address, the whole trimmed string is returned as
// the email with an empty name.
func ParseAddress(s string) (name, address string) {
	s = strings.TrimSpace(s)

	open := strings.IndexByte(s, '<')
	end := strings.LastIndexByte(s, '>')
	if open >= 0 && end > open {
		name = strings.TrimSpace(s[:open])
		address = strings.TrimSpace(s[open+1 : end])
		return name, address
	}
	return "", s
}
