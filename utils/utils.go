package utils

import (
	"fmt"
	"regexp"
	"strings"
)

const maxQueryLength = 500

var (
	unsafeChars = regexp.MustCompile(`[<>"']`)
	emailRe     = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// SanitizeQuery strips characters that have no business in a research query
// and caps the length. Returns "" for queries that are empty after cleanup.
func SanitizeQuery(q string) string {
	q = unsafeChars.ReplaceAllString(strings.TrimSpace(q), "")
	if len(q) > maxQueryLength {
		q = q[:maxQueryLength]
	}
	return q
}

// ValidateEmail reports whether the address looks like a deliverable email.
func ValidateEmail(email string) bool {
	return emailRe.MatchString(email)
}

func UrlQuery(s string) string { return strings.ReplaceAll(s, " ", "+") }

func Str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
