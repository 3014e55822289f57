/*
Package utils provides helper functions for the dynamic cleaner backend.
*/
package utils

import (
	"math/rand"
	"strings"
	"time"
)

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	return time.Now().Format("20060102150405") + "-" + RandomString(8)
}

// RandomString generates a random string of specified length
func RandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}

// DateDaysAgo returns the calendar date N days before now as YYYY-MM-DD in
// the process-local timezone. The fixed-width representation makes string
// comparison equivalent to chronological order, which the day-window policy
// relies on.
func DateDaysAgo(now time.Time, days int) string {
	return now.AddDate(0, 0, -days).Format("2006-01-02")
}

// TimestampToDate renders a unix timestamp as YYYY-MM-DD in the
// process-local timezone. A zero timestamp yields an empty string.
func TimestampToDate(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).Format("2006-01-02")
}

// ParseUserList parses the user-list mode parameter: comma-separated author
// names or numeric ids. Entries are trimmed and blanks dropped.
func ParseUserList(input string) map[string]struct{} {
	users := make(map[string]struct{})
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			users[trimmed] = struct{}{}
		}
	}
	return users
}

// SummarizeContent truncates origin content for deletion records. Missing
// content gets a placeholder so the record stays readable.
func SummarizeContent(content string) string {
	if content == "" {
		return "[no text content]"
	}
	runes := []rune(content)
	if len(runes) > 100 {
		return string(runes[:100]) + "..."
	}
	return content
}
