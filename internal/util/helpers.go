package util

import (
	"time"
)

// NowISO returns the current UTC time in RFC 3339 format. Every createdAt and
// accessedAt timestamp on the wire uses this format.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// UnixMilliTimestamp returns the current time in milliseconds since the epoch.
func UnixMilliTimestamp() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// DurationMs returns the elapsed time since start in whole milliseconds.
func DurationMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// Truncate cuts s to at most n bytes. Used to cap snippets and context windows.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
