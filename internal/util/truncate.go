package util

import "fmt"

// DefaultLogMaxLen caps truncated log output at 1KB. Upstream error bodies
// can carry arbitrarily large payloads; logs only need the head.
const DefaultLogMaxLen = 1024

// TruncateLog truncates long strings for diagnostic logging.
func TruncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}

// TruncateBytes is a convenience wrapper for TruncateLog using
// DefaultLogMaxLen.
func TruncateBytes(b []byte) string {
	return TruncateLog(string(b), DefaultLogMaxLen)
}
