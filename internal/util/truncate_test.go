package util

import (
	"strings"
	"testing"
)

func TestTruncateLog(t *testing.T) {
	if got := TruncateLog("short", 10); got != "short" {
		t.Fatalf("short strings pass through, got %q", got)
	}

	long := strings.Repeat("x", 50)
	got := TruncateLog(long, 10)
	if !strings.HasPrefix(got, strings.Repeat("x", 10)+"...") {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if !strings.Contains(got, "50 bytes total") {
		t.Fatalf("expected total size marker, got %q", got)
	}
}

func TestTruncateBytes(t *testing.T) {
	big := []byte(strings.Repeat("a", DefaultLogMaxLen+1))
	if got := TruncateBytes(big); len(got) <= DefaultLogMaxLen {
		// Truncated output still carries the marker suffix.
		t.Fatalf("unexpected length %d", len(got))
	}
	if got := TruncateBytes([]byte("ok")); got != "ok" {
		t.Fatalf("small input must pass through, got %q", got)
	}
}
