package klog

import "testing"

func TestLogRespectsMinLevel(t *testing.T) {
	SetMinLevel(Warn)
	defer SetMinLevel(Debug)

	// Drain anything left over from other tests so the assertion below
	// observes only what this test writes.
	buf := make([]byte, queue.Cap())
	Drain(buf)

	Infof("should be suppressed")
	Errorf("should appear")

	out := make([]byte, queue.Cap())
	n := Drain(out)
	got := string(out[:n])
	if got == "" {
		t.Fatalf("expected at least one log line")
	}
	if contains(got, "should be suppressed") {
		t.Fatalf("Info line should have been suppressed below Warn: %q", got)
	}
	if !contains(got, "should appear") {
		t.Fatalf("Error line missing from queue: %q", got)
	}
}

func TestFormatBytesGroupsDigits(t *testing.T) {
	got := FormatBytes(16777216)
	want := "16,777,216 bytes"
	if got != want {
		t.Fatalf("FormatBytes() = %q, want %q", got, want)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
