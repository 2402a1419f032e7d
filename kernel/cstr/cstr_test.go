package cstr

import "testing"

func TestFromNulTerminatedTruncatesAtFirstNul(t *testing.T) {
	buf := []byte{'i', 'd', 'l', 'e', 0, 'x', 'x'}
	if got := FromNulTerminated(buf).String(); got != "idle" {
		t.Fatalf("FromNulTerminated = %q, want %q", got, "idle")
	}
}

func TestFromNulTerminatedNoNulReturnsWhole(t *testing.T) {
	buf := []byte("noterm")
	if got := FromNulTerminated(buf).String(); got != "noterm" {
		t.Fatalf("FromNulTerminated = %q, want %q", got, "noterm")
	}
}

func TestEq(t *testing.T) {
	a := Str("task")
	b := Str("task")
	c := Str("other")
	if !a.Eq(b) {
		t.Fatalf("equal strings should compare equal")
	}
	if a.Eq(c) {
		t.Fatalf("different strings should not compare equal")
	}
}
