package circbuf

import "testing"

func TestWriteDrainRoundTrip(t *testing.T) {
	b := New(8)
	n := b.Write([]byte("abcd"))
	if n != 4 {
		t.Fatalf("Write returned %d, want 4", n)
	}
	if b.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", b.Len())
	}
	out := make([]byte, 4)
	got := b.Drain(out)
	if got != 4 || string(out) != "abcd" {
		t.Fatalf("Drain() = %d %q, want 4 \"abcd\"", got, out)
	}
	if !b.Empty() {
		t.Fatalf("buffer should be empty after full drain")
	}
}

func TestWriteOverwritesOldestWhenFull(t *testing.T) {
	b := New(4)
	b.Write([]byte("abcd"))
	b.Write([]byte("ef"))
	if !b.Full() {
		t.Fatalf("buffer should be full")
	}
	out := make([]byte, 4)
	b.Drain(out)
	if string(out) != "cdef" {
		t.Fatalf("Drain() = %q, want \"cdef\"", out)
	}
}

func TestWriteLargerThanCapacityKeepsTail(t *testing.T) {
	b := New(4)
	b.Write([]byte("abcdefgh"))
	out := make([]byte, 4)
	b.Drain(out)
	if string(out) != "efgh" {
		t.Fatalf("Drain() = %q, want \"efgh\"", out)
	}
}

func TestPartialDrainAdvancesTail(t *testing.T) {
	b := New(8)
	b.Write([]byte("hello"))
	out := make([]byte, 2)
	b.Drain(out)
	if string(out) != "he" {
		t.Fatalf("Drain() = %q, want \"he\"", out)
	}
	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}
	rest := make([]byte, 3)
	b.Drain(rest)
	if string(rest) != "llo" {
		t.Fatalf("Drain() = %q, want \"llo\"", rest)
	}
}
