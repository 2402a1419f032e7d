package cpulocal

import "testing"

func TestSetCurrentThenCurrentRoundTrips(t *testing.T) {
	var h Holder[int]
	v := 42
	h.SetCurrent(&v)
	defer h.Clear()
	if got := h.Current(); got != &v {
		t.Fatalf("Current() = %p, want %p", got, &v)
	}
}

func TestCurrentPanicsWhenUnset(t *testing.T) {
	var h Holder[int]
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic reading an unset Holder")
		}
	}()
	h.Current()
}

func TestSetCurrentPanicsOnDoubleSet(t *testing.T) {
	var h Holder[int]
	v1, v2 := 1, 2
	h.SetCurrent(&v1)
	defer h.Clear()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double SetCurrent")
		}
	}()
	h.SetCurrent(&v2)
}

func TestClearPanicsWhenUnset(t *testing.T) {
	var h Holder[int]
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic clearing an unset Holder")
		}
	}()
	h.Clear()
}

func TestTryCurrentReportsAbsence(t *testing.T) {
	var h Holder[int]
	if _, ok := h.TryCurrent(); ok {
		t.Fatalf("TryCurrent should report false on an unset Holder")
	}
	v := 7
	h.SetCurrent(&v)
	defer h.Clear()
	if got, ok := h.TryCurrent(); !ok || got != &v {
		t.Fatalf("TryCurrent = %p, %v; want %p, true", got, ok, &v)
	}
}
