package pit

import "testing"

func resetForTest() {
	ticks.Store(0)
	callback = nil
	hz = DefaultHz
	SetIdleHook(func() {})
}

func TestFireAdvancesTicksAndInvokesCallback(t *testing.T) {
	resetForTest()
	var got uint64
	Register(func(tick uint64) { got = tick })
	Fire()
	Fire()
	if Ticks() != 2 {
		t.Fatalf("Ticks() = %d, want 2", Ticks())
	}
	if got != 2 {
		t.Fatalf("callback last saw tick %d, want 2", got)
	}
}

func TestRegisterReplacesPreviousCallback(t *testing.T) {
	resetForTest()
	firstCalled, secondCalled := false, false
	Register(func(uint64) { firstCalled = true })
	Register(func(uint64) { secondCalled = true })
	Fire()
	if firstCalled {
		t.Fatalf("first callback should have been replaced")
	}
	if !secondCalled {
		t.Fatalf("second (current) callback should have fired")
	}
}

func TestDivisorMatchesBaseFrequency(t *testing.T) {
	if d := Divisor(100); d != baseFreq/100 {
		t.Fatalf("Divisor(100) = %d, want %d", d, baseFreq/100)
	}
}

func TestDivisorClampsToUint16Range(t *testing.T) {
	if d := Divisor(1); d != 0xFFFF {
		t.Fatalf("Divisor(1) = %d, want clamp to 0xFFFF", d)
	}
}

func TestMillisToTicksRoundsUp(t *testing.T) {
	resetForTest()
	SetFrequency(100) // 10ms per tick
	if got := MillisToTicks(25); got != 3 {
		t.Fatalf("MillisToTicks(25) at 100Hz = %d, want 3", got)
	}
}

func TestSleepBlocksUntilDeadlineTicksElapse(t *testing.T) {
	resetForTest()
	SetFrequency(100)
	SetIdleHook(func() { Fire() })
	Sleep(20) // 2 ticks at 100Hz
	if Ticks() < 2 {
		t.Fatalf("Ticks() = %d after Sleep(20), want >= 2", Ticks())
	}
}
