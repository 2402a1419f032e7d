package stats

import "testing"

func TestIncAndAdd(t *testing.T) {
	var c Counter
	c.Inc()
	c.Add(5)
	if c.Value() != 6 {
		t.Fatalf("Value() = %d, want 6", c.Value())
	}
}

type schedCounters struct {
	ContextSwitches Counter
	Preemptions     Counter
}

func TestDumpRendersCounterFields(t *testing.T) {
	var s schedCounters
	s.ContextSwitches.Add(3)
	s.Preemptions.Inc()
	out := Dump(&s)
	if !contains(out, "ContextSwitches: 3") || !contains(out, "Preemptions: 1") {
		t.Fatalf("Dump output missing expected fields: %q", out)
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
