package timer

import "testing"

func TestTimerStepLaw(t *testing.T) {
	tm := New()
	tm.SetTMA(0x80)
	tm.SetTAC(0x05) // enable, 16-cycle threshold

	tm.Tick(16 * 255)
	if tm.TIMA() != 255 {
		t.Fatalf("TIMA = %d, want 255", tm.TIMA())
	}

	overflowed := tm.Tick(16)
	if !overflowed {
		t.Fatalf("expected overflow on the 256th increment")
	}
	if tm.TIMA() != 0x80 {
		t.Fatalf("TIMA after overflow = %#02x, want 0x80", tm.TIMA())
	}
}

func TestResetDiv(t *testing.T) {
	tm := New()
	tm.Tick(1000)
	if tm.DIV() == 0 {
		t.Fatalf("expected nonzero DIV after ticking")
	}
	tm.ResetDiv()
	if tm.DIV() != 0 {
		t.Fatalf("DIV after reset = %#02x, want 0", tm.DIV())
	}
}

func TestDisabledTimerDoesNotAccumulate(t *testing.T) {
	tm := New()
	tm.SetTAC(0x01) // disabled (bit 2 clear), 16-cycle selector
	tm.Tick(1000)
	if tm.TIMA() != 0 {
		t.Fatalf("TIMA = %d, want 0 while disabled", tm.TIMA())
	}
}
