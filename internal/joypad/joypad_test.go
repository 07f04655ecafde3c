package joypad

import "testing"

func TestReadUnselectedReadsHigh(t *testing.T) {
	j := New()
	j.Write(0x30) // select neither nibble
	if got := j.Read(); got != 0xFF {
		t.Fatalf("Read() = %#02x, want 0xFF", got)
	}
}

func TestReadDPad(t *testing.T) {
	j := New()
	j.Write(0x20) // P14 low: select D-Pad
	j.Poll(Right | Up)
	got := j.Read()
	if got&0x01 != 0 || got&0x04 != 0 {
		t.Fatalf("Read() = %#02x, want Right/Up bits clear", got)
	}
	if got&0x02 == 0 || got&0x08 == 0 {
		t.Fatalf("Read() = %#02x, want Left/Down bits set", got)
	}
}

func TestPollRisingEdgeRequestsInterrupt(t *testing.T) {
	j := New()
	j.Write(0x20) // select D-Pad
	if req := j.Poll(0); req {
		t.Fatalf("unexpected interrupt request on no-op poll")
	}
	if req := j.Poll(Right); !req {
		t.Fatalf("expected interrupt request on button press edge")
	}
	if req := j.Poll(Right); req {
		t.Fatalf("unexpected repeat interrupt request while held")
	}
}
