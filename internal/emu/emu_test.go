package emu

import "testing"

func blankROM(size int) []byte {
	rom := make([]byte, size)
	rom[0x0147] = 0x00 // ROM ONLY
	rom[0x0148] = 0x00 // 32 KiB, 2 banks
	rom[0x0149] = 0x00 // no RAM
	return rom
}

func TestNew_RejectsUnsupportedCartridge(t *testing.T) {
	rom := blankROM(0x8000)
	rom[0x0147] = 0x20 // MBC6, not implemented
	if _, err := New(rom, Config{}); err == nil {
		t.Fatalf("expected error for unsupported cartridge type")
	}
}

func TestStepFrame_ReturnsFullSizeFramebuffer(t *testing.T) {
	rom := blankROM(0x8000)
	e, err := New(rom, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fb := e.StepFrame()
	if len(fb) != 160*144*4 {
		t.Fatalf("framebuffer size = %d, want %d", len(fb), 160*144*4)
	}
}

func TestSaveState_RoundTrip(t *testing.T) {
	rom := blankROM(0x8000)
	e, err := New(rom, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.StepFrame()
	data := e.SaveState()

	e2, err := New(rom, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e2.LoadState(data); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	fb1 := e.StepFrame()
	fb2 := e2.StepFrame()
	if len(fb1) != len(fb2) {
		t.Fatalf("framebuffer length mismatch after restore")
	}
	for i := range fb1 {
		if fb1[i] != fb2[i] {
			t.Fatalf("framebuffer mismatch at byte %d after restoring state", i)
		}
	}
}

func TestLoadState_RejectsBadMagic(t *testing.T) {
	rom := blankROM(0x8000)
	e, err := New(rom, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = e.LoadState([]byte("not a save state"))
	if err == nil {
		t.Fatalf("expected error for bad magic")
	}
	if _, ok := err.(*SaveStateError); !ok {
		t.Fatalf("expected *SaveStateError, got %T", err)
	}
}

func TestSetButtons_RequestsJoypadInterrupt(t *testing.T) {
	rom := blankROM(0x8000)
	e, err := New(rom, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.bus.Write(0xFFFF, 1<<4) // enable Joypad interrupt in IE
	e.SetButtons(Buttons{A: true})
	if e.bus.Read(0xFF0F)&(1<<4) == 0 {
		t.Fatalf("expected Joypad interrupt flag to be set on button press edge")
	}
}
