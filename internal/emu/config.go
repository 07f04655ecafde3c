package emu

// Config contains settings that affect emulation behavior but not its
// observable CPU/PPU/MMU semantics.
type Config struct {
	Trace    bool // log CPU instructions
	LimitFPS bool // throttle StepFrame callers to ~60 Hz (host's concern, unused by Emulator itself)
}
