// Package emu wires cartridge, bus, and CPU into the single host-facing
// Emulator type: load a ROM, step whole frames, and save/load state.
package emu

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/tinroof/dmgcore/internal/bus"
	"github.com/tinroof/dmgcore/internal/cart"
	"github.com/tinroof/dmgcore/internal/cpu"
	"github.com/tinroof/dmgcore/internal/joypad"
)

// Buttons is the eight-button logical input state for one frame.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.Right {
		m |= joypad.Right
	}
	if b.Left {
		m |= joypad.Left
	}
	if b.Up {
		m |= joypad.Up
	}
	if b.Down {
		m |= joypad.Down
	}
	if b.A {
		m |= joypad.A
	}
	if b.B {
		m |= joypad.B
	}
	if b.Select {
		m |= joypad.Select
	}
	if b.Start {
		m |= joypad.Start
	}
	return m
}

// cyclesPerFrame is the fixed 70,224 T-cycle DMG frame length (154 lines *
// 456 dots).
const cyclesPerFrame = 70224

// Emulator is the complete host-facing surface: construct from ROM bytes,
// step whole frames, feed input, and save/restore state.
type Emulator struct {
	cfg  Config
	bus  *bus.Bus
	cpu  *cpu.CPU
	cart cart.Cartridge

	frameCycles int
}

// New builds the cartridge, MBC, and all subsystems from a raw ROM image.
// An unsupported or malformed header is a Config error (spec §7.1): the
// Emulator is not constructed.
func New(rom []byte, cfg Config) (*Emulator, error) {
	c, err := cart.NewCartridge(rom)
	if err != nil {
		return nil, err
	}
	b := bus.NewWithCartridge(c)
	cp := cpu.New(b)
	cp.ResetNoBoot()
	b.Write(0xFF40, 0x91) // LCDC: LCD on, BG on, tile data at 0x8000
	b.Write(0xFF47, 0xFC) // BGP
	b.Write(0xFF48, 0xFF) // OBP0
	b.Write(0xFF49, 0xFF) // OBP1
	return &Emulator{cfg: cfg, bus: b, cpu: cp, cart: c}, nil
}

// LoadROMFromFile is a convenience constructor helper for tools and tests.
func LoadROMFromFile(path string, cfg Config) (*Emulator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(data, cfg)
}

// SetSerialWriter routes bytes shifted out over the link-cable register to
// w; used by headless test-ROM runners that read a pass/fail string back.
func (e *Emulator) SetSerialWriter(w io.Writer) { e.bus.SetSerialWriter(w) }

// SetBootROM loads an optional DMG boot ROM to run before cartridge code.
func (e *Emulator) SetBootROM(data []byte) {
	e.bus.SetBootROM(data)
	if len(data) >= 0x100 {
		e.cpu.SetPC(0x0000)
	}
}

// SetButtons updates which of the eight logical buttons are held down.
func (e *Emulator) SetButtons(b Buttons) { e.bus.SetJoypadState(b.mask()) }

// StepFrame runs exactly one 70,224-cycle frame and returns a read-only
// view of the 160x144 RGBA framebuffer.
func (e *Emulator) StepFrame() []byte {
	e.runFrame()
	return e.bus.PPU().Framebuffer()
}

// StepFrameNoRender runs one frame without the caller reading back the
// framebuffer; useful for headless serial-output test ROMs.
func (e *Emulator) StepFrameNoRender() { e.runFrame() }

// Framebuffer returns the most recently rendered 160x144 RGBA frame without
// advancing emulation; used by drivers that redraw between StepFrame calls.
func (e *Emulator) Framebuffer() []byte { return e.bus.PPU().Framebuffer() }

func (e *Emulator) runFrame() {
	target := cyclesPerFrame
	for e.frameCycles < target {
		if e.cfg.Trace {
			pc := e.cpu.PC
			cycles := e.cpu.Step()
			log.Printf("PC=%04X cyc=%d", pc, cycles)
			e.frameCycles += cycles
			continue
		}
		e.frameCycles += e.cpu.Step()
	}
	e.frameCycles -= target
}

// HasBattery reports whether the loaded cartridge persists external RAM.
func (e *Emulator) HasBattery() bool {
	_, ok := e.cart.(cart.BatteryBacked)
	return ok
}

// BatteryRAM returns the cartridge's external RAM for persistence to a
// .sav file, if the cartridge has battery-backed RAM.
func (e *Emulator) BatteryRAM() ([]byte, bool) {
	bb, ok := e.cart.(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	return bb.SaveRAM(), true
}

// LoadBatteryRAM restores external RAM previously returned by BatteryRAM.
func (e *Emulator) LoadBatteryRAM(data []byte) {
	if bb, ok := e.cart.(cart.BatteryBacked); ok {
		bb.LoadRAM(data)
	}
}

const (
	saveStateMagic   = "GBST"
	saveStateVersion = uint32(1)
)

// SaveStateError is returned by LoadState on a magic/version mismatch, per
// spec §6 and §7.4: the emulator's state is left unchanged.
type SaveStateError struct {
	Reason string
}

func (e *SaveStateError) Error() string { return "emu: save state " + e.Reason }

// SaveState serializes the full machine (bus/MMU, CPU, PPU, timer, joypad,
// cartridge banking + RTC/ERAM) behind a magic+version header.
func (e *Emulator) SaveState() []byte {
	var buf bytes.Buffer
	buf.WriteString(saveStateMagic)
	var verBytes [4]byte
	binary.LittleEndian.PutUint32(verBytes[:], saveStateVersion)
	buf.Write(verBytes[:])

	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(e.bus.SaveState())
	_ = enc.Encode(e.cpu.SaveState())
	return buf.Bytes()
}

// LoadState restores a byte stream produced by SaveState. A magic mismatch
// or a version newer than this build supports is refused with a typed
// *SaveStateError and the emulator is left unchanged.
func (e *Emulator) LoadState(data []byte) error {
	if len(data) < 8 || string(data[:4]) != saveStateMagic {
		return &SaveStateError{Reason: "magic mismatch"}
	}
	ver := binary.LittleEndian.Uint32(data[4:8])
	if ver > saveStateVersion {
		return &SaveStateError{Reason: fmt.Sprintf("version %d newer than supported %d", ver, saveStateVersion)}
	}

	dec := gob.NewDecoder(bytes.NewReader(data[8:]))
	var busData []byte
	if err := dec.Decode(&busData); err != nil {
		return &SaveStateError{Reason: "corrupt bus payload: " + err.Error()}
	}
	var snap cpu.State
	if err := dec.Decode(&snap); err != nil {
		return &SaveStateError{Reason: "corrupt cpu payload: " + err.Error()}
	}

	e.bus.LoadState(busData)
	e.cpu.LoadState(snap)
	return nil
}
