package bus

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/tinroof/dmgcore/internal/cart"
	"github.com/tinroof/dmgcore/internal/joypad"
	"github.com/tinroof/dmgcore/internal/ppu"
	"github.com/tinroof/dmgcore/internal/timer"
)

// Bus wires CPU-visible address space to cartridge, WRAM, HRAM, PPU, timer,
// joypad, and serial per spec §4.C.
type Bus struct {
	cart cart.Cartridge

	// Work RAM (WRAM) 8 KiB at 0xC000-0xDFFF; Echo 0xE000-0xFDFF mirrors C000-DDFF.
	wram [0x2000]byte

	// High RAM (HRAM) 0xFF80-0xFFFE (127 bytes)
	hram [0x7F]byte

	ppu    *ppu.PPU
	timer  *timer.Timer
	joypad *joypad.Joypad

	// Interrupt registers
	ie    byte // IE at 0xFFFF
	ifReg byte // IF at 0xFF0F (lower 5 bits used)

	// Serial
	sb byte      // FF01 data
	sc byte      // FF02 control (bit7 start, bit0 clock source; completed immediately)
	sw io.Writer // sink for serial output (optional)

	// OAM DMA
	dma       byte // FF46
	dmaActive bool
	dmaSrc    uint16
	dmaIndex  int

	bootROM     []byte
	bootEnabled bool
}

// New constructs a Bus with a cartridge picked from the ROM header.
func New(rom []byte) *Bus {
	c, err := cart.NewCartridge(rom)
	if err != nil {
		c = cart.NewROMOnly(rom)
	}
	return NewWithCartridge(c)
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge) *Bus {
	b := &Bus{cart: c, timer: timer.New(), joypad: joypad.New()}
	b.ppu = ppu.New(func(bit int) { b.ifReg |= 1 << bit })
	return b
}

// PPU returns the internal PPU for read-only rendering helpers.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// Cart returns the underlying cartridge for optional battery operations.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// Read is the CPU-visible read surface: gated by an active OAM DMA per
// spec §4.C before any address decoding happens.
func (b *Bus) Read(addr uint16) byte {
	if b.dmaBlocks(addr) {
		return 0xFF
	}
	return b.readRaw(addr)
}

// readRaw performs the address-decoded read with no DMA gating, used by Read
// after its DMA check and by the DMA copy loop itself (which must read its
// own source bytes).
func (b *Bus) readRaw(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		return b.wram[mirror-0xC000]
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		return b.ppu.CPURead(addr)
	case addr == 0xFF00:
		return b.joypad.Read()
	case addr == 0xFF04:
		return b.timer.DIV()
	case addr == 0xFF05:
		return b.timer.TIMA()
	case addr == 0xFF06:
		return b.timer.TMA()
	case addr == 0xFF07:
		return b.timer.TAC()
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | (b.sc & 0x81)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma
	case addr == 0xFF50:
		return 0xFF
	case addr == 0xFF0F:
		return 0xE0 | (b.ifReg & 0x1F)
	case addr == 0xFFFF:
		return b.ie
	}
	return 0xFF
}

// InterruptState returns IE and the low 5 bits of IF ungated by an active
// OAM DMA. The CPU's interrupt-priority compare consults these every step
// the same way real hardware's dedicated IE/IF latches do — it is not the
// CPU issuing a memory read that DMA's bus steal should be able to starve,
// unlike an explicit LD that targets 0xFF0F.
func (b *Bus) InterruptState() (ie, ifReg byte) {
	return b.ie, b.ifReg & 0x1F
}

// AckInterrupt clears one IF bit as part of interrupt dispatch, ungated by
// DMA for the same reason InterruptState is.
func (b *Bus) AckInterrupt(bit uint) {
	b.ifReg &^= 1 << bit
}

// During OAM DMA, CPU reads/writes below 0xFF80 return 0xFF / are dropped
// (spec §5's "DMA steals CPU access"); HRAM stays live for the copy loop
// running out of HRAM, and Write also lets writes to 0xFF46 through.
func (b *Bus) dmaBlocks(addr uint16) bool {
	return b.dmaActive && addr < 0xFF80
}

func (b *Bus) Write(addr uint16, value byte) {
	if b.dmaBlocks(addr) && addr != 0xFF46 {
		return
	}
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
		return
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
		return
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
		return
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
		return
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		if mirror >= 0xC000 && mirror <= 0xDDFF {
			b.wram[mirror-0xC000] = value
		}
		return
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
		return
	case addr >= 0xFE00 && addr <= 0xFE9F:
		b.ppu.CPUWrite(addr, value)
		return
	case addr == 0xFF00:
		b.joypad.Write(value)
		return
	case addr == 0xFF04:
		b.timer.ResetDiv()
		return
	case addr == 0xFF05:
		b.timer.SetTIMA(value)
		return
	case addr == 0xFF06:
		b.timer.SetTMA(value)
		return
	case addr == 0xFF07:
		b.timer.SetTAC(value)
		return
	case addr == 0xFF01:
		b.sb = value
		return
	case addr == 0xFF02:
		b.sc = value & 0x81
		if b.sc&0x80 != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.ifReg |= 1 << 3
			b.sc &^= 0x80
		}
		return
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		b.ppu.CPUWrite(addr, value)
		return
	case addr == 0xFF46:
		b.dma = value
		b.dmaActive = true
		b.dmaSrc = uint16(value) << 8
		b.dmaIndex = 0
		return
	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
		return
	case addr == 0xFF0F:
		b.ifReg = value & 0x1F
		return
	case addr == 0xFFFF:
		b.ie = value
		return
	}
}

// Joypad button bitmasks, re-exported from internal/joypad for callers that
// only import the bus package.
const (
	JoypRight     = joypad.Right
	JoypLeft      = joypad.Left
	JoypUp        = joypad.Up
	JoypDown      = joypad.Down
	JoypA         = joypad.A
	JoypB         = joypad.B
	JoypSelectBtn = joypad.Select
	JoypStart     = joypad.Start
)

// SetJoypadState sets which buttons are currently pressed (bitmask, set bit
// means pressed) and requests the Joypad interrupt on any press edge.
func (b *Bus) SetJoypadState(mask byte) {
	if b.joypad.Poll(mask) {
		b.ifReg |= 1 << 4
	}
}

// SetSerialWriter sets a sink that receives bytes written via the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM loads a DMG boot ROM mapped at 0x0000-0x00FF until 0xFF50 write.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// Tick advances timer, PPU, and OAM DMA by the given number of T-cycles,
// per spec §5's ordering: CPU side effects already landed; Timer, then
// PPU, then DMA consume this step's cycles.
func (b *Bus) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	if b.timer.Tick(cycles) {
		b.ifReg |= 1 << 2
	}
	if b.ppu != nil {
		b.ppu.Tick(cycles)
	}
	for i := 0; i < cycles && b.dmaActive; i++ {
		v := b.readRaw(b.dmaSrc + uint16(b.dmaIndex))
		b.ppu.CPUWrite(0xFE00+uint16(b.dmaIndex), v)
		b.dmaIndex++
		if b.dmaIndex >= 0xA0 {
			b.dmaActive = false
		}
	}
}

type busState struct {
	WRAM      [0x2000]byte
	HRAM      [0x7F]byte
	IE, IF    byte
	SB, SC    byte
	DMA       byte
	DMAActive bool
	DMASrc    uint16
	DMAIdx    int
	BootEn    bool
	Timer     timer.State
	Joypad    joypad.State
}

func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := busState{
		WRAM: b.wram, HRAM: b.hram,
		IE: b.ie, IF: b.ifReg,
		SB: b.sb, SC: b.sc,
		DMA: b.dma, DMAActive: b.dmaActive, DMASrc: b.dmaSrc, DMAIdx: b.dmaIndex,
		BootEn: b.bootEnabled,
		Timer:  b.timer.SaveState(),
		Joypad: b.joypad.SaveState(),
	}
	_ = enc.Encode(s)
	if b.ppu != nil {
		_ = enc.Encode(b.ppu.SaveState())
	} else {
		_ = enc.Encode(ppu.State{})
	}
	_ = enc.Encode(b.cart.SaveState())
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s busState
	if err := dec.Decode(&s); err != nil {
		return
	}
	b.wram = s.WRAM
	b.hram = s.HRAM
	b.ie, b.ifReg = s.IE, s.IF
	b.sb, b.sc = s.SB, s.SC
	b.dma, b.dmaActive, b.dmaSrc, b.dmaIndex = s.DMA, s.DMAActive, s.DMASrc, s.DMAIdx
	b.bootEnabled = s.BootEn
	b.timer.LoadState(s.Timer)
	b.joypad.LoadState(s.Joypad)

	var ps ppu.State
	if err := dec.Decode(&ps); err == nil && b.ppu != nil {
		b.ppu.LoadState(ps)
	}
	var cs []byte
	if err := dec.Decode(&cs); err == nil {
		b.cart.LoadState(cs)
	}
}
