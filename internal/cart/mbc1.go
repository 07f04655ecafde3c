package cart

import (
	"bytes"
	"encoding/gob"
)

// MBC1 implements ROM/RAM banking per spec §3/§4.A: a 5-bit bank1 register
// (clamped >=1 before use), a 2-bit bank2 register, and a simple/advanced
// mode select that changes what bank2 feeds into.
type MBC1 struct {
	rom []byte
	ram []byte

	ramEnable bool
	bank1     byte // 5 bits, as last written (0 is remapped to 1 on use)
	bank2     byte // 2 bits
	mode      byte // 0 = simple, 1 = advanced

	romBankMask int // rom_banks - 1
}

func NewMBC1(rom []byte, ramSize int) *MBC1 {
	m := &MBC1{rom: rom, bank1: 1}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	banks := len(rom) / 0x4000
	if banks < 1 {
		banks = 1
	}
	m.romBankMask = banks - 1
	return m
}

// lowerBank is the bank mapped into 0x0000-0x3FFF: 0 in simple mode, or
// (bank2<<5) in advanced mode (masked by the ROM's actual bank count).
func (m *MBC1) lowerBank() int {
	if m.mode == 0 {
		return 0
	}
	return (int(m.bank2) << 5) & m.romBankMask
}

// upperBank is the bank mapped into 0x4000-0x7FFF: (bank2<<5)|bank1, with
// bank1 clamped to at least 1 so the upper window can never alias bank 0.
func (m *MBC1) upperBank() int {
	b1 := m.bank1 & 0x1F
	if b1 == 0 {
		b1 = 1
	}
	return (int(m.bank2)<<5 | int(b1)) & m.romBankMask
}

func (m *MBC1) ramBank() int {
	if m.mode == 1 {
		return int(m.bank2) & 0x03
	}
	return 0
}

func (m *MBC1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		off := m.lowerBank()*0x4000 + int(addr)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr < 0x8000:
		off := m.upperBank()*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnable || len(m.ram) == 0 {
			return 0xFF
		}
		off := m.ramBank()*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000: // RAM enable: low nibble must read 0xA
		m.ramEnable = value&0x0F == 0x0A
	case addr < 0x4000: // bank1, low 5 bits
		m.bank1 = value & 0x1F
	case addr < 0x6000: // bank2, 2 bits
		m.bank2 = value & 0x03
	case addr < 0x8000: // mode select
		m.mode = value & 0x01
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnable || len(m.ram) == 0 {
			return
		}
		off := m.ramBank()*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC1) SaveRAM() []byte {
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC1) LoadRAM(data []byte) {
	copy(m.ram, data)
}

type mbc1State struct {
	RAMEnable bool
	Bank1     byte
	Bank2     byte
	Mode      byte
	RAM       []byte
}

func (m *MBC1) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc1State{
		RAMEnable: m.ramEnable, Bank1: m.bank1, Bank2: m.bank2, Mode: m.mode, RAM: m.ram,
	})
	return buf.Bytes()
}

func (m *MBC1) LoadState(data []byte) {
	var s mbc1State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	m.ramEnable, m.bank1, m.bank2, m.mode = s.RAMEnable, s.Bank1, s.Bank2, s.Mode
	if len(s.RAM) > 0 {
		copy(m.ram, s.RAM)
	}
}
