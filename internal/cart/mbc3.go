package cart

import (
	"bytes"
	"encoding/gob"
	"time"
)

// nowUnix returns the current wall-clock time in Unix seconds. It is a
// package variable so tests can substitute a deterministic clock.
var nowUnix = func() int64 { return time.Now().Unix() }

// MBC3 implements ROM/RAM banking plus a real-time clock per spec §3/§4.A.
// The RAM-bank-or-RTC-register select (0x4000-0x5FFF) picks an external RAM
// bank for values 0x00-0x03, or an RTC register (seconds, minutes, hours,
// day-low, day-high) for values 0x08-0x0C. A 0->1 transition written to
// 0x6000-0x7FFF atomically latches the live RTC registers so a game sees a
// consistent snapshot across a multi-byte read.
type MBC3 struct {
	rom []byte
	ram []byte

	ramEnabled   bool
	romBank      byte // 7 bits, clamped >= 1
	ramBankOrRtc byte // 0x00-0x03 RAM bank, 0x08-0x0C RTC register
	latchWrite   byte // last byte written to the latch register

	// Live RTC registers, advanced lazily from elapsed wall-clock time.
	rtcSec, rtcMin, rtcHour int
	rtcDay                  int // 0..0x1FF (9 bits)
	rtcHalt, rtcCarry       bool
	lastRTCWallSec          int64

	// Latched snapshot exposed to reads while an RTC register is selected.
	latchedSec, latchedMin, latchedHour int
	latchedDay                          int
	latchedHalt, latchedCarry           bool
}

func NewMBC3(rom []byte, ramSize int) *MBC3 {
	m := &MBC3{rom: rom, romBank: 1, lastRTCWallSec: nowUnix()}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	return m
}

func (m *MBC3) Read(addr uint16) byte {
	m.updateRTC()
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x7F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.ramBankOrRtc >= 0x08 && m.ramBankOrRtc <= 0x0C {
			return m.readRTCRegister()
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		off := int(m.ramBankOrRtc&0x03)*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC3) readRTCRegister() byte {
	switch m.ramBankOrRtc {
	case 0x08:
		return byte(m.latchedSec)
	case 0x09:
		return byte(m.latchedMin)
	case 0x0A:
		return byte(m.latchedHour)
	case 0x0B:
		return byte(m.latchedDay & 0xFF)
	case 0x0C:
		var v byte
		if m.latchedDay > 0xFF {
			v |= 0x01
		}
		if m.latchedHalt {
			v |= 0x40
		}
		if m.latchedCarry {
			v |= 0x80
		}
		return v
	}
	return 0xFF
}

func (m *MBC3) Write(addr uint16, value byte) {
	m.updateRTC()
	switch {
	case addr < 0x2000: // RAM/RTC enable: low nibble must read 0xA
		m.ramEnabled = value&0x0F == 0x0A
	case addr < 0x4000: // ROM bank, low 7 bits, 0 remapped to 1
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000: // RAM bank or RTC register select
		m.ramBankOrRtc = value
	case addr < 0x8000: // latch clock on a 0->1 write
		if m.latchWrite == 0 && value == 1 {
			m.latchRTC()
		}
		m.latchWrite = value
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.ramBankOrRtc >= 0x08 && m.ramBankOrRtc <= 0x0C {
			m.writeRTCRegister(value)
			return
		}
		if len(m.ram) == 0 {
			return
		}
		off := int(m.ramBankOrRtc&0x03)*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC3) writeRTCRegister(value byte) {
	switch m.ramBankOrRtc {
	case 0x08:
		m.rtcSec = int(value)
	case 0x09:
		m.rtcMin = int(value)
	case 0x0A:
		m.rtcHour = int(value)
	case 0x0B:
		m.rtcDay = (m.rtcDay &^ 0xFF) | int(value)
	case 0x0C:
		m.rtcDay = (m.rtcDay &^ 0x100) | (int(value&0x01) << 8)
		m.rtcHalt = value&0x40 != 0
		m.rtcCarry = value&0x80 != 0
	}
}

func (m *MBC3) latchRTC() {
	m.latchedSec, m.latchedMin, m.latchedHour = m.rtcSec, m.rtcMin, m.rtcHour
	m.latchedDay = m.rtcDay
	m.latchedHalt, m.latchedCarry = m.rtcHalt, m.rtcCarry
}

// updateRTC lazily advances the live RTC registers by the number of whole
// seconds elapsed since the last call, carrying into minutes/hours/days.
// A halted clock only resynchronizes its wall-clock reference.
func (m *MBC3) updateRTC() {
	now := nowUnix()
	if m.rtcHalt {
		m.lastRTCWallSec = now
		return
	}
	elapsed := now - m.lastRTCWallSec
	if elapsed <= 0 {
		return
	}
	m.lastRTCWallSec = now

	total := int(elapsed) + m.rtcSec
	m.rtcSec = total % 60
	carry := total / 60
	if carry == 0 {
		return
	}
	total = carry + m.rtcMin
	m.rtcMin = total % 60
	carry = total / 60
	if carry == 0 {
		return
	}
	total = carry + m.rtcHour
	m.rtcHour = total % 24
	carry = total / 24
	if carry == 0 {
		return
	}
	m.rtcDay += carry
	if m.rtcDay > 0x1FF {
		m.rtcDay &= 0x1FF
		m.rtcCarry = true
	}
}

type mbc3RTCState struct {
	Sec, Min, Hour, Day                 int
	Halt, Carry                         bool
	LastWall                            int64
	LatchedSec, LatchedMin, LatchedHour int
	LatchedDay                          int
	LatchedHalt, LatchedCarry           bool
}

func (m *MBC3) rtcSnapshot() mbc3RTCState {
	return mbc3RTCState{
		Sec: m.rtcSec, Min: m.rtcMin, Hour: m.rtcHour, Day: m.rtcDay,
		Halt: m.rtcHalt, Carry: m.rtcCarry, LastWall: m.lastRTCWallSec,
		LatchedSec: m.latchedSec, LatchedMin: m.latchedMin, LatchedHour: m.latchedHour,
		LatchedDay: m.latchedDay, LatchedHalt: m.latchedHalt, LatchedCarry: m.latchedCarry,
	}
}

func (m *MBC3) restoreRTC(s mbc3RTCState) {
	m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = s.Sec, s.Min, s.Hour, s.Day
	m.rtcHalt, m.rtcCarry, m.lastRTCWallSec = s.Halt, s.Carry, s.LastWall
	m.latchedSec, m.latchedMin, m.latchedHour = s.LatchedSec, s.LatchedMin, s.LatchedHour
	m.latchedDay, m.latchedHalt, m.latchedCarry = s.LatchedDay, s.LatchedHalt, s.LatchedCarry
}

// BatteryBacked persistence includes the RTC: on real hardware the clock
// keeps ticking off a coin-cell battery, so its registers live alongside
// cartridge RAM in the .sav payload.
type mbc3RAMFile struct {
	RAM []byte
	RTC mbc3RTCState
}

func (m *MBC3) SaveRAM() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc3RAMFile{RAM: m.ram, RTC: m.rtcSnapshot()})
	return buf.Bytes()
}

func (m *MBC3) LoadRAM(data []byte) {
	var f mbc3RAMFile
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		return
	}
	if len(f.RAM) > 0 {
		if m.ram == nil {
			m.ram = make([]byte, len(f.RAM))
		}
		copy(m.ram, f.RAM)
	}
	m.restoreRTC(f.RTC)
}

type mbc3State struct {
	RAMEnabled   bool
	RomBank      byte
	RamBankOrRtc byte
	LatchWrite   byte
	RAM          []byte
	RTC          mbc3RTCState
}

func (m *MBC3) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc3State{
		RAMEnabled: m.ramEnabled, RomBank: m.romBank, RamBankOrRtc: m.ramBankOrRtc,
		LatchWrite: m.latchWrite, RAM: m.ram, RTC: m.rtcSnapshot(),
	})
	return buf.Bytes()
}

func (m *MBC3) LoadState(data []byte) {
	var s mbc3State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	m.ramEnabled, m.romBank, m.ramBankOrRtc, m.latchWrite = s.RAMEnabled, s.RomBank, s.RamBankOrRtc, s.LatchWrite
	if len(s.RAM) > 0 {
		if m.ram == nil {
			m.ram = make([]byte, len(s.RAM))
		}
		copy(m.ram, s.RAM)
	}
	m.restoreRTC(s.RTC)
}
