package cart

import "fmt"

// Cartridge defines the minimal interface the bus needs for ROM/RAM banking.
// Implementations can be ROM-only or MBC variants. Addresses are CPU addresses.
type Cartridge interface {
	// Read returns a byte for ROM (0x0000-0x7FFF) and external RAM/RTC
	// (0xA000-0xBFFF).
	Read(addr uint16) byte
	// Write handles MBC control writes (0x0000-0x7FFF) and external RAM
	// writes (0xA000-0xBFFF).
	Write(addr uint16, value byte)
	// SaveState/LoadState serialize internal banking registers, external
	// RAM, and (for MBC3) RTC state for save states.
	SaveState() []byte
	LoadState(data []byte)
}

// BatteryBacked is an optional capability for cartridges with external RAM
// that should be persisted outside of a full save state (e.g. a .sav file
// next to the ROM).
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// UnsupportedCartridgeError is a configuration error: the ROM's header names
// a cartridge type this core does not implement (see spec §7, Config errors).
type UnsupportedCartridgeError struct {
	CartType byte
}

func (e *UnsupportedCartridgeError) Error() string {
	return fmt.Sprintf("unsupported cartridge type %#02x", e.CartType)
}

// NewCartridge picks an implementation based on the ROM header. An
// unsupported cartridge type is a fatal configuration error: the caller
// must not proceed to construct an emulator from it.
func NewCartridge(rom []byte) (Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}
	switch h.CartType {
	case 0x00:
		return NewROMOnly(rom), nil
	case 0x01, 0x02, 0x03: // MBC1 (+RAM, +RAM+Battery)
		return NewMBC1(rom, h.RAMSizeBytes), nil
	case 0x0F, 0x10, 0x11, 0x12, 0x13: // MBC3 (+RAM/Battery/Timer combos)
		return NewMBC3(rom, h.RAMSizeBytes), nil
	default:
		return nil, &UnsupportedCartridgeError{CartType: h.CartType}
	}
}
