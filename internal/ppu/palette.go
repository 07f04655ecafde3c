package ppu

// shadeColors are the four DMG shades (white..black) as RGBA bytes, in the
// order a 2-bit palette field selects them.
var shadeColors = [4][4]byte{
	{0xFF, 0xFF, 0xFF, 0xFF},
	{0xAA, 0xAA, 0xAA, 0xFF},
	{0x55, 0x55, 0x55, 0xFF},
	{0x00, 0x00, 0x00, 0xFF},
}

// decodePalette unpacks a BGP/OBP0/OBP1 byte into four shade indices, one
// per color id 0..3.
func decodePalette(reg byte) [4]byte {
	var out [4]byte
	for id := 0; id < 4; id++ {
		out[id] = (reg >> (uint(id) * 2)) & 0x03
	}
	return out
}
