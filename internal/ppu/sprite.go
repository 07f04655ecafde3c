package ppu

import "sort"

// Sprite is one OAM entry selected for the current scanline. X and Y are
// already translated to screen space (raw OAM X minus 8, raw OAM Y minus 16).
type Sprite struct {
	X        int
	Y        int
	Tile     byte
	Attr     byte
	OAMIndex int
}

// scanOAM walks all 40 OAM entries and returns up to 10 sprites visible on
// the given line, per spec §4.F's OAM scan rule.
func scanOAM(oam *[0xA0]byte, ly byte, tall bool) []Sprite {
	size := 8
	if tall {
		size = 16
	}
	var out []Sprite
	for i := 0; i < 40 && len(out) < 10; i++ {
		base := i * 4
		rawY := oam[base+0]
		rawX := oam[base+1]
		tile := oam[base+2]
		attr := oam[base+3]

		spriteY := int(rawY) - 16
		if int(ly) < spriteY || int(ly) >= spriteY+size {
			continue
		}
		if rawX == 0 || rawX >= 168 {
			continue
		}
		out = append(out, Sprite{
			X: int(rawX) - 8, Y: spriteY, Tile: tile, Attr: attr, OAMIndex: i,
		})
	}
	return out
}

// ComposeSpriteLine overlays up to 10 selected sprites onto a rendered BG
// color-index line, honoring X/Y flip, 8x16 tile-index LSB clearing,
// transparency (color id 0), and BG-priority suppression. Sprites are
// stable-sorted ascending by X then OAM index and composited in reverse
// order so the lowest-X (highest priority) sprite overwrites later ones.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, tall bool) [160]byte {
	var out [160]byte

	ordered := make([]Sprite, len(sprites))
	copy(ordered, sprites)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].X != ordered[j].X {
			return ordered[i].X < ordered[j].X
		}
		return ordered[i].OAMIndex < ordered[j].OAMIndex
	})

	for i := len(ordered) - 1; i >= 0; i-- {
		s := ordered[i]
		size := 8
		tile := s.Tile
		if tall {
			size = 16
			tile &^= 0x01
		}
		yFlip := s.Attr&0x40 != 0
		xFlip := s.Attr&0x20 != 0
		bgPriority := s.Attr&0x80 != 0

		spriteY := s.Y
		row := int(ly) - spriteY
		if yFlip {
			row = size - 1 - row
		}
		tileNum := uint16(tile)
		if tall {
			tileNum &^= 0x01
			if row >= 8 {
				tileNum |= 0x01
				row -= 8
			}
		}
		base := 0x8000 + tileNum*16 + uint16(row)*2
		lo := mem.Read(base)
		hi := mem.Read(base + 1)

		for col := 0; col < 8; col++ {
			screenX := s.X + col
			if screenX < 0 || screenX >= 160 {
				continue
			}
			bit := col
			if !xFlip {
				bit = 7 - col
			}
			ci := ((hi>>uint(bit))&1)<<1 | ((lo >> uint(bit)) & 1)
			if ci == 0 {
				continue
			}
			if bgPriority && bgci[screenX] != 0 {
				continue
			}
			out[screenX] = ci | 0x80 | boolByte(s.Attr&0x10 != 0)<<4
		}
	}
	return out
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
