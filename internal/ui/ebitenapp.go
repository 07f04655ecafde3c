package ui

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/tinroof/dmgcore/internal/emu"
)

// App is the windowed ebiten driver: keyboard input, frame pacing, a small
// ROM-picker/save-slot overlay, and screenshotting.
type App struct {
	cfg Config
	m   *emu.Emulator
	tex *ebiten.Image

	romPath string
	savPath string

	paused bool
	fast   bool

	lastTime time.Time
	frameAcc float64

	showMenu bool
	menuMode string // "main" | "rom"
	menuIdx  int

	romList []string
	romSel  int

	currentSlot int

	toastMsg   string
	toastUntil time.Time
}

// NewApp wires an already-constructed Emulator to a window.
func NewApp(cfg Config, m *emu.Emulator, romPath string) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	a := &App{cfg: cfg, m: m, romPath: romPath, lastTime: time.Now()}
	if romPath != "" && strings.HasSuffix(strings.ToLower(romPath), ".gb") {
		a.savPath = strings.TrimSuffix(romPath, ".gb") + ".sav"
	}
	if romPath == "" {
		a.showMenu = true
		a.menuMode = "rom"
		a.romList = a.findROMs()
	}
	return a
}

func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) Update() error {
	if !a.showMenu {
		var btn emu.Buttons
		if ebiten.IsKeyPressed(ebiten.KeyRight) {
			btn.Right = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyLeft) {
			btn.Left = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyUp) {
			btn.Up = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyDown) {
			btn.Down = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyZ) {
			btn.A = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyX) {
			btn.B = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyEnter) {
			btn.Start = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyShiftRight) {
			btn.Select = true
		}
		if a.m != nil {
			a.m.SetButtons(btn)
		}
	} else if a.m != nil {
		a.m.SetButtons(emu.Buttons{})
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)

	if !a.showMenu && a.paused && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		if a.m != nil {
			a.m.StepFrame()
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) && !(a.showMenu && a.menuMode == "rom") {
		a.showMenu = !a.showMenu
		if a.showMenu {
			a.menuMode = "main"
			a.menuIdx = 0
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	for i, k := range []ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4} {
		if inpututil.IsKeyJustPressed(k) {
			a.currentSlot = i
			a.toast(fmt.Sprintf("Slot set to %d", i+1))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		if err := a.saveSlot(a.currentSlot); err == nil {
			a.toast(fmt.Sprintf("Saved slot %d", a.currentSlot+1))
		} else {
			a.toast("Save failed: " + err.Error())
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		if err := a.loadSlot(a.currentSlot); err == nil {
			a.toast(fmt.Sprintf("Loaded slot %d", a.currentSlot+1))
		} else {
			a.toast("Load failed: " + err.Error())
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		_ = a.saveScreenshot()
	}

	if a.showMenu {
		a.updateMenu()
	}

	if !a.showMenu && !a.paused && a.m != nil {
		now := time.Now()
		dt := now.Sub(a.lastTime).Seconds()
		if dt < 0 {
			dt = 0
		}
		a.lastTime = now
		gbFps := 4194304.0 / 70224.0 // ~59.7275
		speed := 1.0
		if a.fast {
			speed = 4.0
		}
		a.frameAcc += dt * gbFps * speed
		steps := 0
		for a.frameAcc >= 1.0 && steps < 10 {
			a.m.StepFrame()
			a.frameAcc -= 1.0
			steps++
		}
	}
	return nil
}

func (a *App) updateMenu() {
	switch a.menuMode {
	case "main":
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
			a.menuIdx--
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < 3 {
			a.menuIdx++
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
			switch a.menuIdx {
			case 0:
				if err := a.saveSlot(a.currentSlot); err == nil {
					a.toast(fmt.Sprintf("Saved slot %d", a.currentSlot+1))
				} else {
					a.toast("Save failed: " + err.Error())
				}
			case 1:
				if err := a.loadSlot(a.currentSlot); err == nil {
					a.toast(fmt.Sprintf("Loaded slot %d", a.currentSlot+1))
				} else {
					a.toast("Load failed: " + err.Error())
				}
			case 2:
				a.romList = a.findROMs()
				a.romSel = 0
				a.menuMode = "rom"
			case 3:
				a.showMenu = false
			}
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
			a.showMenu = false
		}
	case "rom":
		n := len(a.romList)
		if n == 0 {
			if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
				a.menuMode = "main"
			}
			return
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.romSel > 0 {
			a.romSel--
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.romSel < n-1 {
			a.romSel++
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
			path := a.romList[a.romSel]
			if err := a.loadROM(path); err == nil {
				a.toast("Loaded ROM: " + filepath.Base(path))
			} else {
				a.toast("ROM load failed: " + err.Error())
			}
			a.menuMode = "main"
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
			a.menuMode = "main"
		}
	}
}

func (a *App) loadROM(path string) error {
	e, err := emu.LoadROMFromFile(path, emu.Config{})
	if err != nil {
		return err
	}
	a.m = e
	a.romPath = path
	if strings.HasSuffix(strings.ToLower(path), ".gb") {
		a.savPath = strings.TrimSuffix(path, ".gb") + ".sav"
		if data, err := os.ReadFile(a.savPath); err == nil {
			a.m.LoadBatteryRAM(data)
		}
	}
	title := a.cfg.Title + " - [" + filepath.Base(path) + "]"
	ebiten.SetWindowTitle(title)
	return nil
}

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

func (a *App) findROMs() []string {
	var files []string
	entries, err := os.ReadDir(a.cfg.ROMsDir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".gb") {
			files = append(files, filepath.Join(a.cfg.ROMsDir, e.Name()))
		}
	}
	sort.Strings(files)
	return files
}

func (a *App) statePath(slot int) string {
	base := "unknown.gb"
	if a.romPath != "" {
		base = a.romPath
	}
	return fmt.Sprintf("%s.slot%d.savestate", base, slot)
}

func (a *App) saveSlot(slot int) error {
	if a.m == nil {
		return fmt.Errorf("no ROM loaded")
	}
	return os.WriteFile(a.statePath(slot), a.m.SaveState(), 0644)
}

func (a *App) loadSlot(slot int) error {
	if a.m == nil {
		return fmt.Errorf("no ROM loaded")
	}
	data, err := os.ReadFile(a.statePath(slot))
	if err != nil {
		return err
	}
	return a.m.LoadState(data)
}

// SaveBatteryRAM persists the current cartridge's battery RAM to its .sav
// path, if any.
func (a *App) SaveBatteryRAM() {
	if a.m == nil || a.savPath == "" {
		return
	}
	if data, ok := a.m.BatteryRAM(); ok {
		_ = os.WriteFile(a.savPath, data, 0644)
	}
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	if a.m != nil {
		a.tex.WritePixels(a.m.Framebuffer())
	}
	screen.DrawImage(a.tex, nil)

	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 6, 4)
	}

	if a.showMenu {
		overlay := ebiten.NewImage(160, 144)
		overlay.Fill(color.RGBA{0, 0, 0, 140})
		screen.DrawImage(overlay, nil)
		switch a.menuMode {
		case "main":
			lines := []string{
				fmt.Sprintf("Save state (slot %d)", a.currentSlot+1),
				fmt.Sprintf("Load state (slot %d)", a.currentSlot+1),
				"Switch ROM",
				"Close",
			}
			for i, s := range lines {
				prefix := "  "
				if i == a.menuIdx {
					prefix = "> "
				}
				ebitenutil.DebugPrintAt(screen, prefix+s, 10, 10+i*14)
			}
			ebitenutil.DebugPrintAt(screen, "F5: Save  F9: Load  1-4: Slot  F11: Fullscreen", 10, 10+len(lines)*14)
		case "rom":
			ebitenutil.DebugPrintAt(screen, "Select ROM (Enter to load, Esc to return)", 10, 10)
			for i, p := range a.romList {
				prefix := "  "
				if i == a.romSel {
					prefix = "> "
				}
				ebitenutil.DebugPrintAt(screen, prefix+filepath.Base(p), 10, 24+i*14)
			}
		}
	}
}

func (a *App) Layout(outW, outH int) (int, int) { return 160, 144 }

func (a *App) saveScreenshot() error {
	if a.m == nil {
		return fmt.Errorf("no ROM loaded")
	}
	fb := a.m.Framebuffer()
	img := &image.RGBA{
		Pix:    make([]byte, len(fb)),
		Stride: 4 * 160,
		Rect:   image.Rect(0, 0, 160, 144),
	}
	copy(img.Pix, fb)
	ts := time.Now().Format("20060102_150405")
	name := fmt.Sprintf("screenshot_%s.png", ts)
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
