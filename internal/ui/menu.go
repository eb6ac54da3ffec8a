package ui

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

type menuMode int

const (
	menuClosed menuMode = iota
	menuMain
	menuROMs
)

const (
	itemResume = iota
	itemReset
	itemROMs
	itemScreenshot
	itemQuit
)

var mainItems = []string{"Resume", "Reset", "Switch ROM", "Screenshot", "Quit"}

const (
	lineH    = 14
	romBaseY = 40
)

// menu is the overlay state. It knows nothing about ebiten so that the
// navigation rules can be tested alone.
type menu struct {
	mode menuMode
	idx  int

	roms []string
	sel  int
	off  int
}

func (m *menu) open() bool { return m.mode != menuClosed }

func (m *menu) move(delta int) {
	switch m.mode {
	case menuMain:
		m.idx = clamp(m.idx+delta, 0, len(mainItems)-1)
	case menuROMs:
		if len(m.roms) > 0 {
			m.sel = clamp(m.sel+delta, 0, len(m.roms)-1)
		}
	}
}

// scroll keeps the selected ROM inside a window of rows lines.
func (m *menu) scroll(rows int) {
	rows = max(rows, 1)
	if m.sel < m.off {
		m.off = m.sel
	}
	if m.sel >= m.off+rows {
		m.off = m.sel - rows + 1
	}
	m.off = clamp(m.off, 0, max(len(m.roms)-1, 0))
}

// visible returns the window of ROMs to draw.
func (m *menu) visible(rows int) []string {
	end := min(m.off+max(rows, 1), len(m.roms))
	if m.off >= end {
		return nil
	}
	return m.roms[m.off:end]
}

func (m *menu) showROMs(roms []string) {
	m.mode = menuROMs
	m.roms = roms
	m.sel, m.off = 0, 0
}

func clamp(v, lo, hi int) int { return max(lo, min(v, hi)) }

// findROMs lists the regular, non-hidden files in dir.
func findROMs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out
}

func (a *App) updateMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) {
		a.menu.move(-1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		a.menu.move(1)
	}
	back := inpututil.IsKeyJustPressed(ebiten.KeyBackspace)
	enter := inpututil.IsKeyJustPressed(ebiten.KeyEnter)

	switch a.menu.mode {
	case menuMain:
		if back {
			a.closeMenu()
			return
		}
		if enter {
			a.selectMain(a.menu.idx)
		}
	case menuROMs:
		a.menu.scroll((a.curH - romBaseY) / lineH)
		if back {
			a.menu.mode = menuMain
			return
		}
		if enter && len(a.menu.roms) > 0 {
			a.switchROM(a.menu.roms[a.menu.sel])
			a.menu.mode = menuMain
		}
	}
}

func (a *App) selectMain(item int) {
	switch item {
	case itemResume:
		a.closeMenu()
	case itemReset:
		a.reset()
		a.closeMenu()
	case itemROMs:
		a.menu.showROMs(findROMs(a.romsDir))
	case itemScreenshot:
		a.screenshot()
	case itemQuit:
		a.quit = true
	}
}

func (a *App) drawMenu(screen *ebiten.Image) {
	if a.shade == nil {
		a.shade = ebiten.NewImage(a.curW, a.curH)
		a.shade.Fill(color.RGBA{0, 0, 0, 160})
	}
	screen.DrawImage(a.shade, nil)

	switch a.menu.mode {
	case menuMain:
		ebitenutil.DebugPrintAt(screen, "Menu:", 10, 10)
		for i, s := range mainItems {
			prefix := "  "
			if i == a.menu.idx {
				prefix = "> "
			}
			ebitenutil.DebugPrintAt(screen, prefix+s, 10, 10+(i+1)*lineH)
		}
		hint := truncate("Esc: close  P: pause  R: reset  F12: screenshot", a.maxChars(10))
		ebitenutil.DebugPrintAt(screen, hint, 10, 10+(len(mainItems)+2)*lineH)
	case menuROMs:
		ebitenutil.DebugPrintAt(screen, truncate("Select ROM (Enter loads)", a.maxChars(10)), 10, 10)
		ebitenutil.DebugPrintAt(screen, truncate("Dir: "+a.romsDir, a.maxChars(10)), 10, 24)
		if len(a.menu.roms) == 0 {
			ebitenutil.DebugPrintAt(screen, "No ROMs found", 10, romBaseY)
			return
		}
		rows := (a.curH - romBaseY) / lineH
		for i, p := range a.menu.visible(rows) {
			prefix := "  "
			if a.menu.off+i == a.menu.sel {
				prefix = "> "
			}
			name := truncate(filepath.Base(p), a.maxChars(10)-2)
			ebitenutil.DebugPrintAt(screen, prefix+name, 10, romBaseY+i*lineH)
		}
		if a.menu.off > 0 {
			ebitenutil.DebugPrintAt(screen, "^", 2, romBaseY)
		}
		if a.menu.off+rows < len(a.menu.roms) {
			ebitenutil.DebugPrintAt(screen, "v", 2, romBaseY+(rows-1)*lineH)
		}
	}
}

// maxChars is how many debug-font glyphs fit after a left margin.
func (a *App) maxChars(margin int) int { return max((a.curW-margin)/6, 1) }

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
