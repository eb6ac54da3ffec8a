// Package ui shows a running engine in an ebiten window. The keyboard is
// exposed as an input.Source with one pad, so key presses reach the core
// through the same path as any other controller.
package ui

import (
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"go.uber.org/zap"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/config"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/engine"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/input"
)

const (
	// extra ticks per update while fast-forward is held
	fastForward = 4
	toastFrames = 120
)

var ErrNoFrame = errors.New("ui: no frame yet")

// Options describe what the window runs.
type Options struct {
	Window  config.Window
	ROMsDir string
	Bundle  string // bundle path, used when switching ROMs
	CoreID  string
	Keys    Keymap // nil means DefaultKeymap
	Audio   Output // optional
	Logger  *zap.Logger
}

type App struct {
	cfg     config.Window
	romsDir string
	bundle  string
	coreID  string
	log     *zap.Logger

	eng    *engine.Engine
	out    Output
	keys   Keymap
	source *input.Source
	pad    *input.Pad

	tex   *ebiten.Image
	shade *ebiten.Image
	frame []byte

	paused bool
	fast   bool
	quit   bool
	menu   menu

	toastMsg string
	toastTTL int

	pressed  []ebiten.Key
	released []ebiten.Key
	curW     int
	curH     int
}

// NewApp returns a window for eng. Register Source with an input.Manager
// that forwards to eng to make the keyboard reach the core.
func NewApp(eng *engine.Engine, opts Options) *App {
	if opts.Window.Scale <= 0 {
		opts.Window.Scale = 2
	}
	if opts.Keys == nil {
		opts.Keys = DefaultKeymap()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	a := &App{
		cfg:     opts.Window,
		romsDir: opts.ROMsDir,
		bundle:  opts.Bundle,
		coreID:  opts.CoreID,
		log:     opts.Logger,
		eng:     eng,
		out:     opts.Audio,
		keys:    opts.Keys,
		source:  input.NewSource("keyboard"),
		pad:     input.NewPad("Keyboard", 0),
		frame:   make([]byte, abi.FrameBytes),
		curW:    abi.FrameWidth,
		curH:    abi.FrameHeight,
	}
	a.source.Connect(a.pad)
	return a
}

// Source is the keyboard controller source.
func (a *App) Source() *input.Source { return a.source }

// Run opens the window, starts the engine and blocks until the window is
// closed or Quit is chosen from the menu.
func (a *App) Run() error {
	ebiten.SetWindowTitle(a.title())
	ebiten.SetWindowSize(abi.FrameWidth*a.cfg.Scale, abi.FrameHeight*a.cfg.Scale)
	a.eng.Start()
	defer a.eng.Stop()
	a.syncAudio()
	if a.out != nil {
		defer a.out.Pause()
	}
	return ebiten.RunGame(a)
}

func (a *App) title() string {
	if id := a.eng.CoreID(); id != "" {
		return a.cfg.Title + " - [" + id + "]"
	}
	return a.cfg.Title
}

func (a *App) Update() error {
	if a.quit {
		return ebiten.Termination
	}
	if a.toastTTL > 0 {
		a.toastTTL--
	}
	defer a.syncAudio()

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		if a.menu.open() {
			a.closeMenu()
		} else {
			a.openMenu()
		}
		return nil
	}
	if a.menu.open() {
		a.updateMenu()
		return nil
	}

	a.pressed = inpututil.AppendJustPressedKeys(a.pressed[:0])
	a.released = inpututil.AppendJustReleasedKeys(a.released[:0])
	a.keys.apply(a.pad, a.pressed, a.released)

	if a.hotkey(ebiten.KeyP) {
		a.setPaused(!a.paused)
	}
	if a.hotkey(ebiten.KeyR) {
		a.reset()
	}
	if a.paused && a.hotkey(ebiten.KeyN) {
		a.eng.Step()
	}
	if a.hotkey(ebiten.KeyF12) {
		a.screenshot()
	}

	a.fast = !a.keys.bound(ebiten.KeyTab) && ebiten.IsKeyPressed(ebiten.KeyTab)
	if a.fast && !a.paused {
		for i := 0; i < fastForward; i++ {
			a.eng.Step()
		}
	}
	return nil
}

// hotkey reports a fresh press of k unless k is bound to the pad.
func (a *App) hotkey(k ebiten.Key) bool {
	return !a.keys.bound(k) && inpututil.IsKeyJustPressed(k)
}

func (a *App) setPaused(p bool) {
	a.paused = p
	if p {
		a.eng.Stop()
	} else {
		a.eng.Start()
	}
}

// openMenu halts the core and lets go of every held control so nothing
// stays pressed while the keyboard drives the menu.
func (a *App) openMenu() {
	for k, c := range a.keys {
		if ebiten.IsKeyPressed(k) {
			a.pad.Release(c)
		}
	}
	a.eng.Stop()
	a.menu.mode = menuMain
	a.menu.idx = 0
}

func (a *App) closeMenu() {
	a.menu.mode = menuClosed
	if !a.paused {
		a.eng.Start()
	}
}

func (a *App) reset() {
	if err := a.eng.Reset(); err != nil {
		a.toast("Reset failed: " + err.Error())
		return
	}
	a.toast("Reset")
}

func (a *App) switchROM(path string) {
	if err := a.eng.LoadPlugin(a.bundle, a.coreID, path); err != nil {
		a.log.Warn("switch rom", zap.String("rom", path), zap.Error(err))
		a.toast("ROM load failed: " + err.Error())
		return
	}
	a.toast("Loaded ROM: " + filepath.Base(path))
	ebiten.SetWindowTitle(a.title())
}

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastTTL = toastFrames
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(abi.FrameWidth, abi.FrameHeight)
	}
	if a.eng.CopyVideo(a.frame) {
		a.tex.WritePixels(a.frame)
	}
	screen.DrawImage(a.tex, nil)

	if a.menu.open() {
		a.drawMenu(screen)
		return
	}
	if a.paused {
		ebitenutil.DebugPrintAt(screen, "PAUSED", 10, 10)
	}
	if a.toastTTL > 0 {
		ebitenutil.DebugPrintAt(screen, truncate(a.toastMsg, a.maxChars(10)), 10, a.curH-20)
	}
}

func (a *App) Layout(outW, outH int) (int, int) { return a.curW, a.curH }

func (a *App) screenshot() {
	path, err := a.saveScreenshot(time.Now())
	if err != nil {
		a.log.Warn("screenshot", zap.Error(err))
		a.toast("Screenshot failed: " + err.Error())
		return
	}
	a.log.Info("screenshot", zap.String("path", path))
	a.toast("Saved " + filepath.Base(path))
}

func (a *App) saveScreenshot(now time.Time) (string, error) {
	img, ok := a.eng.Snapshot()
	if !ok {
		return "", ErrNoFrame
	}
	name := fmt.Sprintf("screenshot_%s.png", now.Format("20060102_150405"))
	path := filepath.Join(a.cfg.ScreenshotDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return "", err
	}
	return path, nil
}
