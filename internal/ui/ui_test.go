package ui

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/config"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/engine"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/input"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/loader"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/registry"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/testcard"
)

func TestDefaultKeymap_CoversEveryControl(t *testing.T) {
	seen := map[abi.Control]bool{}
	for _, c := range DefaultKeymap() {
		seen[c] = true
	}
	assert.Len(t, seen, abi.NumControls)
}

func TestParseKeymap(t *testing.T) {
	km, err := ParseKeymap(map[string]string{"Space": "start", "Z": "b"})
	require.NoError(t, err)
	assert.Equal(t, abi.ControlStart, km[ebiten.KeySpace])
	assert.Equal(t, abi.ControlB, km[ebiten.KeyZ])
	assert.Equal(t, abi.ControlStart, km[ebiten.KeyEnter], "defaults kept")

	_, err = ParseKeymap(map[string]string{"NoSuchKey": "a"})
	assert.Error(t, err)
	_, err = ParseKeymap(map[string]string{"Space": "turbo"})
	assert.ErrorContains(t, err, "turbo")
}

func TestKeymap_Apply(t *testing.T) {
	pad := input.NewPad("kb", 0)
	var got []input.Event
	pad.Subscribe(func(_ *input.Pad, e input.Event) { got = append(got, e) })

	km := DefaultKeymap()
	km.apply(pad, []ebiten.Key{ebiten.KeyZ, ebiten.KeyF1}, []ebiten.Key{ebiten.KeyEnter})
	require.Len(t, got, 2)
	assert.Equal(t, input.Event{Type: input.ButtonPress, Control: abi.ControlA, Value: 1, Pressed: true}, got[0])
	assert.Equal(t, input.ButtonRelease, got[1].Type)
	assert.Equal(t, abi.ControlStart, got[1].Control)

	assert.True(t, km.bound(ebiten.KeyZ))
	assert.False(t, km.bound(ebiten.KeyP))
}

func TestMenu_Navigation(t *testing.T) {
	var m menu
	assert.False(t, m.open())

	m.mode = menuMain
	m.move(-1)
	assert.Equal(t, 0, m.idx)
	for i := 0; i < 10; i++ {
		m.move(1)
	}
	assert.Equal(t, itemQuit, m.idx)

	m.showROMs(nil)
	m.move(1)
	assert.Zero(t, m.sel)
	assert.Nil(t, m.visible(5))
}

func TestMenu_ScrollKeepsSelectionVisible(t *testing.T) {
	var m menu
	m.showROMs([]string{"a", "b", "c", "d", "e", "f"})

	for i := 0; i < 4; i++ {
		m.move(1)
		m.scroll(3)
	}
	assert.Equal(t, 4, m.sel)
	assert.Equal(t, 2, m.off)
	assert.Equal(t, []string{"c", "d", "e"}, m.visible(3))

	for i := 0; i < 4; i++ {
		m.move(-1)
		m.scroll(3)
	}
	assert.Equal(t, 0, m.off)
	assert.Equal(t, []string{"a", "b", "c"}, m.visible(3))
}

func TestFindROMs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.nes", "a.nes", ".hidden"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{1}, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	assert.Equal(t, []string{filepath.Join(dir, "a.nes"), filepath.Join(dir, "b.nes")}, findROMs(dir))
	assert.Nil(t, findROMs(filepath.Join(dir, "missing")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
	assert.Equal(t, "ab", truncate("abcdefghij", 2))
}

type fakeOutput struct {
	playing bool
	muted   bool
}

func (o *fakeOutput) Play()           { o.playing = true }
func (o *fakeOutput) Pause()          { o.playing = false }
func (o *fakeOutput) IsPlaying() bool { return o.playing }
func (o *fakeOutput) SetMuted(m bool) { o.muted = m }

func TestSyncAudio(t *testing.T) {
	out := &fakeOutput{}
	a := NewApp(engine.New(), Options{Audio: out})

	a.syncAudio()
	assert.True(t, out.playing)

	a.fast = true
	a.syncAudio()
	assert.True(t, out.muted)

	a.paused = true
	a.syncAudio()
	assert.False(t, out.playing)

	a.paused, a.fast = false, false
	a.menu.mode = menuMain
	a.syncAudio()
	assert.False(t, out.playing)
	assert.False(t, out.muted)

	NewApp(engine.New(), Options{}).syncAudio()
}

func TestSaveScreenshot(t *testing.T) {
	r := registry.New()
	defer r.Close()
	_, err := testcard.Register(r, nil, "")
	require.NoError(t, err)

	bundle := loader.BundlePath(t.TempDir(), "Testcard")
	static := loader.NewStatic()
	static.Provide(loader.LibraryPath(bundle), r.Descriptor)
	e := engine.New(engine.WithOpener(static.Open))
	defer e.Close()

	dir := t.TempDir()
	a := NewApp(e, Options{Window: config.Window{ScreenshotDir: dir}})
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	_, err = a.saveScreenshot(now)
	assert.ErrorIs(t, err, ErrNoFrame)

	require.NoError(t, e.LoadPlugin(bundle, abi.TestcardID, ""))
	require.True(t, e.Step())
	path, err := a.saveScreenshot(now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "screenshot_20240501_123000.png"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, abi.FrameWidth, img.Bounds().Dx())
	assert.Equal(t, abi.FrameHeight, img.Bounds().Dy())
}
