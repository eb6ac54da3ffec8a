// Package testcard is a GameCore that needs no game: it plays a tone and
// draws colour bars, and reacts to buttons. It exercises the whole plugin
// path, from registry thunks to the audio ring buffer, without an emulator.
package testcard

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/registry"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/ringbuffer"
)

const (
	SampleRate     = 48000
	SamplesPerTick = SampleRate / abi.FrameRate

	// ring holds this many ticks of audio
	bufferedTicks = 5
	sampleBytes   = 2

	// SettingsFile is read from the bundle directory on Prepare.
	SettingsFile = "testcard.yaml"
)

// Settings are the optional bundle resource values.
type Settings struct {
	ToneHz float64 `yaml:"tone_hz"`
	Volume float64 `yaml:"volume"`
}

func (s *Settings) defaults() {
	if s.ToneHz <= 0 {
		s.ToneHz = 440
	}
	if s.Volume <= 0 || s.Volume > 1 {
		s.Volume = 0.25
	}
}

// bar colours, left to right
var bars = [8][3]byte{
	{0xc0, 0xc0, 0xc0},
	{0xc0, 0xc0, 0x00},
	{0x00, 0xc0, 0xc0},
	{0x00, 0xc0, 0x00},
	{0xc0, 0x00, 0xc0},
	{0xc0, 0x00, 0x00},
	{0x00, 0x00, 0xc0},
	{0x10, 0x10, 0x10},
}

// Core is one testcard instance.
type Core struct {
	bundle string
	log    *zap.Logger

	settings Settings
	rom      string
	buttons  uint32
	phase    float64
	ticks    uint64

	audio   *ringbuffer.RingBuffer
	sound   []byte
	readBuf []byte
	video   []byte
}

var (
	_ registry.GameCoreExtension = (*Core)(nil)
	_ registry.GamePadExtension  = (*Core)(nil)
)

// New returns an unprepared instance for the bundle at bundlePath.
func New(bundlePath string, log *zap.Logger) (*Core, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Core{
		bundle: bundlePath,
		log:    log.With(zap.String("core", abi.TestcardID)),
		audio:  ringbuffer.New(bufferedTicks * SamplesPerTick * sampleBytes),
	}
	c.settings.defaults()
	return c, nil
}

// Register adds the testcard descriptor to r under id, which defaults to
// abi.TestcardID.
func Register(r *registry.Registry, log *zap.Logger, id string) (uint32, error) {
	if id == "" {
		id = abi.TestcardID
	}
	return registry.Register(r, id, func(bundle string) (*Core, error) {
		return New(bundle, log)
	}, registry.WithExtensions(abi.GameCoreID, abi.GamePadID))
}

// Settings returns the values in effect.
func (c *Core) Settings() Settings { return c.settings }

// PrepareGameCore reads the bundle settings and sizes the buffers.
func (c *Core) PrepareGameCore() {
	s, err := loadSettings(filepath.Join(c.bundle, SettingsFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.log.Debug("no settings file, using defaults")
	case err != nil:
		c.log.Warn("ignoring settings", zap.Error(err))
	default:
		c.settings = s
	}

	c.audio.Resize(bufferedTicks * SamplesPerTick * sampleBytes)
	c.sound = make([]byte, SamplesPerTick*sampleBytes)
	c.readBuf = make([]byte, bufferedTicks*SamplesPerTick*sampleBytes)
	c.video = make([]byte, abi.FrameBytes)
	c.draw()
	c.log.Debug("prepared", zap.Float64("tone_hz", c.settings.ToneHz))
}

func loadSettings(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	s.defaults()
	return s, nil
}

// ReleaseGameCoreResources drops the video buffer. Audio storage stays so
// that a late audio callback still finds a valid ring.
func (c *Core) ReleaseGameCoreResources() {
	c.video = nil
	c.sound = nil
}

// LoadROM accepts any non-empty regular file.
func (c *Core) LoadROM(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		c.log.Warn("load failed", zap.String("rom", path), zap.Error(err))
		return false
	}
	if !fi.Mode().IsRegular() || fi.Size() == 0 {
		c.log.Warn("load failed: empty or not a file", zap.String("rom", path))
		return false
	}
	c.rom = path
	c.log.Info("loaded", zap.String("rom", path), zap.Int64("bytes", fi.Size()))
	return true
}

func (c *Core) ResetGameCore() {
	c.phase = 0
	c.ticks = 0
	c.buttons = 0
}

func (c *Core) ButtonPress(button uint32, pressed bool) {
	if !abi.Control(button).Valid() {
		return
	}
	if pressed {
		c.buttons |= 1 << button
	} else {
		c.buttons &^= 1 << button
	}
}

// Buttons returns the pressed-button bitmask.
func (c *Core) Buttons() uint32 { return c.buttons }

// Tick renders one frame and queues one frame of audio if the ring has
// room for it.
func (c *Core) Tick() {
	if c.sound == nil {
		return
	}
	c.ticks++
	c.synth()
	if uint32(len(c.sound)) < c.audio.WriteSpace() {
		c.audio.Write(c.sound)
	}
	c.draw()
}

// toneHz raises the base tone by one semitone per lowest pressed control.
func (c *Core) toneHz() float64 {
	if c.buttons == 0 {
		return c.settings.ToneHz
	}
	for i := 0; i < abi.NumControls; i++ {
		if c.buttons&(1<<i) != 0 {
			return c.settings.ToneHz * math.Pow(2, float64(i+1)/12)
		}
	}
	return c.settings.ToneHz
}

func (c *Core) synth() {
	step := 2 * math.Pi * c.toneHz() / SampleRate
	amp := c.settings.Volume * math.MaxInt16
	for i := 0; i < SamplesPerTick; i++ {
		v := int16(amp * math.Sin(c.phase))
		binary.LittleEndian.PutUint16(c.sound[2*i:], uint16(v))
		c.phase += step
		if c.phase >= 2*math.Pi {
			c.phase -= 2 * math.Pi
		}
	}
}

// draw paints the bars, a scan line that walks down one row per tick and a
// strip of button indicators along the bottom.
func (c *Core) draw() {
	if c.video == nil {
		return
	}
	const w, h = abi.FrameWidth, abi.FrameHeight
	barW := w / len(bars)
	cell := w / abi.NumControls
	scan := int(c.ticks % h)
	for y := 0; y < h; y++ {
		row := c.video[y*w*4 : (y+1)*w*4]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+4]
			col := bars[min(x/barW, len(bars)-1)]
			switch {
			case y == scan:
				px[0], px[1], px[2] = 0xff, 0xff, 0xff
			case y >= h-16 && x/cell < abi.NumControls && c.buttons&(1<<(x/cell)) != 0:
				px[0], px[1], px[2] = 0xff, 0x80, 0x00
			default:
				px[0], px[1], px[2] = col[0], col[1], col[2]
			}
			px[3] = 0xff
		}
	}
}

// ReadAudio fills out with the next samples. It writes silence unless a
// whole block is buffered. Called from the audio thread.
func (c *Core) ReadAudio(out []float32) {
	clear(out)
	for len(out) > 0 {
		n := min(len(out), len(c.readBuf)/sampleBytes)
		if n == 0 {
			return
		}
		need := uint32(n * sampleBytes)
		if c.audio.ReadSpace() < need {
			return
		}
		buf := c.readBuf[:need]
		c.audio.Read(buf)
		for i := 0; i < n; i++ {
			out[i] = float32(int16(binary.LittleEndian.Uint16(buf[2*i:]))) / 32768
		}
		out = out[n:]
	}
}

// VideoBuffer returns the current frame, or nil before Prepare.
func (c *Core) VideoBuffer() []byte { return c.video }

// DiscoverGamePads is a no-op; the testcard has no pad backend.
func (c *Core) DiscoverGamePads(scan bool) {
	c.log.Debug("discover", zap.Bool("scan", scan))
}

// GamePadName names the single virtual pad.
func (c *Core) GamePadName(abi.GamePadHandle) string { return "Testcard Pad" }
