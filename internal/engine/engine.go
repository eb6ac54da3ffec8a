// Package engine runs a loaded core: it ticks it at a fixed rate, serves
// its audio to the device callback without locking, keeps a copy of the
// latest video frame and forwards controller input.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/core"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/input"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/loader"
)

// TickHz is the default emulation rate.
const TickHz = 60

var (
	ErrNoCore      = errors.New("engine: no core loaded")
	ErrROMRejected = errors.New("engine: core rejected ROM")
)

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithOpener sets the library backend used for bundles.
func WithOpener(o loader.Opener) Option {
	return func(e *Engine) { e.opener = o }
}

// WithTickHz sets the tick rate.
func WithTickHz(hz int) Option {
	return func(e *Engine) {
		if hz > 0 {
			e.tickHz = hz
		}
	}
}

// audioRef boxes the core for atomic.Pointer.
type audioRef struct{ c core.GameCore }

// Engine owns one bundle and the core instantiated from it.
type Engine struct {
	log    *zap.Logger
	opener loader.Opener
	tickHz int

	mu       sync.Mutex
	bundle   *loader.Bundle
	core     core.GameCore
	coreID   string
	remap    func(abi.Control) abi.Control
	video    []byte
	hasFrame bool
	frames   uint64

	// audio path
	audio   atomic.Pointer[audioRef]
	readers atomic.Int32

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an idle engine with no core.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:    zap.NewNop(),
		tickHz: TickHz,
		remap:  identity,
		video:  make([]byte, abi.FrameBytes),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// LoadPlugin replaces the running core with descriptor id from the bundle
// at bundlePath and loads romPath into it. The engine restarts if it was
// running. If the core rejects the ROM it stays installed and
// ErrROMRejected is returned.
func (e *Engine) LoadPlugin(bundlePath, id, romPath string) error {
	wasRunning := e.Running()
	e.Stop()
	defer func() {
		if wasRunning {
			e.Start()
		}
	}()

	e.detachAudio()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.unloadLocked()

	var opts []loader.Option
	if e.opener != nil {
		opts = append(opts, loader.WithOpener(e.opener))
	}
	opts = append(opts, loader.WithLogger(e.log))
	b := loader.NewBundle(bundlePath, opts...)
	if err := b.Open(); err != nil {
		return err
	}
	c, err := b.InstantiateGameCore(id)
	if err != nil {
		_ = b.Close()
		return err
	}

	e.bundle, e.core, e.coreID = b, c, id
	e.remap = RemapFor(id)
	e.hasFrame = false
	e.frames = 0

	c.Prepare()
	e.audio.Store(&audioRef{c: c})
	e.log.Info("core loaded", zap.String("id", id), zap.String("bundle", bundlePath),
		zap.Int("width", c.Width()), zap.Int("height", c.Height()))

	if romPath == "" {
		return nil
	}
	if !c.Load(romPath) {
		return fmt.Errorf("%w: %s", ErrROMRejected, romPath)
	}
	c.Reset()
	return nil
}

// CoreID returns the identifier of the loaded core or "".
func (e *Engine) CoreID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.coreID
}

// detachAudio hides the core from the audio path and waits for callbacks
// already inside it to return.
func (e *Engine) detachAudio() {
	e.audio.Store(nil)
	for e.readers.Load() > 0 {
		runtime.Gosched()
	}
}

func (e *Engine) unloadLocked() {
	if e.core != nil {
		e.core.Release()
		if err := e.core.Close(); err != nil {
			e.log.Warn("closing core", zap.Error(err))
		}
		e.core = nil
		e.coreID = ""
	}
	if e.bundle != nil {
		if err := e.bundle.Close(); err != nil {
			e.log.Warn("closing bundle", zap.Error(err))
		}
		e.bundle = nil
	}
	e.remap = identity
}

// Start begins ticking. A running engine is restarted.
func (e *Engine) Start() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	e.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel, e.done = cancel, done

	period := time.Second / time.Duration(e.tickHz)
	go func() {
		defer close(done)
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				e.Step()
			}
		}
	}()
}

// Stop halts ticking and waits for the tick goroutine to exit.
func (e *Engine) Stop() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel, e.done = nil, nil
}

// Running reports whether the tick goroutine is active.
func (e *Engine) Running() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.cancel != nil
}

// Step runs one tick and captures the video frame. It reports false when
// no core is loaded.
func (e *Engine) Step() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.core == nil {
		return false
	}
	e.core.Tick()
	e.frames++
	if frame := e.core.VideoFrame(); len(frame) >= len(e.video) {
		// pixel layout is RGBx; force alpha
		for i := 0; i < len(e.video); i += 4 {
			e.video[i+0] = frame[i+0]
			e.video[i+1] = frame[i+1]
			e.video[i+2] = frame[i+2]
			e.video[i+3] = 0xff
		}
		e.hasFrame = true
	}
	return true
}

// Frames returns the number of ticks since the core was loaded.
func (e *Engine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// ReadAudio fills out from the core, or with silence when no core is
// loaded. It is called from the audio device callback and takes no lock.
func (e *Engine) ReadAudio(out []float32) {
	e.readers.Add(1)
	defer e.readers.Add(-1)
	ref := e.audio.Load()
	if ref == nil {
		clear(out)
		return
	}
	ref.c.ReadAudio(out)
}

// CopyVideo copies the latest RGBA frame into dst, which must hold
// abi.FrameBytes bytes. It reports false when there is no frame yet.
func (e *Engine) CopyVideo(dst []byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasFrame || len(dst) < len(e.video) {
		return false
	}
	copy(dst, e.video)
	return true
}

// Snapshot returns a copy of the latest frame, or false when there is none.
func (e *Engine) Snapshot() (*image.RGBA, bool) {
	img := image.NewRGBA(image.Rect(0, 0, abi.FrameWidth, abi.FrameHeight))
	if !e.CopyVideo(img.Pix) {
		return nil, false
	}
	return img, true
}

// ButtonPress sends a native button code to the core.
func (e *Engine) ButtonPress(button abi.Control, pressed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.core != nil {
		e.core.ButtonPress(button, pressed)
	}
}

// Reset presses the core's reset button.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.core == nil {
		return ErrNoCore
	}
	e.core.Reset()
	return nil
}

// HandleGamePadEvent implements input.Listener. Button edges are
// translated for the loaded core; analog changes are ignored.
func (e *Engine) HandleGamePadEvent(ev input.Event) {
	e.mu.Lock()
	remap := e.remap
	e.mu.Unlock()

	switch ev.Type {
	case input.ButtonPress:
		e.ButtonPress(remap(ev.Control), true)
	case input.ButtonRelease:
		e.ButtonPress(remap(ev.Control), false)
	}
}

// Close stops the engine and unloads the core and bundle.
func (e *Engine) Close() error {
	e.Stop()
	e.detachAudio()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unloadLocked()
	return nil
}

var _ input.Listener = (*Engine)(nil)
