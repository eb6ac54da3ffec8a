// Package core wraps an instantiated plugin handle and its GameCore table
// behind a host-native interface.
package core

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
)

var (
	ErrNullHandle      = errors.New("core: null handle")
	ErrMissingFunction = errors.New("core: missing GameCore function")
)

// GameCore is what the host drives once per frame.
type GameCore interface {
	Prepare()
	Release()
	Reset()
	Tick()
	Load(romPath string) bool
	ReadAudio(out []float32)
	VideoFrame() []byte
	ButtonPress(button abi.Control, pressed bool)
	Width() int
	Height() int
	Close() error
}

// Instance is a GameCore backed by a plugin descriptor and handle.
type Instance struct {
	desc   abi.Descriptor
	table  abi.GameCore
	handle atomic.Uintptr
}

var _ GameCore = (*Instance)(nil)

// New binds h, obtained from desc.Instantiate, to desc's GameCore table.
// On error the caller still owns h.
func New(desc *abi.Descriptor, h abi.Handle) (*Instance, error) {
	if h == 0 {
		return nil, ErrNullHandle
	}
	if desc == nil || desc.Extension == nil {
		return nil, fmt.Errorf("%w: descriptor has no extension lookup", ErrMissingFunction)
	}
	table, _ := desc.Extension(abi.GameCoreID).(*abi.GameCore)
	if table == nil {
		return nil, fmt.Errorf("%w: %s does not provide %s", ErrMissingFunction, desc.ID, abi.GameCoreID)
	}
	if err := validate(table); err != nil {
		return nil, fmt.Errorf("%s: %w", desc.ID, err)
	}

	i := &Instance{desc: *desc, table: *table}
	i.handle.Store(uintptr(h))
	return i, nil
}

func validate(t *abi.GameCore) error {
	missing := func(name string) error { return fmt.Errorf("%w: %s", ErrMissingFunction, name) }
	switch {
	case t.ButtonPress == nil:
		return missing("button_press")
	case t.Load == nil:
		return missing("load")
	case t.ReadAudio == nil:
		return missing("read_audio")
	case t.Reset == nil:
		return missing("reset")
	case t.Tick == nil:
		return missing("tick")
	case t.VideoFrame == nil:
		return missing("video_frame")
	}
	return nil
}

// ID returns the descriptor identifier the instance was created from.
func (i *Instance) ID() string { return i.desc.ID }

// Handle returns the plugin handle, or 0 after Close.
func (i *Instance) Handle() abi.Handle { return abi.Handle(i.handle.Load()) }

func (i *Instance) Prepare() {
	if h := i.Handle(); h != 0 && i.table.Prepare != nil {
		i.table.Prepare(h)
	}
}

func (i *Instance) Release() {
	if h := i.Handle(); h != 0 && i.table.Release != nil {
		i.table.Release(h)
	}
}

func (i *Instance) Reset() {
	if h := i.Handle(); h != 0 && i.table.Reset != nil {
		i.table.Reset(h)
	}
}

func (i *Instance) Tick() {
	if h := i.Handle(); h != 0 && i.table.Tick != nil {
		i.table.Tick(h)
	}
}

func (i *Instance) Load(romPath string) bool {
	if h := i.Handle(); h != 0 && i.table.Load != nil {
		return i.table.Load(h, romPath)
	}
	return false
}

// ReadAudio fills out with mono samples. Called from the audio thread.
func (i *Instance) ReadAudio(out []float32) {
	if h := i.Handle(); h != 0 && i.table.ReadAudio != nil {
		i.table.ReadAudio(h, out)
	}
}

// VideoFrame returns the plugin-owned frame, valid until the next Tick.
func (i *Instance) VideoFrame() []byte {
	if h := i.Handle(); h != 0 && i.table.VideoFrame != nil {
		return i.table.VideoFrame(h)
	}
	return nil
}

func (i *Instance) ButtonPress(button abi.Control, pressed bool) {
	if h := i.Handle(); h != 0 && i.table.ButtonPress != nil {
		i.table.ButtonPress(h, uint32(button), pressed)
	}
}

func (i *Instance) Width() int  { return abi.FrameWidth }
func (i *Instance) Height() int { return abi.FrameHeight }

// Close destroys the plugin instance. The handle is cleared before Destroy
// runs, so repeated or re-entrant calls do nothing.
func (i *Instance) Close() error {
	h := abi.Handle(i.handle.Swap(0))
	if h == 0 || i.desc.Destroy == nil {
		return nil
	}
	i.desc.Destroy(h)
	return nil
}
