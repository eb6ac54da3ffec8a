package registry

import (
	"reflect"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
)

// GameCoreExtension is implemented by instance types that emulate a
// console. It backs the abi.GameCoreID table.
type GameCoreExtension interface {
	PrepareGameCore()
	ReleaseGameCoreResources()
	ButtonPress(button uint32, pressed bool)
	LoadROM(path string) bool
	ResetGameCore()
	ReadAudio(out []float32)
	Tick()
	VideoBuffer() []byte
}

// GamePadExtension is implemented by instance types that discover
// controllers. It backs the abi.GamePadID table.
type GamePadExtension interface {
	DiscoverGamePads(scan bool)
}

// GamePadNamer is optionally implemented alongside GamePadExtension.
type GamePadNamer interface {
	GamePadName(pad abi.GamePadHandle) string
}

func builtinTable[T any](id string, slots *Arena[T]) any {
	switch id {
	case abi.GameCoreID:
		return gameCoreTable(slots)
	case abi.GamePadID:
		return gamePadTable(slots)
	}
	return nil
}

// resolver returns a function mapping a handle to the instance viewed as E.
// Whether T provides E is settled here, once per table. A T that cannot
// provide E gets a resolver that always misses, which turns every thunk
// into a no-op.
func resolver[E, T any](slots *Arena[T]) func(abi.Handle) (E, bool) {
	t := reflect.TypeFor[T]()
	e := reflect.TypeFor[E]()
	if t.Kind() != reflect.Interface && !t.Implements(e) {
		return func(abi.Handle) (E, bool) {
			var zero E
			return zero, false
		}
	}
	return func(h abi.Handle) (E, bool) {
		inst, ok := slots.Get(h)
		if !ok {
			var zero E
			return zero, false
		}
		v, ok := any(inst).(E)
		return v, ok
	}
}

func gameCoreTable[T any](slots *Arena[T]) *abi.GameCore {
	core := resolver[GameCoreExtension](slots)
	return &abi.GameCore{
		Prepare: func(h abi.Handle) {
			if c, ok := core(h); ok {
				c.PrepareGameCore()
			}
		},
		Release: func(h abi.Handle) {
			if c, ok := core(h); ok {
				c.ReleaseGameCoreResources()
			}
		},
		Tick: func(h abi.Handle) {
			if c, ok := core(h); ok {
				c.Tick()
			}
		},
		Reset: func(h abi.Handle) {
			if c, ok := core(h); ok {
				c.ResetGameCore()
			}
		},
		Load: func(h abi.Handle, path string) bool {
			if c, ok := core(h); ok {
				return c.LoadROM(path)
			}
			return false
		},
		ReadAudio: func(h abi.Handle, out []float32) {
			if c, ok := core(h); ok {
				c.ReadAudio(out)
			}
		},
		VideoFrame: func(h abi.Handle) []byte {
			if c, ok := core(h); ok {
				return c.VideoBuffer()
			}
			return nil
		},
		ButtonPress: func(h abi.Handle, button uint32, pressed bool) {
			if c, ok := core(h); ok {
				c.ButtonPress(button, pressed)
			}
		},
	}
}

func gamePadTable[T any](slots *Arena[T]) *abi.GamePad {
	pad := resolver[GamePadExtension](slots)
	namer := resolver[GamePadNamer](slots)
	return &abi.GamePad{
		Discover: func(h abi.Handle, scan bool) {
			if p, ok := pad(h); ok {
				p.DiscoverGamePads(scan)
			}
		},
		Name: func(h abi.Handle, gp abi.GamePadHandle) string {
			if n, ok := namer(h); ok {
				return n.GamePadName(gp)
			}
			return ""
		},
	}
}
