package ui

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/input"
)

// Keymap binds keyboard keys to controls of the keyboard pad.
type Keymap map[ebiten.Key]abi.Control

// DefaultKeymap returns the built-in bindings.
func DefaultKeymap() Keymap {
	return Keymap{
		ebiten.KeyArrowUp:    abi.ControlUp,
		ebiten.KeyArrowDown:  abi.ControlDown,
		ebiten.KeyArrowLeft:  abi.ControlLeft,
		ebiten.KeyArrowRight: abi.ControlRight,
		ebiten.KeyZ:          abi.ControlA,
		ebiten.KeyX:          abi.ControlB,
		ebiten.KeyA:          abi.ControlX,
		ebiten.KeyS:          abi.ControlY,
		ebiten.KeyQ:          abi.ControlL1,
		ebiten.KeyW:          abi.ControlR1,
		ebiten.Key1:          abi.ControlL2,
		ebiten.Key2:          abi.ControlR2,
		ebiten.KeyShiftRight: abi.ControlSelect,
		ebiten.KeyEnter:      abi.ControlStart,
	}
}

// ParseKeymap layers overrides, key name to control name, on top of the
// defaults. Key names are those accepted by ebiten.Key.UnmarshalText.
func ParseKeymap(overrides map[string]string) (Keymap, error) {
	km := DefaultKeymap()
	for name, control := range overrides {
		var k ebiten.Key
		if err := k.UnmarshalText([]byte(name)); err != nil {
			return nil, fmt.Errorf("ui: key %q: %w", name, err)
		}
		c, ok := abi.ParseControl(control)
		if !ok {
			return nil, fmt.Errorf("ui: key %q: unknown control %q", name, control)
		}
		km[k] = c
	}
	return km, nil
}

// apply turns key edges into pad events. Unbound keys are ignored.
func (km Keymap) apply(pad *input.Pad, pressed, released []ebiten.Key) {
	for _, k := range pressed {
		if c, ok := km[k]; ok {
			pad.Press(c)
		}
	}
	for _, k := range released {
		if c, ok := km[k]; ok {
			pad.Release(c)
		}
	}
}

// bound reports whether k drives the pad, so hotkeys can skip it.
func (km Keymap) bound(k ebiten.Key) bool {
	_, ok := km[k]
	return ok
}
