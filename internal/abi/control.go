package abi

// Control is a logical button code. The values are stable across the whole
// system; each core maps them onto its own controller layout.
type Control uint32

const (
	ControlUp Control = iota
	ControlDown
	ControlLeft
	ControlRight
	ControlA
	ControlB
	ControlX
	ControlY
	ControlL1
	ControlR1
	ControlL2
	ControlR2
	ControlSelect
	ControlStart

	NumControls = int(ControlStart) + 1
)

var controlNames = [NumControls]string{
	"up", "down", "left", "right",
	"a", "b", "x", "y",
	"l1", "r1", "l2", "r2",
	"select", "start",
}

// Valid reports whether c is one of the defined codes.
func (c Control) Valid() bool { return int(c) < NumControls }

func (c Control) String() string {
	if !c.Valid() {
		return "unknown"
	}
	return controlNames[c]
}

// ParseControl looks a control up by its String name.
func ParseControl(name string) (Control, bool) {
	for i, n := range controlNames {
		if n == name {
			return Control(i), true
		}
	}
	return 0, false
}
