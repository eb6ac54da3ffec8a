package engine

import "github.com/FabianRolfMatthiasNoll/jemu/internal/abi"

func identity(c abi.Control) abi.Control { return c }

// nestopia reads Start on its X line and X on its B line.
func nestopia(c abi.Control) abi.Control {
	switch c {
	case abi.ControlStart:
		return abi.ControlX
	case abi.ControlX:
		return abi.ControlB
	}
	return c
}

// RemapFor returns the pad-to-native button translation for core id.
func RemapFor(id string) func(abi.Control) abi.Control {
	if id == abi.NestopiaID {
		return nestopia
	}
	return identity
}
