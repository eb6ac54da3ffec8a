package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestControlCodesAreStable(t *testing.T) {
	assert.Equal(t, Control(0), ControlUp)
	assert.Equal(t, Control(4), ControlA)
	assert.Equal(t, Control(12), ControlSelect)
	assert.Equal(t, Control(13), ControlStart)
	assert.Equal(t, 14, NumControls)
}

func TestControlNames(t *testing.T) {
	for i := 0; i < NumControls; i++ {
		c := Control(i)
		got, ok := ParseControl(c.String())
		assert.True(t, ok, c.String())
		assert.Equal(t, c, got)
	}
	assert.False(t, Control(14).Valid())
	assert.Equal(t, "unknown", Control(99).String())

	_, ok := ParseControl("turbo")
	assert.False(t, ok)
}
