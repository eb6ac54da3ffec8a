package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
)

type recorder struct {
	calls    []string
	destroys int
}

func (r *recorder) descriptor(table *abi.GameCore) *abi.Descriptor {
	return &abi.Descriptor{
		ID:          abi.NestopiaID,
		Instantiate: func(string) abi.Handle { return 7 },
		Destroy: func(h abi.Handle) {
			r.destroys++
			r.calls = append(r.calls, "destroy")
		},
		Extension: func(id string) any {
			if id == abi.GameCoreID && table != nil {
				return table
			}
			return nil
		},
	}
}

func (r *recorder) table() *abi.GameCore {
	note := func(name string) func(abi.Handle) {
		return func(h abi.Handle) { r.calls = append(r.calls, name) }
	}
	return &abi.GameCore{
		Prepare: note("prepare"),
		Release: note("release"),
		Tick:    note("tick"),
		Reset:   note("reset"),
		Load: func(h abi.Handle, path string) bool {
			r.calls = append(r.calls, "load:"+path)
			return true
		},
		ReadAudio: func(h abi.Handle, out []float32) {
			for i := range out {
				out[i] = 1
			}
		},
		VideoFrame: func(abi.Handle) []byte { return []byte{1, 2, 3, 4} },
		ButtonPress: func(h abi.Handle, button uint32, pressed bool) {
			if pressed {
				r.calls = append(r.calls, "press:"+abi.Control(button).String())
			}
		},
	}
}

func TestNew_ForwardsEveryOperation(t *testing.T) {
	r := &recorder{}
	inst, err := New(r.descriptor(r.table()), 7)
	require.NoError(t, err)
	assert.Equal(t, abi.NestopiaID, inst.ID())
	assert.Equal(t, abi.Handle(7), inst.Handle())

	inst.Prepare()
	assert.True(t, inst.Load("game.nes"))
	inst.Reset()
	inst.Tick()
	inst.ButtonPress(abi.ControlA, true)
	inst.Release()

	out := make([]float32, 2)
	inst.ReadAudio(out)
	assert.Equal(t, []float32{1, 1}, out)
	assert.Equal(t, []byte{1, 2, 3, 4}, inst.VideoFrame())
	assert.Equal(t, 256, inst.Width())
	assert.Equal(t, 240, inst.Height())

	assert.Equal(t, []string{"prepare", "load:game.nes", "reset", "tick", "press:a", "release"}, r.calls)
}

func TestNew_Validation(t *testing.T) {
	r := &recorder{}

	_, err := New(r.descriptor(r.table()), 0)
	assert.ErrorIs(t, err, ErrNullHandle)

	_, err = New(r.descriptor(nil), 7)
	assert.ErrorIs(t, err, ErrMissingFunction)

	for _, clear := range []func(*abi.GameCore){
		func(t *abi.GameCore) { t.ButtonPress = nil },
		func(t *abi.GameCore) { t.Load = nil },
		func(t *abi.GameCore) { t.ReadAudio = nil },
		func(t *abi.GameCore) { t.Reset = nil },
		func(t *abi.GameCore) { t.Tick = nil },
		func(t *abi.GameCore) { t.VideoFrame = nil },
	} {
		table := r.table()
		clear(table)
		_, err := New(r.descriptor(table), 7)
		assert.ErrorIs(t, err, ErrMissingFunction)
	}
	assert.Zero(t, r.destroys, "validation never destroys the caller's handle")
}

func TestOptionalEntries(t *testing.T) {
	r := &recorder{}
	table := r.table()
	table.Prepare = nil
	table.Release = nil

	inst, err := New(r.descriptor(table), 7)
	require.NoError(t, err)
	inst.Prepare()
	inst.Release()
	assert.Empty(t, r.calls)
}

func TestClose_DestroysExactlyOnce(t *testing.T) {
	r := &recorder{}
	inst, err := New(r.descriptor(r.table()), 7)
	require.NoError(t, err)

	require.NoError(t, inst.Close())
	require.NoError(t, inst.Close())
	assert.Equal(t, 1, r.destroys)
	assert.Zero(t, inst.Handle())

	// after close every operation is a no-op with defaults
	r.calls = nil
	inst.Tick()
	assert.False(t, inst.Load("game.nes"))
	assert.Nil(t, inst.VideoFrame())
	assert.Empty(t, r.calls)
}

func TestClose_ReentrantDestroy(t *testing.T) {
	var inst *Instance
	destroys := 0
	desc := &abi.Descriptor{
		ID: abi.NestopiaID,
		Destroy: func(abi.Handle) {
			destroys++
			// a destroy callback that tears the adapter down again
			_ = inst.Close()
		},
		Extension: func(string) any { return (&recorder{}).table() },
	}
	var err error
	inst, err = New(desc, 7)
	require.NoError(t, err)

	require.NoError(t, inst.Close())
	assert.Equal(t, 1, destroys)
}
