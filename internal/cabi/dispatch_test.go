package cabi

import (
	"fmt"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/registry"
)

type stubCore struct {
	loaded string
	ticks  int
	panics bool
	frame  []byte
}

func (c *stubCore) PrepareGameCore()          {}
func (c *stubCore) ReleaseGameCoreResources() {}
func (c *stubCore) ButtonPress(uint32, bool)  {}
func (c *stubCore) ResetGameCore()            {}
func (c *stubCore) VideoBuffer() []byte       { return c.frame }

func (c *stubCore) LoadROM(path string) bool {
	c.loaded = path
	return true
}

func (c *stubCore) Tick() {
	if c.panics {
		panic("tick exploded")
	}
	c.ticks++
}

func (c *stubCore) ReadAudio(out []float32) {
	for i := range out {
		out[i] = 0.25
	}
}

func setup(t *testing.T, ids ...string) (map[uint32]string, map[string]*stubCore) {
	t.Helper()
	r := registry.New()
	cores := map[string]*stubCore{}
	for _, id := range ids {
		id := id
		_, err := registry.Register(r, id, func(string) (*stubCore, error) {
			c := &stubCore{frame: make([]byte, abi.FrameBytes)}
			c.frame[0] = 0xAB
			cores[id] = c
			return c, nil
		}, registry.WithExtensions(abi.GameCoreID))
		require.NoError(t, err)
	}

	slots := map[uint32]string{}
	require.NoError(t, install(r, func(slot uint32, id string) { slots[slot] = id }))
	t.Cleanup(func() {
		_ = r.Close()
		mu.Lock()
		bindings = nil
		mu.Unlock()
	})
	return slots, cores
}

func TestInstall_AssignsSlotsInOrder(t *testing.T) {
	slots, _ := setup(t, abi.NestopiaID, abi.TestcardID)
	assert.Equal(t, map[uint32]string{0: abi.NestopiaID, 1: abi.TestcardID}, slots)
	assert.True(t, exported(1))
	assert.False(t, exported(2))
}

func TestInstall_TooManyDescriptors(t *testing.T) {
	r := registry.New()
	defer r.Close()
	for i := 0; i <= MaxDescriptors; i++ {
		_, err := registry.Register(r, fmt.Sprint("p", i), func(string) (*stubCore, error) { return &stubCore{}, nil })
		require.NoError(t, err)
	}
	assert.Error(t, install(r, func(uint32, string) {}))
}

func TestDispatch_GameCore(t *testing.T) {
	setup(t, abi.NestopiaID)

	h := instantiate(0, "plugins/Nestopia.emu")
	require.NotZero(t, h)
	assert.Equal(t, extGameCore, extension(0, abi.GameCoreID))
	assert.Equal(t, extNone, extension(0, abi.GamePadID))
	assert.Equal(t, extNone, extension(0, "org.jemu.Nope"))

	assert.True(t, load(0, h, "game.nes"))
	gameCoreCall(0, h, func(t *abi.GameCore, h abi.Handle) { t.Tick(h) })

	out := make([]float32, 4)
	readAudio(0, h, out)
	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, out)

	frame := videoFrame(0, h)
	require.Len(t, frame, abi.FrameBytes)
	assert.Equal(t, byte(0xAB), frame[0])
}

func TestDispatch_UnknownSlot(t *testing.T) {
	setup(t, abi.NestopiaID)
	assert.Zero(t, instantiate(5, "x"))
	assert.Equal(t, extNone, extension(5, abi.GameCoreID))
	assert.False(t, load(5, 1, "game.nes"))
	assert.Nil(t, videoFrame(5, 1))
	assert.Equal(t, "", padName(5, 1, 1))
}

func TestDispatch_RecoversPanics(t *testing.T) {
	_, cores := setup(t, abi.NestopiaID)
	h := instantiate(0, "")
	cores[abi.NestopiaID].panics = true

	assert.NotPanics(t, func() {
		gameCoreCall(0, h, func(t *abi.GameCore, h abi.Handle) { t.Tick(h) })
	})
	assert.Zero(t, cores[abi.NestopiaID].ticks)
}

func TestFrameBuffer_FreedOnDestroy(t *testing.T) {
	setup(t, abi.NestopiaID)
	h := instantiate(0, "")

	var freed []unsafe.Pointer
	prev := freeFrame
	freeFrame = func(p unsafe.Pointer) { freed = append(freed, p) }
	t.Cleanup(func() { freeFrame = prev })

	backing := make([]byte, 16)
	allocs := 0
	alloc := func() unsafe.Pointer {
		allocs++
		return unsafe.Pointer(&backing[0])
	}
	p1 := frameBuffer(0, h, alloc)
	p2 := frameBuffer(0, h, alloc)
	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, allocs)

	destroy(0, h)
	assert.Equal(t, []unsafe.Pointer{p1}, freed)
	destroy(0, h)
	assert.Len(t, freed, 1)
}

func TestInternTable(t *testing.T) {
	var tab internTable
	a, b := new(byte), new(byte)
	p1 := tab.intern("x", func() unsafe.Pointer { return unsafe.Pointer(a) })
	p2 := tab.intern("x", func() unsafe.Pointer { return unsafe.Pointer(b) })
	assert.Equal(t, p1, p2)
}
