package cabi

import (
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/registry"
)

// MaxDescriptors is the number of trampoline slots in trampolines.c.
const MaxDescriptors = 8

type extKind int

const (
	extNone extKind = iota
	extGameCore
	extGamePad
)

type binding struct {
	desc *abi.Descriptor

	mu     sync.Mutex
	frames map[abi.Handle]unsafe.Pointer
}

var (
	mu       sync.RWMutex
	bindings []*binding
	log      = zap.NewNop()

	cstrings internTable
)

// SetLogger sets the logger used to report recovered panics.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	log = l
	mu.Unlock()
}

func install(r *registry.Registry, initSlot func(slot uint32, id string)) error {
	var descs []*abi.Descriptor
	for i := uint32(0); ; i++ {
		d := r.Descriptor(i)
		if d == nil {
			break
		}
		if len(descs) == MaxDescriptors {
			return fmt.Errorf("cabi: more than %d descriptors", MaxDescriptors)
		}
		descs = append(descs, d)
	}

	mu.Lock()
	defer mu.Unlock()
	bindings = bindings[:0]
	for i, d := range descs {
		initSlot(uint32(i), d.ID)
		bindings = append(bindings, &binding{desc: d, frames: make(map[abi.Handle]unsafe.Pointer)})
	}
	return nil
}

func exported(slot uint32) bool {
	mu.RLock()
	defer mu.RUnlock()
	return int(slot) < len(bindings)
}

func lookup(slot uint32) *binding {
	mu.RLock()
	defer mu.RUnlock()
	if int(slot) >= len(bindings) {
		return nil
	}
	return bindings[slot]
}

// recoverCall keeps a plugin panic from unwinding into C.
func recoverCall(op string, slot uint32) {
	if r := recover(); r != nil {
		mu.RLock()
		l := log
		mu.RUnlock()
		l.Error("plugin panic", zap.String("op", op), zap.Uint32("slot", slot), zap.Any("panic", r))
	}
}

func instantiate(slot uint32, bundlePath string) (h abi.Handle) {
	defer recoverCall("instantiate", slot)
	b := lookup(slot)
	if b == nil || b.desc.Instantiate == nil {
		return 0
	}
	return b.desc.Instantiate(bundlePath)
}

func destroy(slot uint32, h abi.Handle) {
	defer recoverCall("destroy", slot)
	b := lookup(slot)
	if b == nil {
		return
	}
	b.mu.Lock()
	if p, ok := b.frames[h]; ok {
		delete(b.frames, h)
		freeFrame(p)
	}
	b.mu.Unlock()
	if b.desc.Destroy != nil {
		b.desc.Destroy(h)
	}
}

func extension(slot uint32, id string) (kind extKind) {
	defer recoverCall("extension", slot)
	b := lookup(slot)
	if b == nil || b.desc.Extension == nil {
		return extNone
	}
	switch b.desc.Extension(id).(type) {
	case *abi.GameCore:
		return extGameCore
	case *abi.GamePad:
		return extGamePad
	}
	return extNone
}

func gameCoreTable(slot uint32) *abi.GameCore {
	b := lookup(slot)
	if b == nil || b.desc.Extension == nil {
		return nil
	}
	t, _ := b.desc.Extension(abi.GameCoreID).(*abi.GameCore)
	return t
}

func gamePadTable(slot uint32) *abi.GamePad {
	b := lookup(slot)
	if b == nil || b.desc.Extension == nil {
		return nil
	}
	t, _ := b.desc.Extension(abi.GamePadID).(*abi.GamePad)
	return t
}

func gameCoreCall(slot uint32, h abi.Handle, fn func(*abi.GameCore, abi.Handle)) {
	defer recoverCall("game core", slot)
	if t := gameCoreTable(slot); t != nil {
		fn(t, h)
	}
}

func load(slot uint32, h abi.Handle, path string) (ok bool) {
	gameCoreCall(slot, h, func(t *abi.GameCore, h abi.Handle) {
		if t.Load != nil {
			ok = t.Load(h, path)
		}
	})
	return ok
}

func readAudio(slot uint32, h abi.Handle, out []float32) {
	gameCoreCall(slot, h, func(t *abi.GameCore, h abi.Handle) {
		if t.ReadAudio != nil {
			t.ReadAudio(h, out)
		}
	})
}

func videoFrame(slot uint32, h abi.Handle) (frame []byte) {
	gameCoreCall(slot, h, func(t *abi.GameCore, h abi.Handle) {
		if t.VideoFrame != nil {
			frame = t.VideoFrame(h)
		}
	})
	return frame
}

// frameBuffer returns the C-side frame buffer of instance h, allocating it
// on first use. It is freed when the instance is destroyed.
func frameBuffer(slot uint32, h abi.Handle, alloc func() unsafe.Pointer) unsafe.Pointer {
	b := lookup(slot)
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.frames[h]
	if !ok {
		if p = alloc(); p == nil {
			return nil
		}
		b.frames[h] = p
	}
	return p
}

func discover(slot uint32, h abi.Handle, scan bool) {
	defer recoverCall("discover", slot)
	if t := gamePadTable(slot); t != nil && t.Discover != nil {
		t.Discover(h, scan)
	}
}

func padName(slot uint32, h abi.Handle, pad abi.GamePadHandle) (name string) {
	defer recoverCall("name", slot)
	if t := gamePadTable(slot); t != nil && t.Name != nil {
		return t.Name(h, pad)
	}
	return ""
}

// internTable hands out one long-lived C string per distinct Go string.
type internTable struct {
	mu sync.Mutex
	m  map[string]unsafe.Pointer
}

func (t *internTable) intern(s string, alloc func() unsafe.Pointer) unsafe.Pointer {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.m[s]; ok {
		return p
	}
	if t.m == nil {
		t.m = make(map[string]unsafe.Pointer)
	}
	p := alloc()
	t.m[s] = p
	return p
}
