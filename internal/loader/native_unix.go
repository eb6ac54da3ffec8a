//go:build darwin || freebsd || linux

package loader

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
)

// Mirrors of the C structs in cabi/jemu.h. Function pointers are uintptrs
// and are bound to Go funcs with purego.RegisterFunc.
type cDescriptor struct {
	ID          *byte
	Instantiate uintptr
	Destroy     uintptr
	Extension   uintptr
}

type cGameCore struct {
	Prepare     uintptr
	Release     uintptr
	Tick        uintptr
	Reset       uintptr
	Load        uintptr
	ReadAudio   uintptr
	VideoFrame  uintptr
	ButtonPress uintptr
}

type cGamePad struct {
	Discover uintptr
	Name     uintptr
}

type nativeLibrary struct {
	once   sync.Once
	handle uintptr
	err    error
}

// NativeOpener loads a shared library with dlopen.
func NativeOpener(path string) (Library, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, err
	}
	return &nativeLibrary{handle: h}, nil
}

func (l *nativeLibrary) Enumerator(symbol string) (abi.EnumerateFunc, error) {
	sym, err := purego.Dlsym(l.handle, symbol)
	if err != nil {
		return nil, err
	}
	var enumerate func(uint32) uintptr
	purego.RegisterFunc(&enumerate, sym)

	// descriptors are static in the plugin, so the converted form is cached
	// per address
	var mu sync.Mutex
	seen := make(map[uintptr]*abi.Descriptor)
	return func(index uint32) *abi.Descriptor {
		p := enumerate(index)
		if p == 0 {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		if d, ok := seen[p]; ok {
			return d
		}
		d := descriptorFromC(p)
		seen[p] = d
		return d
	}, nil
}

func (l *nativeLibrary) Close() error {
	l.once.Do(func() { l.err = purego.Dlclose(l.handle) })
	return l.err
}

func descriptorFromC(p uintptr) *abi.Descriptor {
	c := (*cDescriptor)(unsafe.Pointer(p))
	d := &abi.Descriptor{ID: goString(c.ID)}

	if c.Instantiate != 0 {
		var fn func(string) uintptr
		purego.RegisterFunc(&fn, c.Instantiate)
		d.Instantiate = func(bundle string) abi.Handle { return abi.Handle(fn(bundle)) }
	}
	d.Destroy = handleFunc(c.Destroy)
	if c.Extension != 0 {
		var fn func(string) uintptr
		purego.RegisterFunc(&fn, c.Extension)
		ext := &extensionCache{lookup: fn, tables: make(map[string]any)}
		d.Extension = ext.get
	}
	return d
}

type extensionCache struct {
	lookup func(string) uintptr

	mu     sync.Mutex
	tables map[string]any
}

func (e *extensionCache) get(id string) any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.tables[id]; ok {
		return t
	}

	var t any
	if p := e.lookup(id); p != 0 {
		switch id {
		case abi.GameCoreID:
			t = gameCoreFromC(p)
		case abi.GamePadID:
			t = gamePadFromC(p)
		}
	}
	e.tables[id] = t
	return t
}

func gameCoreFromC(p uintptr) *abi.GameCore {
	c := (*cGameCore)(unsafe.Pointer(p))
	t := &abi.GameCore{
		Prepare: handleFunc(c.Prepare),
		Release: handleFunc(c.Release),
		Tick:    handleFunc(c.Tick),
		Reset:   handleFunc(c.Reset),
	}
	if c.Load != 0 {
		var fn func(uintptr, string) bool
		purego.RegisterFunc(&fn, c.Load)
		t.Load = func(h abi.Handle, rom string) bool { return fn(uintptr(h), rom) }
	}
	if c.ReadAudio != 0 {
		var fn func(uintptr, *float32, uint32)
		purego.RegisterFunc(&fn, c.ReadAudio)
		t.ReadAudio = func(h abi.Handle, out []float32) {
			if len(out) > 0 {
				fn(uintptr(h), &out[0], uint32(len(out)))
			}
		}
	}
	if c.VideoFrame != 0 {
		var fn func(uintptr) uintptr
		purego.RegisterFunc(&fn, c.VideoFrame)
		t.VideoFrame = func(h abi.Handle) []byte {
			px := fn(uintptr(h))
			if px == 0 {
				return nil
			}
			return unsafe.Slice((*byte)(unsafe.Pointer(px)), abi.FrameBytes)
		}
	}
	if c.ButtonPress != 0 {
		var fn func(uintptr, uint32, bool)
		purego.RegisterFunc(&fn, c.ButtonPress)
		t.ButtonPress = func(h abi.Handle, button uint32, pressed bool) { fn(uintptr(h), button, pressed) }
	}
	return t
}

func gamePadFromC(p uintptr) *abi.GamePad {
	c := (*cGamePad)(unsafe.Pointer(p))
	t := &abi.GamePad{}
	if c.Discover != 0 {
		var fn func(uintptr, bool)
		purego.RegisterFunc(&fn, c.Discover)
		t.Discover = func(h abi.Handle, scan bool) { fn(uintptr(h), scan) }
	}
	if c.Name != 0 {
		var fn func(uintptr, uintptr) uintptr
		purego.RegisterFunc(&fn, c.Name)
		t.Name = func(h abi.Handle, pad abi.GamePadHandle) string {
			return goString((*byte)(unsafe.Pointer(fn(uintptr(h), uintptr(pad)))))
		}
	}
	return t
}

func handleFunc(ptr uintptr) func(abi.Handle) {
	if ptr == 0 {
		return nil
	}
	var fn func(uintptr)
	purego.RegisterFunc(&fn, ptr)
	return func(h abi.Handle) { fn(uintptr(h)) }
}

// goString copies a NUL-terminated C string.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}
