package registry

import (
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
)

// Arena stores plugin instances in slots addressed by opaque handles.
//
// A handle packs the slot index (low half of a pointer-sized word, offset
// by one so that zero is never a valid handle), the slot's generation and
// the arena's tag. Removing an instance bumps the generation, so an old
// handle no longer resolves, and a handle minted by one arena does not
// resolve in another. A slot whose generation is exhausted is retired
// instead of reused.
type Arena[T any] struct {
	tag   uint32
	lay   layout
	mu    sync.RWMutex
	slots []slot[T]
	free  []uint32
	live  int
}

type slot[T any] struct {
	gen   uint32
	used  bool
	value T
}

// layout splits a handle word into index, generation and tag fields.
type layout struct {
	indexBits, genBits, tagBits uint
}

// layoutFor halves a word of the given width between the index and the
// generation plus tag.
func layoutFor(wordBits int) layout {
	w := uint(wordBits)
	return layout{indexBits: w / 2, genBits: w / 4, tagBits: w / 4}
}

var hostLayout = layoutFor(bits.UintSize)

func mask(n uint) uint64 { return 1<<n - 1 }

// maxSlots is the number of distinct indices a handle can carry.
func (l layout) maxSlots() uint64 { return mask(l.indexBits) }

func (l layout) maxGen() uint32 { return uint32(mask(l.genBits)) }

func (l layout) pack(tag, index, gen uint32) abi.Handle {
	v := (uint64(tag)&mask(l.tagBits))<<(l.indexBits+l.genBits) |
		uint64(gen)<<l.indexBits |
		uint64(index+1)
	return abi.Handle(v)
}

func (l layout) unpack(tag uint32, h abi.Handle) (index, gen uint32, ok bool) {
	v := uint64(h)
	lo := v & mask(l.indexBits)
	hi := v >> (l.indexBits + l.genBits)
	if lo == 0 || hi != uint64(tag)&mask(l.tagBits) {
		return 0, 0, false
	}
	return uint32(lo - 1), uint32(v>>l.indexBits) & l.maxGen(), true
}

var arenaTags atomic.Uint32

// NewArena returns an arena with a process-unique tag.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{tag: arenaTags.Add(1)}
}

func (a *Arena[T]) layout() layout {
	if a.lay.indexBits == 0 {
		return hostLayout
	}
	return a.lay
}

// Insert stores v and returns its handle, or 0 when every index is in use
// or retired.
func (a *Arena[T]) Insert(v T) abi.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		if uint64(len(a.slots)) >= a.layout().maxSlots() {
			return 0
		}
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}
	s := &a.slots[idx]
	s.used = true
	s.value = v
	a.live++
	return a.layout().pack(a.tag, idx, s.gen)
}

// Get returns the instance for h.
func (a *Arena[T]) Get(h abi.Handle) (T, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := a.lookup(h)
	if s == nil {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Remove frees the slot for h and returns the instance it held.
func (a *Arena[T]) Remove(h abi.Handle) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	s := a.lookup(h)
	if s == nil {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.used = false
	a.live--
	if s.gen == a.layout().maxGen() {
		// every generation has been handed out; reuse would alias a stale handle
		return v, true
	}
	s.gen++
	idx, _, _ := a.layout().unpack(a.tag, h)
	a.free = append(a.free, idx)
	return v, true
}

// Len returns the number of live instances.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}

// Handles returns the handles of all live instances.
func (a *Arena[T]) Handles() []abi.Handle {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]abi.Handle, 0, a.live)
	for i, s := range a.slots {
		if s.used {
			out = append(out, a.layout().pack(a.tag, uint32(i), s.gen))
		}
	}
	return out
}

func (a *Arena[T]) lookup(h abi.Handle) *slot[T] {
	idx, gen, ok := a.layout().unpack(a.tag, h)
	if !ok || int(idx) >= len(a.slots) {
		return nil
	}
	s := &a.slots[idx]
	if !s.used || s.gen != gen {
		return nil
	}
	return s
}
