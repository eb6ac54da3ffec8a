// Package ringbuffer implements a fixed-capacity byte queue that is safe for
// exactly one writer and one reader running concurrently without locks.
//
// The buffer size is always a power of two so index wraparound is a mask.
// One byte is kept free to tell a full buffer from an empty one, so the
// usable capacity is Size()-1.
//
// Each index is stored by exactly one side: the writer owns the write index,
// the reader owns the read index. The writer publishes new data by storing
// the write index after the bytes are copied in; the reader releases space by
// storing the read index after the bytes are copied out. The atomic
// load/store pair is the only synchronisation between the two sides.
package ringbuffer

import "sync/atomic"

const (
	minSize = 2
	maxSize = 1 << 31
)

// RingBuffer is a single-producer single-consumer byte queue.
type RingBuffer struct {
	write atomic.Uint32
	read  atomic.Uint32
	size  uint32
	mask  uint32
	buf   []byte
}

// New returns a buffer whose size is the smallest power of two >= capacity.
// Requests below 2 are raised to 2 and requests above 2^31 are clamped.
func New(capacity uint32) *RingBuffer {
	rb := &RingBuffer{}
	rb.alloc(capacity)
	return rb
}

// NextPowerOfTwo returns the smallest power of two >= v within [2, 2^31].
func NextPowerOfTwo(v uint32) uint32 {
	if v <= minSize {
		return minSize
	}
	if v > maxSize {
		return maxSize
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	return v + 1
}

func (rb *RingBuffer) alloc(capacity uint32) {
	rb.size = NextPowerOfTwo(capacity)
	rb.mask = rb.size - 1
	rb.buf = make([]byte, rb.size)
	rb.Reset()
}

// Resize reallocates the storage for a new capacity and empties the buffer.
// Not safe while a reader or writer is active.
func (rb *RingBuffer) Resize(capacity uint32) {
	if NextPowerOfTwo(capacity) == rb.size {
		return
	}
	rb.alloc(capacity)
}

// Reset empties the buffer. Not safe while a reader or writer is active.
func (rb *RingBuffer) Reset() {
	rb.write.Store(0)
	rb.read.Store(0)
}

// Clear is an alias of Reset.
func (rb *RingBuffer) Clear() { rb.Reset() }

// Size returns the power-of-two size of the backing array.
func (rb *RingBuffer) Size() uint32 { return rb.size }

// Capacity returns the usable capacity, i.e. the write space when empty.
func (rb *RingBuffer) Capacity() uint32 { return rb.size - 1 }

// ReadSpace returns the number of bytes available for reading.
// Only the reader may rely on the value.
func (rb *RingBuffer) ReadSpace() uint32 {
	return rb.readSpace(rb.read.Load(), rb.write.Load())
}

// WriteSpace returns the number of bytes available for writing.
// Only the writer may rely on the value.
func (rb *RingBuffer) WriteSpace() uint32 {
	return rb.writeSpace(rb.read.Load(), rb.write.Load())
}

func (rb *RingBuffer) readSpace(r, w uint32) uint32 {
	return (w - r) & rb.mask
}

func (rb *RingBuffer) writeSpace(r, w uint32) uint32 {
	return (r - w - 1) & rb.mask
}

// Write copies all of src into the buffer and returns len(src), or returns 0
// without touching the buffer when src does not fit.
func (rb *RingBuffer) Write(src []byte) uint32 {
	size := uint32(len(src))
	if size == 0 {
		return 0
	}
	r := rb.read.Load()
	w := rb.write.Load()
	if uint64(len(src)) > uint64(rb.writeSpace(r, w)) {
		return 0
	}

	// copy stops at the end of the array; whatever is left wraps to the start.
	n := copy(rb.buf[w:], src)
	copy(rb.buf, src[n:])

	rb.write.Store((w + size) & rb.mask)
	return size
}

// Read copies len(dst) bytes out of the buffer and advances the read index.
// Returns 0 and leaves the buffer untouched if fewer bytes are available.
func (rb *RingBuffer) Read(dst []byte) uint32 {
	r := rb.read.Load()
	w := rb.write.Load()
	size := rb.peek(r, w, dst)
	if size == 0 {
		return 0
	}
	rb.read.Store((r + size) & rb.mask)
	return size
}

// Peek copies len(dst) bytes out of the buffer without consuming them.
func (rb *RingBuffer) Peek(dst []byte) uint32 {
	return rb.peek(rb.read.Load(), rb.write.Load(), dst)
}

// Skip advances the read index by size bytes without copying.
func (rb *RingBuffer) Skip(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	r := rb.read.Load()
	w := rb.write.Load()
	if rb.readSpace(r, w) < size {
		return 0
	}
	rb.read.Store((r + size) & rb.mask)
	return size
}

func (rb *RingBuffer) peek(r, w uint32, dst []byte) uint32 {
	size := uint32(len(dst))
	if size == 0 || uint64(len(dst)) > uint64(rb.readSpace(r, w)) {
		return 0
	}
	n := copy(dst, rb.buf[r:])
	copy(dst[n:], rb.buf)
	return size
}
