// Package audio moves samples from a running core to the sound device or to
// a WAV file.
package audio

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

// Source produces mono samples on demand. It must fill the whole slice,
// writing silence when it has nothing.
type Source interface {
	ReadAudio(out []float32)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(out []float32)

func (f SourceFunc) ReadAudio(out []float32) { f(out) }

// DefaultMaxFrames caps a single pull, ~42ms at 48kHz.
const DefaultMaxFrames = 2048

// Stream implements io.Reader by pulling mono samples from a Source and
// writing them as interleaved float32 little-endian frames, channel 0
// duplicated into every channel.
type Stream struct {
	src      Source
	channels int
	mono     []float32
	muted    atomic.Bool
	tap      func([]float32)

	frames atomic.Uint64
}

// NewStream returns a stream for channels output channels that pulls at
// most maxFrames frames per Read.
func NewStream(src Source, channels, maxFrames int) *Stream {
	if channels < 1 {
		channels = 1
	}
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	return &Stream{src: src, channels: channels, mono: make([]float32, maxFrames)}
}

// SetMuted makes Read produce silence without pulling from the source.
func (s *Stream) SetMuted(m bool) { s.muted.Store(m) }

// Tap registers fn to see every mono block pulled from the source. Set it
// before the stream is handed to a player.
func (s *Stream) Tap(fn func([]float32)) { s.tap = fn }

// Frames returns the number of frames produced so far.
func (s *Stream) Frames() uint64 { return s.frames.Load() }

func (s *Stream) frameSize() int { return 4 * s.channels }

func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	// smaller than a frame: pad with silence instead of returning 0 bytes
	fs := s.frameSize()
	if len(p) < fs {
		clear(p)
		return len(p), nil
	}

	n := min(len(p)/fs, len(s.mono))
	mono := s.mono[:n]
	if s.muted.Load() || s.src == nil {
		clear(mono)
	} else {
		s.src.ReadAudio(mono)
	}
	if s.tap != nil {
		s.tap(mono)
	}

	i := 0
	for _, v := range mono {
		bits := math.Float32bits(v)
		for c := 0; c < s.channels; c++ {
			binary.LittleEndian.PutUint32(p[i:], bits)
			i += 4
		}
	}
	s.frames.Add(uint64(n))
	return i, nil
}
