package audio

import (
	"errors"
	"io"
	"math"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const bitDepth = 16

// Recorder collects mono samples and writes them as 16-bit PCM WAV.
type Recorder struct {
	rate     int
	channels int

	mu      sync.Mutex
	samples []int
}

// NewRecorder returns an empty recorder. Mono input is duplicated into
// every channel on output.
func NewRecorder(sampleRate, channels int) *Recorder {
	if channels < 1 {
		channels = 1
	}
	return &Recorder{rate: sampleRate, channels: channels}
}

// Append records a block of mono samples, clamped to [-1, 1].
func (r *Recorder) Append(mono []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range mono {
		s := toPCM16(v)
		for c := 0; c < r.channels; c++ {
			r.samples = append(r.samples, s)
		}
	}
}

// Frames returns the number of recorded frames.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples) / r.channels
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.samples = r.samples[:0]
	r.mu.Unlock()
}

// Encode writes the recording to w as WAV.
func (r *Recorder) Encode(w io.WriteSeeker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	enc := wav.NewEncoder(w, r.rate, bitDepth, r.channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: r.channels, SampleRate: r.rate},
		Data:           r.samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return errors.Join(err, enc.Close())
	}
	return enc.Close()
}

// Save writes the recording to a new file at path.
func (r *Recorder) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Encode(f); err != nil {
		return errors.Join(err, f.Close())
	}
	return f.Close()
}

func toPCM16(v float32) int {
	switch {
	case v != v: // NaN
		return 0
	case v >= 1:
		return math.MaxInt16
	case v <= -1:
		return -math.MaxInt16
	}
	return int(v * math.MaxInt16)
}
