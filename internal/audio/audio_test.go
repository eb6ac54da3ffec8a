package audio

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(out []float32) {
	for i := range out {
		out[i] = float32(i) / 10
	}
}

func sample(p []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(p[4*i:]))
}

func TestStream_DuplicatesChannelZero(t *testing.T) {
	s := NewStream(SourceFunc(ramp), 2, 16)
	p := make([]byte, 4*2*3)
	n, err := s.Read(p)
	require.NoError(t, err)
	assert.Equal(t, len(p), n)
	for f := 0; f < 3; f++ {
		assert.Equal(t, float32(f)/10, sample(p, 2*f))
		assert.Equal(t, float32(f)/10, sample(p, 2*f+1))
	}
	assert.EqualValues(t, 3, s.Frames())
}

func TestStream_CapsFramesPerRead(t *testing.T) {
	s := NewStream(SourceFunc(ramp), 1, 4)
	p := make([]byte, 4*100)
	n, err := s.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
}

func TestStream_ShortBufferIsSilence(t *testing.T) {
	called := false
	s := NewStream(SourceFunc(func([]float32) { called = true }), 2, 0)
	p := []byte{1, 2, 3, 4, 5}
	n, err := s.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, make([]byte, 5), p)
	assert.False(t, called)

	n, err = s.Read(nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestStream_MutedAndTap(t *testing.T) {
	s := NewStream(SourceFunc(func(out []float32) {
		for i := range out {
			out[i] = 1
		}
	}), 1, 0)
	var tapped []float32
	s.Tap(func(b []float32) { tapped = append(tapped, b...) })

	s.SetMuted(true)
	p := make([]byte, 8)
	_, _ = s.Read(p)
	assert.Equal(t, float32(0), sample(p, 0))

	s.SetMuted(false)
	_, _ = s.Read(p)
	assert.Equal(t, float32(1), sample(p, 1))
	assert.Equal(t, []float32{0, 0, 1, 1}, tapped)
}

func TestRecorder_SaveRoundTrip(t *testing.T) {
	r := NewRecorder(48000, 2)
	r.Append([]float32{0, 0.5, -0.5, 2, -2})
	assert.Equal(t, 5, r.Frames())

	path := filepath.Join(t.TempDir(), "out.wav")
	require.NoError(t, r.Save(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	d := wav.NewDecoder(f)
	require.True(t, d.IsValidFile())
	buf, err := d.FullPCMBuffer()
	require.NoError(t, err)
	assert.EqualValues(t, 48000, d.SampleRate)
	assert.EqualValues(t, 2, d.NumChans)
	assert.EqualValues(t, 16, d.BitDepth)
	assert.Equal(t, []int{
		0, 0,
		16383, 16383,
		-16383, -16383,
		32767, 32767,
		-32767, -32767,
	}, buf.Data)

	r.Reset()
	assert.Zero(t, r.Frames())
}

func TestToPCM16(t *testing.T) {
	assert.Equal(t, 0, toPCM16(float32(math.NaN())))
	assert.Equal(t, math.MaxInt16, toPCM16(1.5))
	assert.Equal(t, -math.MaxInt16, toPCM16(-1))
}

func TestClampVolume(t *testing.T) {
	assert.Equal(t, 0.5, clampVolume(0.5))
	assert.Equal(t, 1.0, clampVolume(3))
	assert.Zero(t, clampVolume(-1))
	assert.Zero(t, clampVolume(math.NaN()))
}
