package audio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// DeviceOptions selects the output format.
type DeviceOptions struct {
	SampleRate int
	Channels   int
	Buffer     time.Duration
}

// oto allows one context per process.
var (
	otoCtx      *oto.Context
	otoOpts     DeviceOptions
	otoInitOnce sync.Once
	otoInitErr  error
)

func ensureContext(opts DeviceOptions) (*oto.Context, error) {
	otoInitOnce.Do(func() {
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   opts.SampleRate,
			ChannelCount: opts.Channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   opts.Buffer,
		})
		if otoInitErr != nil {
			return
		}
		otoOpts = opts
		<-ready
	})
	if otoInitErr != nil {
		return nil, otoInitErr
	}
	if opts.SampleRate != otoOpts.SampleRate || opts.Channels != otoOpts.Channels {
		return nil, fmt.Errorf("audio: device already open at %d Hz x%d", otoOpts.SampleRate, otoOpts.Channels)
	}
	return otoCtx, nil
}

// Device plays a Stream on the default output.
type Device struct {
	player *oto.Player
	stream *Stream
}

// OpenDevice starts a paused player pulling from src.
func OpenDevice(src Source, opts DeviceOptions) (*Device, error) {
	if opts.Channels < 1 {
		opts.Channels = 2
	}
	ctx, err := ensureContext(opts)
	if err != nil {
		return nil, fmt.Errorf("audio not available: %w", err)
	}

	// keep the player's own queue about as long as the device buffer
	frames := int(opts.Buffer.Seconds() * float64(opts.SampleRate))
	if frames <= 0 {
		frames = DefaultMaxFrames
	}
	stream := NewStream(src, opts.Channels, min(frames, DefaultMaxFrames))
	player := ctx.NewPlayer(stream)
	player.SetBufferSize(frames * stream.frameSize())
	return &Device{player: player, stream: stream}, nil
}

// Stream returns the stream feeding the player.
func (d *Device) Stream() *Stream { return d.stream }

func (d *Device) Play()           { d.player.Play() }
func (d *Device) Pause()          { d.player.Pause() }
func (d *Device) IsPlaying() bool { return d.player.IsPlaying() }
func (d *Device) SetMuted(m bool) { d.stream.SetMuted(m) }

// SetVolume sets the player gain, clamped to [0, 1].
func (d *Device) SetVolume(v float64) { d.player.SetVolume(clampVolume(v)) }

func clampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return max(0, min(v, 1))
}

func (d *Device) Close() error {
	d.player.Pause()
	return d.player.Close()
}
