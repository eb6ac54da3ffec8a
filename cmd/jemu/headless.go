package main

import (
	"errors"
	"fmt"
	"hash/crc32"
	"image/png"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/audio"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/config"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/engine"
)

var (
	ErrChecksum = errors.New("framebuffer checksum mismatch")
	ErrNoFrame  = errors.New("core produced no frame")
)

type headlessFlags struct {
	frames int
	png    string
	wav    string
	expect string // framebuffer CRC32, hex
}

func newHeadlessCommand(g *globalFlags) *cobra.Command {
	var f headlessFlags
	cmd := &cobra.Command{
		Use:   "headless",
		Short: "Run a core without a window and report the final frame checksum",
		Long: `Run a core for a fixed number of ticks as fast as possible. The final
frame can be written as PNG and its CRC32 checked against --expect; the
audio the core produced can be written as WAV.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(cmd)
			if err != nil {
				return err
			}
			h, err := g.newHost(cfg, log)
			if err != nil {
				return err
			}
			defer h.Close()
			if err := h.load(cfg); err != nil {
				return err
			}
			return runHeadless(cmd, h.eng, cfg, f, log)
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&f.frames, "frames", 300, "ticks to run")
	fl.StringVar(&f.png, "png", "", "write the last frame to this PNG file")
	fl.StringVar(&f.wav, "wav", "", "write the produced audio to this WAV file")
	fl.StringVar(&f.expect, "expect", "", "assert framebuffer CRC32 (hex)")
	return cmd
}

func runHeadless(cmd *cobra.Command, eng *engine.Engine, cfg config.Config, f headlessFlags, log *zap.Logger) error {
	frames := max(f.frames, 1)

	var (
		rec    *audio.Recorder
		stream *audio.Stream
		block  []byte
	)
	if f.wav != "" {
		// one emulated frame of audio per tick; --tick-hz only changes pacing
		perTick := cfg.Audio.SampleRate / abi.FrameRate
		rec = audio.NewRecorder(cfg.Audio.SampleRate, 1)
		stream = audio.NewStream(eng, 1, perTick)
		stream.Tap(rec.Append)
		block = make([]byte, perTick*4)
	}

	start := time.Now()
	for i := 0; i < frames; i++ {
		eng.Step()
		if stream != nil {
			if _, err := io.ReadFull(stream, block); err != nil {
				return fmt.Errorf("pull audio: %w", err)
			}
		}
	}
	dur := time.Since(start)

	fb := make([]byte, abi.FrameBytes)
	eng.CopyVideo(fb)
	crc := crc32.ChecksumIEEE(fb)
	log.Info("headless done",
		zap.Int("frames", frames),
		zap.Duration("elapsed", dur.Truncate(time.Millisecond)),
		zap.Float64("fps", float64(frames)/dur.Seconds()),
		zap.String("fb_crc32", fmt.Sprintf("%08x", crc)))
	fmt.Fprintf(cmd.OutOrStdout(), "frames=%d fb_crc32=%08x\n", frames, crc)

	if f.png != "" {
		if err := savePNG(eng, f.png); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Info("wrote", zap.String("path", f.png))
	}
	if rec != nil {
		if err := rec.Save(f.wav); err != nil {
			return fmt.Errorf("write WAV: %w", err)
		}
		log.Info("wrote", zap.String("path", f.wav), zap.Int("frames", rec.Frames()))
	}

	if f.expect != "" {
		want := strings.TrimPrefix(strings.ToLower(f.expect), "0x")
		if got := fmt.Sprintf("%08x", crc); got != want {
			return fmt.Errorf("%w: got %s, want %s", ErrChecksum, got, want)
		}
	}
	return nil
}

func savePNG(eng *engine.Engine, path string) error {
	img, ok := eng.Snapshot()
	if !ok {
		return ErrNoFrame
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
