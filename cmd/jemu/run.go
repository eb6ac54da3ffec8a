package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/audio"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/config"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/engine"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/input"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/ui"
)

func newRunCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open a window and play the configured core",
		Long: `Load the configured core and game and show it in a window.

Keys: arrows, Z/X/A/S, Q/W, 1/2, Right Shift (select), Enter (start).
Esc opens the menu, P pauses, N steps while paused, R resets, Tab
fast-forwards and F12 saves a screenshot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(cmd)
			if err != nil {
				return err
			}
			keys, err := ui.ParseKeymap(cfg.Window.Keys)
			if err != nil {
				return err
			}
			h, err := g.newHost(cfg, log)
			if err != nil {
				return err
			}
			defer h.Close()

			err = h.load(cfg)
			switch {
			case errors.Is(err, engine.ErrROMRejected):
				log.Warn("continuing without a game", zap.Error(err))
			case err != nil:
				return err
			}

			opts := ui.Options{
				Window:  cfg.Window,
				ROMsDir: cfg.ROMsDir,
				Bundle:  h.bundle,
				CoreID:  cfg.Core,
				Keys:    keys,
				Logger:  log,
			}
			if dev := openAudio(h.eng, cfg.Audio, log); dev != nil {
				defer dev.Close()
				opts.Audio = dev
			}

			app := ui.NewApp(h.eng, opts)
			m := input.NewManager(log)
			defer m.Close()
			m.AddSource(app.Source())
			m.AddListener(h.eng)
			return app.Run()
		},
	}
}

// openAudio returns nil when audio is disabled or unavailable; the core
// still runs, its samples are just never drained.
func openAudio(eng *engine.Engine, cfg config.Audio, log *zap.Logger) *audio.Device {
	if cfg.Disabled {
		return nil
	}
	dev, err := audio.OpenDevice(eng, audio.DeviceOptions{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		Buffer:     time.Duration(cfg.BufferMs) * time.Millisecond,
	})
	if err != nil {
		log.Warn("running without sound", zap.Error(err))
		return nil
	}
	dev.SetVolume(cfg.Volume)
	return dev
}
