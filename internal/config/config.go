// Package config holds the host settings: where plugins live, which core
// to run, timing, audio and window options.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
)

var ErrInvalid = errors.New("config: invalid")

// Config contains everything the host needs to load and run a core.
type Config struct {
	PluginsDir string `yaml:"plugins_dir"` // directory holding <name>.emu bundles
	Plugin     string `yaml:"plugin"`      // bundle name without suffix
	Core       string `yaml:"core"`        // descriptor identifier inside the bundle
	ROM        string `yaml:"rom"`
	ROMsDir    string `yaml:"roms_dir"` // browsed by the in-window menu
	TickHz     int    `yaml:"tick_hz"`
	Debug      bool   `yaml:"debug"`

	Audio  Audio  `yaml:"audio"`
	Window Window `yaml:"window"`
}

// Audio configures the output device.
type Audio struct {
	Disabled   bool `yaml:"disabled"`
	SampleRate int  `yaml:"sample_rate"`
	Channels   int  `yaml:"channels"`
	BufferMs   int  `yaml:"buffer_ms"` // device buffer, approx

	// Volume is the player gain in (0, 1]; 0 means full volume.
	Volume float64 `yaml:"volume"`
}

// Window configures the ebiten window.
type Window struct {
	Title string `yaml:"title"`
	Scale int    `yaml:"scale"` // integer upscaling factor

	// Keys maps ebiten key names to control names, e.g. "Z": "a".
	// Entries here replace the default binding for that key.
	Keys map[string]string `yaml:"keys"`

	ScreenshotDir string `yaml:"screenshot_dir"`
}

// Default returns a config with every field set to its default.
func Default() Config {
	var c Config
	c.Defaults()
	return c
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.PluginsDir == "" {
		c.PluginsDir = "plugins"
	}
	if c.Plugin == "" {
		c.Plugin = "Nestopia"
	}
	if c.Core == "" {
		c.Core = abi.NestopiaID
	}
	if c.ROMsDir == "" {
		c.ROMsDir = "roms"
	}
	if c.TickHz <= 0 {
		c.TickHz = 60
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 48000
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = 2
	}
	if c.Audio.BufferMs <= 0 {
		c.Audio.BufferMs = 50
	}
	if c.Audio.Volume == 0 {
		c.Audio.Volume = 1
	}
	if c.Window.Title == "" {
		c.Window.Title = "jemu"
	}
	if c.Window.Scale <= 0 {
		c.Window.Scale = 2
	}
	if c.Window.ScreenshotDir == "" {
		c.Window.ScreenshotDir = "."
	}
}

// LoadFile reads a YAML config and fills in defaults for missing fields.
func LoadFile(path string) (Config, error) {
	var c Config
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.Defaults()
	return c, nil
}

// FromEnv overrides fields from JEMU_* variables found by lookup, which is
// usually os.LookupEnv.
func (c *Config) FromEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalid, key, v)
		}
		*dst = n
		return nil
	}
	frac := func(key string, dst *float64) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalid, key, v)
		}
		*dst = f
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalid, key, v)
		}
		*dst = b
		return nil
	}

	str("JEMU_PLUGINS_DIR", &c.PluginsDir)
	str("JEMU_PLUGIN", &c.Plugin)
	str("JEMU_CORE", &c.Core)
	str("JEMU_ROM", &c.ROM)
	return errors.Join(
		num("JEMU_TICK_HZ", &c.TickHz),
		num("JEMU_SAMPLE_RATE", &c.Audio.SampleRate),
		frac("JEMU_VOLUME", &c.Audio.Volume),
		num("JEMU_SCALE", &c.Window.Scale),
		flag("JEMU_DEBUG", &c.Debug),
		flag("JEMU_NO_AUDIO", &c.Audio.Disabled),
	)
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Plugin) == "":
		return fmt.Errorf("%w: plugin name is empty", ErrInvalid)
	case c.Core == "":
		return fmt.Errorf("%w: core identifier is empty", ErrInvalid)
	case c.TickHz <= 0 || c.TickHz > 1000:
		return fmt.Errorf("%w: tick_hz %d out of range", ErrInvalid, c.TickHz)
	case c.Audio.Channels < 1 || c.Audio.Channels > 8:
		return fmt.Errorf("%w: %d audio channels", ErrInvalid, c.Audio.Channels)
	case c.Audio.SampleRate < 8000:
		return fmt.Errorf("%w: sample rate %d", ErrInvalid, c.Audio.SampleRate)
	case c.Audio.Volume < 0 || c.Audio.Volume > 1:
		return fmt.Errorf("%w: volume %g", ErrInvalid, c.Audio.Volume)
	case c.Window.Scale < 1:
		return fmt.Errorf("%w: window scale %d", ErrInvalid, c.Window.Scale)
	}
	return nil
}
