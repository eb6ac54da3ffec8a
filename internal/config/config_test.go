package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "plugins", c.PluginsDir)
	assert.Equal(t, "Nestopia", c.Plugin)
	assert.Equal(t, abi.NestopiaID, c.Core)
	assert.Equal(t, 60, c.TickHz)
	assert.Equal(t, 48000, c.Audio.SampleRate)
	assert.Equal(t, 2, c.Audio.Channels)
	assert.Equal(t, 1.0, c.Audio.Volume)
	assert.NoError(t, c.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jemu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plugin: Testcard
core: org.jemu.Testcard
rom: roms/bars.bin
audio:
  channels: 1
window:
  scale: 3
  keys:
    Space: start
`), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Testcard", c.Plugin)
	assert.Equal(t, abi.TestcardID, c.Core)
	assert.Equal(t, "roms/bars.bin", c.ROM)
	assert.Equal(t, 1, c.Audio.Channels)
	assert.Equal(t, 48000, c.Audio.SampleRate)
	assert.Equal(t, 3, c.Window.Scale)
	assert.Equal(t, map[string]string{"Space": "start"}, c.Window.Keys)
	assert.Equal(t, "plugins", c.PluginsDir)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tick_hz: [1"), 0o644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	env := map[string]string{
		"JEMU_PLUGIN":   "Testcard",
		"JEMU_ROM":      "game.nes",
		"JEMU_TICK_HZ":  "50",
		"JEMU_DEBUG":    "true",
		"JEMU_NO_AUDIO": "1",
		"JEMU_CORE":     "",
		"JEMU_VOLUME":   "0.5",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	c := Default()
	require.NoError(t, c.FromEnv(lookup))
	assert.Equal(t, "Testcard", c.Plugin)
	assert.Equal(t, "game.nes", c.ROM)
	assert.Equal(t, 50, c.TickHz)
	assert.True(t, c.Debug)
	assert.True(t, c.Audio.Disabled)
	assert.Equal(t, 0.5, c.Audio.Volume)
	assert.Equal(t, abi.NestopiaID, c.Core, "empty values are ignored")

	env["JEMU_TICK_HZ"] = "fast"
	env["JEMU_DEBUG"] = "maybe"
	env["JEMU_VOLUME"] = "loud"
	err := c.FromEnv(lookup)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "JEMU_VOLUME")
	assert.Contains(t, err.Error(), "JEMU_TICK_HZ")
	assert.Contains(t, err.Error(), "JEMU_DEBUG")
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"plugin":   func(c *Config) { c.Plugin = " " },
		"core":     func(c *Config) { c.Core = "" },
		"tick":     func(c *Config) { c.TickHz = 5000 },
		"channels": func(c *Config) { c.Audio.Channels = 0 },
		"rate":     func(c *Config) { c.Audio.SampleRate = 100 },
		"volume":   func(c *Config) { c.Audio.Volume = 1.5 },
		"scale":    func(c *Config) { c.Window.Scale = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}
