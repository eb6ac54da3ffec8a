package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/config"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/engine"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/loader"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/logging"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/registry"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/rom"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/testcard"
)

const defaultConfigFile = "jemu.yaml"

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	pluginsDir string
	plugin     string
	core       string
	rom        string
	tickHz     int
	debug      bool
	builtin    bool
}

func newRootCommand() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:   "jemu",
		Short: "Plugin host for emulator cores",
		Long: `jemu loads emulator cores from plugin bundles (<name>.emu directories
holding a shared library), runs them at a fixed tick rate and plays their
audio and video.

Settings come from jemu.yaml (or --config), then JEMU_* environment
variables, then flags.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ./"+defaultConfigFile+" if present)")
	pf.StringVar(&g.pluginsDir, "plugins-dir", "", "directory holding plugin bundles")
	pf.StringVar(&g.plugin, "plugin", "", "bundle name, or a path to a bundle")
	pf.StringVar(&g.core, "core", "", "descriptor identifier inside the bundle")
	pf.StringVar(&g.rom, "rom", "", "game to load")
	pf.IntVar(&g.tickHz, "tick-hz", 0, "emulation rate")
	pf.BoolVar(&g.debug, "debug", false, "debug logging")
	pf.BoolVar(&g.builtin, "builtin", false, "serve the testcard core in-process instead of loading a library")

	root.AddCommand(
		newRunCommand(&g),
		newHeadlessCommand(&g),
		newInspectCommand(&g),
	)
	return root
}

// load resolves the effective config and builds the logger.
func (g *globalFlags) load(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfg, err := g.readConfig()
	if err != nil {
		return cfg, nil, err
	}
	if err := cfg.FromEnv(os.LookupEnv); err != nil {
		return cfg, nil, err
	}

	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("plugins-dir", &cfg.PluginsDir, g.pluginsDir)
	set("plugin", &cfg.Plugin, g.plugin)
	set("core", &cfg.Core, g.core)
	set("rom", &cfg.ROM, g.rom)
	if flags.Changed("tick-hz") {
		cfg.TickHz = g.tickHz
	}
	if flags.Changed("debug") {
		cfg.Debug = g.debug
	}
	if g.builtin && !flags.Changed("core") {
		cfg.Core = abi.TestcardID
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}

	log, err := logging.New(cfg.Debug)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

func (g *globalFlags) readConfig() (config.Config, error) {
	path := g.configPath
	if path == "" {
		path = defaultConfigFile
	}
	cfg, err := config.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) && g.configPath == "" {
		return config.Default(), nil
	}
	return cfg, err
}

// bundlePath accepts a bare bundle name or a path to a bundle.
func bundlePath(cfg config.Config) string {
	if strings.HasSuffix(cfg.Plugin, loader.BundleExt()) || strings.ContainsRune(cfg.Plugin, filepath.Separator) {
		return cfg.Plugin
	}
	return loader.BundlePath(cfg.PluginsDir, cfg.Plugin)
}

// host is an engine plus whatever it needs torn down after it.
type host struct {
	eng    *engine.Engine
	bundle string
	reg    *registry.Registry
	log    *zap.Logger
}

func (g *globalFlags) newHost(cfg config.Config, log *zap.Logger) (*host, error) {
	h := &host{bundle: bundlePath(cfg), log: log}
	opts := []engine.Option{engine.WithLogger(log), engine.WithTickHz(cfg.TickHz)}
	if g.builtin {
		opener, reg, err := builtinOpener(h.bundle, cfg.Core, log)
		if err != nil {
			return nil, err
		}
		h.reg = reg
		opts = append(opts, engine.WithOpener(opener))
	}
	h.eng = engine.New(opts...)
	return h, nil
}

// builtinOpener serves the testcard under id at bundle's library path.
func builtinOpener(bundle, id string, log *zap.Logger) (loader.Opener, *registry.Registry, error) {
	reg := registry.New(registry.WithLogger(log))
	if _, err := testcard.Register(reg, log, id); err != nil {
		return nil, nil, err
	}
	static := loader.NewStatic()
	static.Provide(loader.LibraryPath(bundle), reg.Descriptor)
	return static.Open, reg, nil
}

func (h *host) Close() error {
	err := h.eng.Close()
	if h.reg != nil {
		err = errors.Join(err, h.reg.Close())
	}
	_ = h.log.Sync()
	return err
}

// load logs what the ROM header says and hands the game to the engine.
func (h *host) load(cfg config.Config) error {
	if cfg.ROM != "" {
		hdr, err := rom.ReadHeader(cfg.ROM)
		switch {
		case err == nil:
			h.log.Info("rom", zap.String("path", cfg.ROM), zap.Stringer("header", hdr))
		case errors.Is(err, rom.ErrNotINES), errors.Is(err, rom.ErrTooSmall):
			h.log.Debug("rom has no iNES header", zap.String("path", cfg.ROM))
		default:
			h.log.Warn("rom", zap.String("path", cfg.ROM), zap.Error(err))
		}
	}
	return h.eng.LoadPlugin(h.bundle, cfg.Core, cfg.ROM)
}
