package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/loader"
)

var capabilities = []string{abi.GameCoreID, abi.GamePadID, abi.GamePadSourceID, abi.MFIID}

func newInspectCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [bundle]",
		Short: "List the descriptors a bundle exports and their capabilities",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()
			if len(args) == 1 {
				cfg.Plugin = args[0]
			}
			path := bundlePath(cfg)

			opts := []loader.Option{loader.WithLogger(log)}
			if g.builtin {
				opener, reg, err := builtinOpener(path, cfg.Core, log)
				if err != nil {
					return err
				}
				defer reg.Close()
				opts = append(opts, loader.WithOpener(opener))
			}
			b := loader.NewBundle(path, opts...)
			if err := b.Open(); err != nil {
				return err
			}
			defer b.Close()

			out := cmd.OutOrStdout()
			descs := b.Descriptors()
			fmt.Fprintf(out, "%s: %d descriptor(s)\n", path, len(descs))
			for _, d := range descs {
				var caps []string
				for _, id := range capabilities {
					if d.Extension != nil && d.Extension(id) != nil {
						caps = append(caps, strings.TrimPrefix(id, "org.jemu."))
					}
				}
				fmt.Fprintf(out, "  %s [%s]\n", d.ID, strings.Join(caps, " "))
			}
			return nil
		},
	}
}
