// Command testcard builds the testcard core as a loadable plugin:
//
//	go build -buildmode=c-shared -o plugins/Testcard.emu/Testcard.so ./plugins/testcard
//
// The host opens the library, resolves jemu_descriptor and enumerates the
// single org.jemu.Testcard descriptor. Setting JEMU_PLUGIN_DEBUG enables
// plugin-side logging to stderr.
package main

import "C"

import (
	"os"

	"go.uber.org/zap"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/cabi"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/logging"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/registry"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/testcard"
)

func init() {
	log := zap.NewNop()
	if _, ok := os.LookupEnv("JEMU_PLUGIN_DEBUG"); ok {
		if l, err := logging.New(true); err == nil {
			log = l.Named("testcard")
		}
	}
	cabi.SetLogger(log)

	r := registry.New(registry.WithLogger(log))
	if _, err := testcard.Register(r, log, ""); err != nil {
		log.Error("register", zap.Error(err))
		return
	}
	if err := cabi.Install(r); err != nil {
		log.Error("install", zap.Error(err))
	}
}

func main() {}
