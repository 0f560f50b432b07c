package main

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rlmatch/recorder/internal/config"
)

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"port":         "relay.port",
	"debug":        "relay.debug",
	"debug-filter": "relay.debugFilters",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.Int("port", 49322, "relay websocket port")
	fs.Bool("debug", false, "log every inbound relay event")
	fs.StringArray("debug-filter", nil, "compound event name to leave out of debug logs (repeatable)")
	fs.String("config", ".", "directory containing "+config.FileName)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] [export <match-id>... | list]\n", AppName)
		fs.PrintDefaults()
	}
	return fs
}

// loadConfig binds flags to viper and reads the config file. Flags set on
// the command line win over the file.
func loadConfig(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	dir, err := fs.GetString("config")
	if err != nil {
		return err
	}
	return config.Load(dir)
}
