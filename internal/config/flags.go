package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/keevault/internal/flagx"
)

// parseFlags overlays cfg with the flags it owns:
//
//	-d string   data directory
//	-l string   log level (debug, info, warn, error)
//	-t int      sync timeout in seconds
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-d", "-l", "-t"})

	fs := flag.NewFlagSet("keevault", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	syncTimeout := fs.Int("t", int(cfg.SyncTimeout.Seconds()), "sync timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			cfg.SyncTimeout = time.Duration(*syncTimeout) * time.Second
		}
	})
	return nil
}
