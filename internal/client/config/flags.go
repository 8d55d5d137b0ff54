package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gomessenger/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   server address (default from Config)
//	-p int      server port (default from Config)
//	-u string   account name; skips the interactive prompt
//	-m int      maximum wire frame length, bytes
//	-r int      reconnect interval in seconds (default from Config)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-p", "-u", "-m", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "server address")
	fs.IntVar(&cfg.ServerPort, "p", cfg.ServerPort, "server port")
	fs.StringVar(&cfg.Username, "u", cfg.Username, "account name")
	fs.IntVar(&cfg.MaxFrameLength, "m", cfg.MaxFrameLength, "maximum frame length in bytes")
	reconnectInterval := fs.Int("r", int(cfg.ReconnectInterval.Seconds()), "reconnect interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.ReconnectInterval = time.Duration(*reconnectInterval) * time.Second
}
