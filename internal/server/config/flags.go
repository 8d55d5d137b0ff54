package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gomessenger/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string          interface to listen on (empty means all interfaces)
//	-p int             TCP listen port
//	-d string          PostgreSQL DSN; empty selects the in-memory store
//	-m int             maximum wire frame length, bytes
//	-register string   register a user as name:password and exit
//	-remove string     remove a user by name and exit
//	-active            print live sessions and exit
//	-history string    print login history for a user and exit
//	-stats             print per-user relay counters and exit
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-p", "-d", "-m", "-register", "-remove", "-active", "-history", "-stats"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.Addr, "a", config.Addr, "interface to listen on")
	fs.IntVar(&config.Port, "p", config.Port, "TCP listen port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.MaxFrameLength, "m", config.MaxFrameLength, "maximum frame length in bytes")
	fs.StringVar(&config.RegisterUser, "register", config.RegisterUser, "register a user as name:password and exit")
	fs.StringVar(&config.RemoveUser, "remove", config.RemoveUser, "remove a user by name and exit")
	fs.BoolVar(&config.ShowActive, "active", config.ShowActive, "print live sessions and exit")
	fs.StringVar(&config.HistoryUser, "history", config.HistoryUser, "print login history for a user and exit")
	fs.BoolVar(&config.ShowStats, "stats", config.ShowStats, "print per-user relay counters and exit")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
