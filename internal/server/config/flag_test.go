package config

import (
	"flag"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd",
			"-a", "127.0.0.1", "-p", "7900", "-d", "postgres://db", "-m", "4096",
		}, expectPanic: false,
			expected: &Config{
				Addr:           "127.0.0.1",
				Port:           7900,
				DatabaseDSN:    "postgres://db",
				MaxFrameLength: 4096,
			}},
		{name: "Test2 admin flags", args: []string{"cmd",
			"-register", "alice:secret", "-remove", "bob",
		}, expectPanic: false,
			expected: &Config{
				RegisterUser: "alice:secret",
				RemoveUser:   "bob",
			}},
		{name: "Test3 report flags", args: []string{"cmd",
			"-active", "-history", "alice", "-stats",
		}, expectPanic: false,
			expected: &Config{
				ShowActive:  true,
				HistoryUser: "alice",
				ShowStats:   true,
			}},
		{name: "Test4 bad port value", args: []string{"cmd",
			"-p", "not-a-number",
		}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			origArgs := os.Args
			t.Cleanup(func() { os.Args = origArgs })
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
