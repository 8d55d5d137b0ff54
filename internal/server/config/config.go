// Package config handles configuration for the server component,
// including defaults, JSON overlay, environment variables, and
// command-line flags.
package config

import (
	"net"
	"strconv"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrijs2005/gomessenger/internal/common"
)

// Config holds runtime settings for the messenger server.
//
// Fields:
//   - Addr: interface to listen on; empty means all interfaces.
//   - Port: TCP listen port, validated against [common.MinPort, common.MaxPort].
//   - DatabaseDSN: PostgreSQL DSN (pgx); empty selects the in-memory store.
//   - MaxFrameLength: upper bound in bytes for a single wire frame.
//   - RegisterUser / RemoveUser: one-shot administrative actions; when set,
//     the server performs the action and exits instead of serving.
//   - ShowActive / HistoryUser / ShowStats: one-shot reports printed from
//     the store (live sessions, login history for a user, relay counters).
type Config struct {
	Addr           string `env:"MESSENGER_ADDR"`
	Port           int    `env:"MESSENGER_PORT"`
	DatabaseDSN    string `env:"MESSENGER_DATABASE_DSN"`
	MaxFrameLength int    `env:"MESSENGER_MAX_FRAME_LENGTH"`
	RegisterUser   string `env:"-"`
	RemoveUser     string `env:"-"`
	ShowActive     bool   `env:"-"`
	HistoryUser    string `env:"-"`
	ShowStats      bool   `env:"-"`
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.Addr = ""
	c.Port = 7777
	c.DatabaseDSN = ""
	c.MaxFrameLength = 10240
}

// TCPAddr renders the listen address in host:port form.
func (c *Config) TCPAddr() string {
	return net.JoinHostPort(c.Addr, strconv.Itoa(c.Port))
}

func (c *Config) validate() error {
	if c.Port < common.MinPort || c.Port > common.MaxPort {
		return &common.ErrInvalidPort{Port: c.Port}
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, environment variables, and finally
// command-line flags. The result is validated before it is returned.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	parseFlags(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
