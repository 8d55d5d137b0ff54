package config

import (
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrijs2005/gomessenger/internal/common"
)

// Config holds runtime settings for the messenger client.
//
// Fields:
//   - ServerAddr / ServerPort: location of the messenger server.
//   - Username: account name; when empty the CLI prompts for it.
//   - MaxFrameLength: upper bound in bytes for a single wire frame.
//   - ReconnectAttempts / ReconnectInterval: how hard Dial tries before
//     giving up on an unreachable server.
type Config struct {
	ServerAddr        string        `env:"MESSENGER_SERVER_ADDR"`
	ServerPort        int           `env:"MESSENGER_SERVER_PORT"`
	Username          string        `env:"MESSENGER_USERNAME"`
	MaxFrameLength    int           `env:"MESSENGER_MAX_FRAME_LENGTH"`
	ReconnectAttempts int           `env:"MESSENGER_RECONNECT_ATTEMPTS"`
	ReconnectInterval time.Duration `env:"MESSENGER_RECONNECT_INTERVAL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "127.0.0.1"
	c.ServerPort = 7777
	c.Username = ""
	c.MaxFrameLength = 10240
	c.ReconnectAttempts = 5
	c.ReconnectInterval = 1 * time.Second
}

// ServerEndpoint renders the server location in host:port form.
func (c *Config) ServerEndpoint() string {
	return net.JoinHostPort(c.ServerAddr, strconv.Itoa(c.ServerPort))
}

func (c *Config) validate() error {
	if c.ServerPort < common.MinPort || c.ServerPort > common.MaxPort {
		return &common.ErrInvalidPort{Port: c.ServerPort}
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present), environment variables, and command-line flags.
// Later sources take precedence over earlier ones. The result is validated
// before it is returned.
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
