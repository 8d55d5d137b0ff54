package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gomessenger/internal/flagx"
	"github.com/dmitrijs2005/gomessenger/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	ServerAddr        string         `json:"server_addr"`
	ServerPort        int            `json:"server_port"`
	Username          string         `json:"username"`
	MaxFrameLength    int            `json:"max_frame_length"`
	ReconnectAttempts int            `json:"reconnect_attempts"`
	ReconnectInterval timex.Duration `json:"reconnect_interval"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The file path is taken from the -c or -config command-line flags; if
// neither is set, no JSON file is loaded. Keys absent from the file keep
// their current values. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	// Resolve file path from flags.
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	jc := JsonConfig{
		ServerAddr:        cfg.ServerAddr,
		ServerPort:        cfg.ServerPort,
		Username:          cfg.Username,
		MaxFrameLength:    cfg.MaxFrameLength,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectInterval: timex.Duration{Duration: cfg.ReconnectInterval},
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerAddr = jc.ServerAddr
	cfg.ServerPort = jc.ServerPort
	cfg.Username = jc.Username
	cfg.MaxFrameLength = jc.MaxFrameLength
	cfg.ReconnectAttempts = jc.ReconnectAttempts
	cfg.ReconnectInterval = time.Duration(jc.ReconnectInterval.Duration)
}
