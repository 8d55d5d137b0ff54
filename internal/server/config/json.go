package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gomessenger/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. After
// parsing, its values are copied into the runtime Config struct.
type JsonConfig struct {
	Addr           string `json:"addr"`
	Port           int    `json:"port"`
	DatabaseDSN    string `json:"database_dsn"`
	MaxFrameLength int    `json:"max_frame_length"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path is taken from the -c or -config command-line flags; if
// neither is set, no JSON file is loaded. Keys absent from the file keep
// their current values. If the file cannot be read or contains invalid
// JSON, the function panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{
		Addr:           config.Addr,
		Port:           config.Port,
		DatabaseDSN:    config.DatabaseDSN,
		MaxFrameLength: config.MaxFrameLength,
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.Addr = c.Addr
	config.Port = c.Port
	config.DatabaseDSN = c.DatabaseDSN
	config.MaxFrameLength = c.MaxFrameLength
}
