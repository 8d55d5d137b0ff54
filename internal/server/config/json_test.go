package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"addr":             "192.168.0.10",
		"port":             7900,
		"database_dsn":     "postgres://messenger@db:5432/messenger",
		"max_frame_length": 4096,
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "192.168.0.10", cfg.Addr)
		assert.Equal(t, 7900, cfg.Port)
		assert.Equal(t, "postgres://messenger@db:5432/messenger", cfg.DatabaseDSN)
		assert.Equal(t, 4096, cfg.MaxFrameLength)
	})

	t.Run("missing keys keep current values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{
			"port": 7901,
		})
		os.Args = []string{"testbin", "-config", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, 7901, cfg.Port)
		assert.Equal(t, 10240, cfg.MaxFrameLength)
	})

	t.Run("no config flag means no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			Addr:           "defaults",
			Port:           1234,
			DatabaseDSN:    "dsn",
			MaxFrameLength: 512,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults", cfg.Addr)
		assert.Equal(t, 1234, cfg.Port)
		assert.Equal(t, "dsn", cfg.DatabaseDSN)
		assert.Equal(t, 512, cfg.MaxFrameLength)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
