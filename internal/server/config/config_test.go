package config

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gomessenger/internal/common"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, c.Addr, "")
	assert.Equal(t, c.Port, 7777)
	assert.Equal(t, c.DatabaseDSN, "")
	assert.Equal(t, c.MaxFrameLength, 10240)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	c, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, c, "LoadConfig must not return nil")

	assert.Equal(t, c.Addr, "")
	assert.Equal(t, c.Port, 7777)
	assert.Equal(t, c.DatabaseDSN, "")
	assert.Equal(t, c.MaxFrameLength, 10240)
}

func TestLoadConfig_Env(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	t.Setenv("MESSENGER_ADDR", "10.0.0.5")
	t.Setenv("MESSENGER_PORT", "7900")
	t.Setenv("MESSENGER_DATABASE_DSN", "postgres://messenger@db:5432/messenger")

	c, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", c.Addr)
	assert.Equal(t, 7900, c.Port)
	assert.Equal(t, "postgres://messenger@db:5432/messenger", c.DatabaseDSN)
}

func TestLoadConfig_InvalidPort(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	for _, port := range []string{"80", "70000"} {
		os.Args = []string{"testbin", "-p", port}

		_, err := LoadConfig()
		require.Error(t, err)

		var invalid *common.ErrInvalidPort
		assert.True(t, errors.As(err, &invalid))
	}
}

func TestConfig_TCPAddr(t *testing.T) {
	c := &Config{Addr: "", Port: 7777}
	assert.Equal(t, ":7777", c.TCPAddr())

	c = &Config{Addr: "127.0.0.1", Port: 7900}
	assert.Equal(t, "127.0.0.1:7900", c.TCPAddr())
}
