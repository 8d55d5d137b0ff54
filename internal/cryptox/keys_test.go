package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateKey_GeneratesAndReloads(t *testing.T) {
	dir := t.TempDir()

	key1, pub1, err := LoadOrCreateKey(dir, "alice")
	require.NoError(t, err)
	require.NotNil(t, key1)
	assert.True(t, strings.HasPrefix(pub1, "-----BEGIN PUBLIC KEY-----"))

	// key file is persisted with owner-only permissions
	fi, err := os.Stat(filepath.Join(dir, "alice.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	// second call loads the same keypair
	key2, pub2, err := LoadOrCreateKey(dir, "alice")
	require.NoError(t, err)
	assert.True(t, key1.Equal(key2))
	assert.Equal(t, pub1, pub2)
}

func TestLoadOrCreateKey_PerAccount(t *testing.T) {
	dir := t.TempDir()

	_, pubAlice, err := LoadOrCreateKey(dir, "alice")
	require.NoError(t, err)
	_, pubBob, err := LoadOrCreateKey(dir, "bob")
	require.NoError(t, err)

	assert.NotEqual(t, pubAlice, pubBob)
}

func TestLoadOrCreateKey_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice.key"), []byte("garbage"), 0o600))

	_, _, err := LoadOrCreateKey(dir, "alice")
	assert.Error(t, err)
}
