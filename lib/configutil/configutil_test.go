package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Timeout  int    `json:"timeout"`
}

func TestReadConfigMergesLocalOverride(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(
		filepath.Join(dir, "kevo.json5"),
		[]byte(`{username: "alice", password: "hunter2", timeout: 30}`),
		0600,
	)
	require.NoError(t, err)
	err = os.WriteFile(
		filepath.Join(dir, "kevo.local.json5"),
		[]byte(`{password: "correct horse"}`),
		0600,
	)
	require.NoError(t, err)

	config, err := ReadConfig[testConfig](filepath.Join(dir, "kevo.json5"))
	require.NoError(t, err)
	require.Equal(t, "alice", config.Username)
	require.Equal(t, "correct horse", config.Password)
	require.Equal(t, 30, config.Timeout)
}

func TestReadConfigNotFound(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "kevo.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
