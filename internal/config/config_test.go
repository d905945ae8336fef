package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quorum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv(EnvBotToken, "")
	t.Setenv(EnvLogLevel, "")
	path := writeConfig(t, `
version: "1"
database:
  path: /var/lib/quorum/q.db
funding:
  batch_size: 20
identity:
  mode: header
  header: X-User
log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/quorum/q.db", cfg.Database.Path)
	require.Equal(t, 20, cfg.Funding.BatchSize)
	require.Equal(t, "header", cfg.Identity.Mode)
	require.Equal(t, "X-User", cfg.Identity.Header)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 8, cfg.Ledger.MaxAttempts)
	require.Equal(t, 5*time.Second, cfg.BusyTimeout())
}

func TestLoadEnvironment(t *testing.T) {
	path := writeConfig(t, "identity:\n  mode: telegram\n")
	t.Setenv(EnvPath, path)
	t.Setenv(EnvBotToken, "123:abc")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "123:abc", cfg.Identity.BotToken)
	require.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadErrors(t *testing.T) {
	t.Setenv(EnvBotToken, "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "identity: [oops"))
	require.Error(t, err)

	// Telegram mode with signature verification needs a bot token.
	_, err = Load(writeConfig(t, "identity:\n  mode: telegram\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "identity:\n  mode: header\nfunding:\n  batch_size: 0\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "identity:\n  mode: oauth\n"))
	require.Error(t, err)
}
