package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LISTEN_ADDR", "DATABASE_DRIVER", "DATABASE_PATH", "DATABASE_DSN",
		"SESSION_SECRET", "GIN_MODE", "LOG_LEVEL", "BLOB_COMPRESSION",
		"BOOTSTRAP_USER_NAME", "BOOTSTRAP_USER_PASSWORD", "BOOTSTRAP_USER_ENTITY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "tentpost.db", cfg.DatabasePath)
	assert.Equal(t, "tentpost.db", cfg.DSN())
	assert.Equal(t, "release", cfg.GinMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "zstd", cfg.BlobCompression)
	assert.Empty(t, cfg.BootstrapUserName)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_DRIVER", " Postgres ")
	t.Setenv("DATABASE_DSN", "host=localhost dbname=tent")
	t.Setenv("BOOTSTRAP_USER_NAME", "alice")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "host=localhost dbname=tent", cfg.DSN())
	assert.Equal(t, "alice", cfg.BootstrapUserName)
}

func TestLoadFileOverlaysEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_SECRET", "from-env")
	t.Setenv("LOG_LEVEL", "warn")

	path := filepath.Join(t.TempDir(), "tentpost.yaml")
	content := "port: \"7000\"\nlog_level: debug\nblob_compression: NONE\nbootstrap_user_entity: https://alice.example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "none", cfg.BlobCompression)
	assert.Equal(t, "from-env", cfg.SessionSecret)
	assert.Equal(t, "https://alice.example.com", cfg.BootstrapUserEntity)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
