package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the folio config dir.
func setupTestHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "folio")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := filepath.Join(dir, "config.yaml")

	yamlContent := `server:
  http_port: 9090
storage:
  path: /var/lib/folio/folio.db
replication:
  url: nats://10.0.0.5:4222
  bucket: inbox
  write_timeout: 2s
chat:
  dedup_window: 4s
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0600))

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/folio/folio.db", cfg.Storage.Path)
	assert.Equal(t, "nats://10.0.0.5:4222", cfg.Replication.URL)
	assert.Equal(t, "inbox", cfg.Replication.Bucket)
	assert.Equal(t, 2*time.Second, cfg.Replication.WriteTimeout)
	assert.Equal(t, 4*time.Second, cfg.Chat.DedupWindow)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "admin123", cfg.Auth.DefaultPassword.Value())
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	dir := setupTestHome(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9090\n"), 0600))

	t.Setenv("FOLIO_SERVER_HTTP_PORT", "7070")
	t.Setenv("FOLIO_REPLICATION_BUCKET", "from-env")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Replication.Bucket)
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	dir := setupTestHome(t)

	cfg, err := LoadWithFile(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadWithFile_RejectsOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)

	_, err := LoadWithFile(filepath.Join(t.TempDir(), "config.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path validation failed")
}

func TestLoadWithFile_RejectsInsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	dir := setupTestHome(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9090\n"), 0644))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_InvalidValuesFailValidation(t *testing.T) {
	dir := setupTestHome(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 0\n"), 0600))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.http_port", envKey("FOLIO_SERVER_HTTP_PORT"))
	assert.Equal(t, "replication.connect_timeout", envKey("FOLIO_REPLICATION_CONNECT_TIMEOUT"))
	assert.Equal(t, "storage", envKey("FOLIO_STORAGE"))
}
