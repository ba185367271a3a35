package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illarion/statevault/internal/crypto"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ".statevault.db", cfg.StorePath)
	assert.Equal(t, uint32(crypto.DefaultIterations), cfg.Iterations)
	assert.Equal(t, TransportNone, cfg.Transport.Kind)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Keyring.Enabled)
	assert.Empty(t, cfg.File)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store: /var/lib/statevault.db
iterations: 1000
transport:
  kind: s3
  s3:
    endpoint: localhost:9000
    bucket: backups
    use_ssl: false
log:
  level: debug
  format: json
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "/var/lib/statevault.db", cfg.StorePath)
	assert.Equal(t, uint32(1000), cfg.Iterations)
	assert.Equal(t, TransportS3, cfg.Transport.Kind)
	assert.Equal(t, "localhost:9000", cfg.Transport.S3.Endpoint)
	assert.Equal(t, "backups", cfg.Transport.S3.Bucket)
	assert.False(t, cfg.Transport.S3.UseSSL)
	assert.Equal(t, "statevault/", cfg.Transport.S3.Prefix)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STATEVAULT_TRANSPORT_KIND", "dir")
	t.Setenv("STATEVAULT_TRANSPORT_DIR", "/mnt/sync")
	t.Setenv("STATEVAULT_LOG_LEVEL", "info")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, TransportDir, cfg.Transport.Kind)
	assert.Equal(t, "/mnt/sync", cfg.Transport.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero iterations", "iterations: 0\n"},
		{"unknown transport", "transport:\n  kind: ftp\n"},
		{"dir without path", "transport:\n  kind: dir\n"},
		{"s3 without bucket", "transport:\n  kind: s3\n  s3:\n    endpoint: x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
