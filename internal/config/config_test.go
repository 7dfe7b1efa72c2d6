package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, "env: production\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2450, cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, 30*time.Second, cfg.RemoteTimeout())
	assert.True(t, cfg.Gateway.Enable)
	assert.False(t, cfg.Backup.Enable)
	assert.Contains(t, cfg.DSN, "tcp(127.0.0.1:3306)/tubelens")
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoadGroupedAndFlatAliases(t *testing.T) {
	path := writeConfigFile(t, `
port: 9000
database:
  host: db.internal
  user: lens
  password: sekrit
  name: lensdb
redis_host: cache.internal
redis_db: 3
jwt_secret: topsecret
tz: UTC
remote:
  timeout_seconds: 5
s3:
  bucket: lens-archives
  access_key: AK123
  secret_key: SK456
  path_style_access: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Contains(t, cfg.DSN, "lens:sekrit@tcp(db.internal:3306)/lensdb")
	assert.Contains(t, cfg.RedisURL, "cache.internal:6379/3")
	assert.Equal(t, "topsecret", cfg.JWTSecret)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, 5*time.Second, cfg.RemoteTimeout())
	assert.True(t, cfg.S3.Enabled())
	assert.Equal(t, "AK123", cfg.S3.AccessKeyID)
	assert.True(t, cfg.S3.PathStyleAccess)
}

func TestLoadExplicitDSNWins(t *testing.T) {
	path := writeConfigFile(t, "dsn: user:pw@tcp(10.0.0.9:3307)/other?parseTime=true\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "user:pw@tcp(10.0.0.9:3307)/other?parseTime=true", cfg.DSN)
}

func TestLoadRejectsBadValues(t *testing.T) {
	for name, body := range map[string]string{
		"port out of range":  "port: 70000\n",
		"zero remote timeout": "remote:\n  timeout_seconds: 0\n",
		"unknown keys":        "nonsense_key: true\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := writeConfigFile(t, body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
