package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

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
	dir := t.TempDir()
	path := writeTempJSON(t, dir, "flag.json", map[string]any{
		"http_addr":          ":8090",
		"database_dsn":       "postgres://db",
		"jwt_secret":         "my_secret_key",
		"s3_bucket":          "bucket",
		"s3_public_url":      "http://cdn",
		"similarity_url":     "http://sim",
		"similarity_timeout": "15s",
		"request_timeout":    int64(2 * time.Minute),
		"cors_origins":       []string{"http://app.example"},
		"max_upload_bytes":   1024,
		"sentry_dsn":         "https://k@sentry.example/2",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		parseJson(cfg, []string{"-config", path})

		assert.Equal(t, ":8090", cfg.HTTPAddr)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.JWTSecret)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "http://cdn", cfg.S3PublicURL)
		assert.Equal(t, "http://sim", cfg.SimilarityURL)
		assert.Equal(t, 15*time.Second, cfg.SimilarityTimeout)
		assert.Equal(t, 2*time.Minute, cfg.RequestTimeout)
		assert.Equal(t, []string{"http://app.example"}, cfg.CORSOrigins)
		assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
		assert.Equal(t, "https://k@sentry.example/2", cfg.SentryDSN)
	})

	t.Run("missing keys keep current values", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg, []string{"-c", path})

		assert.Equal(t, "us-east-1", cfg.S3Region)
		assert.Equal(t, "https://exp.host/--/api/v2/push/send", cfg.ExpoPushURL)
		assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	})

	t.Run("no config flag, no changes", func(t *testing.T) {
		cfg := &Config{HTTPAddr: "defaults:1234"}
		parseJson(cfg, nil)
		assert.Equal(t, &Config{HTTPAddr: "defaults:1234"}, cfg)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		require.Panics(t, func() { parseJson(&Config{}, []string{"-config", bad}) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		require.Panics(t, func() { parseJson(&Config{}, []string{"-c", filepath.Join(dir, "nope.json")}) })
	})
}
