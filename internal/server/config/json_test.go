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

func noEnv(string) string { return "" }

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"http_addr":            "www.example:9000",
		"database_dsn":         "postgres://json",
		"jwt_secret":           "my_secret_key",
		"jwt_validity":         "24h",
		"storage_backend":      "disk",
		"disk_root":            "/var/lib/bdk",
		"s3_bucket":            "bucket",
		"allowed_extensions":   []string{"pdf", "png"},
		"max_files_per_upload": 5,
		"rate_limit_window":    60000000000,
		"development":          true,
	})
	pathEnv := writeTempJSON(t, dir, "env.json", map[string]any{
		"http_addr": "env.example:1",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-config", pathFlag}, noEnv))

		assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
		assert.Equal(t, "postgres://json", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.JWTSecret)
		assert.Equal(t, 24*time.Hour, cfg.JWTValidity)
		assert.Equal(t, "disk", cfg.StorageBackend)
		assert.Equal(t, "/var/lib/bdk", cfg.DiskRoot)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, []string{"pdf", "png"}, cfg.AllowedExtensions)
		assert.Equal(t, 5, cfg.MaxFilesPerUpload)
		assert.Equal(t, time.Minute, cfg.RateLimitWindow)
		assert.True(t, cfg.Development)
	})

	t.Run("absent keys keep current values", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-c", pathFlag}, noEnv))

		assert.Equal(t, ":50051", cfg.GRPCAddr)
		assert.Equal(t, 12, cfg.BcryptCostRegister)
		assert.Equal(t, 30*time.Second, cfg.PrincipalCacheTTL)
	})

	t.Run("CONFIG env used when no flag", func(t *testing.T) {
		cfg := &Config{}
		getenv := func(k string) string {
			if k == "CONFIG" {
				return pathEnv
			}
			return ""
		}
		require.NoError(t, parseJson(cfg, nil, getenv))
		assert.Equal(t, "env.example:1", cfg.HTTPAddr)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		cfg := &Config{HTTPAddr: "defaults:1234", DatabaseDSN: "vault"}
		require.NoError(t, parseJson(cfg, []string{"-a", ":1"}, noEnv))
		assert.Equal(t, &Config{HTTPAddr: "defaults:1234", DatabaseDSN: "vault"}, cfg)
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
		assert.Error(t, parseJson(&Config{}, []string{"-c", bad}, noEnv))
	})

	t.Run("invalid duration", func(t *testing.T) {
		p := writeTempJSON(t, dir, "dur.json", map[string]any{"jwt_validity": "forever"})
		assert.Error(t, parseJson(&Config{}, []string{"-c", p}, noEnv))
	})
}
