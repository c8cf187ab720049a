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

func Test_parseJSON_SourcesAndPrecedence(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_http":        ":7000",
		"max_file_size":             2048,
		"fetch_timeout":             "2m",
		"record_store_app_id":       "app",
		"record_store_access_token": "key",
		"record_store_backoff":      int64(500 * time.Millisecond),
		"fields":                    map[string]int{"id": 1, "active": 2, "username": 3, "email": 4, "token": 5, "created_at": 6, "expires_at": 7, "is_permanent": 8},
	})
	pathEnv := writeTempJSON(t, dir, "env.json", map[string]any{"log_level": "warn"})

	t.Run("loads from -config", func(t *testing.T) {
		c := &Config{}
		c.LoadDefaults()
		require.NoError(t, parseJSON(c, []string{"-config", pathFlag}))

		assert.Equal(t, ":7000", c.EndpointAddrHTTP)
		assert.Equal(t, int64(2048), c.MaxFileSize)
		assert.Equal(t, 2*time.Minute, c.FetchTimeout)
		assert.Equal(t, "app", c.RecordStoreAppID)
		assert.Equal(t, "key", c.RecordStoreAccessToken)
		assert.Equal(t, 500*time.Millisecond, c.RecordStoreBackoff)
		assert.Equal(t, validFields(), c.Fields)
		// absent keys keep their defaults
		assert.Equal(t, "info", c.LogLevel)
		assert.Equal(t, "auto", c.S3Region)
	})

	t.Run("falls back to env var", func(t *testing.T) {
		t.Setenv("R2RELAY_CONFIG", pathEnv)
		c := &Config{}
		c.LoadDefaults()
		require.NoError(t, parseJSON(c, nil))
		assert.Equal(t, "warn", c.LogLevel)
	})

	t.Run("flag wins over env var", func(t *testing.T) {
		t.Setenv("R2RELAY_CONFIG", pathEnv)
		c := &Config{}
		c.LoadDefaults()
		require.NoError(t, parseJSON(c, []string{"-c", pathFlag}))
		assert.Equal(t, "info", c.LogLevel)
		assert.Equal(t, ":7000", c.EndpointAddrHTTP)
	})

	t.Run("no file named", func(t *testing.T) {
		c := &Config{}
		require.NoError(t, parseJSON(c, nil))
		assert.Equal(t, &Config{}, c)
	})

	t.Run("missing file", func(t *testing.T) {
		require.Error(t, parseJSON(&Config{}, []string{"-c", filepath.Join(dir, "nope.json")}))
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
		require.Error(t, parseJSON(&Config{}, []string{"-c", bad}))
	})
}
