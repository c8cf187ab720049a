package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/r2relay/internal/flagx"
	"github.com/dmitrijs2005/r2relay/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Duration
// fields accept both "30s" style strings and integer nanoseconds.
//
// Only non-zero values are copied into Config, so a partial file overrides
// just the keys it names.
type JsonConfig struct {
	EndpointAddrHTTP       string         `json:"endpoint_addr_http"`
	LogLevel               string         `json:"log_level"`
	MaxFileSize            int64          `json:"max_file_size"`
	FetchTimeout           timex.Duration `json:"fetch_timeout"`
	TempDir                string         `json:"temp_dir"`
	ShutdownTimeout        timex.Duration `json:"shutdown_timeout"`
	RecordStoreURL         string         `json:"record_store_url"`
	RecordStoreAppID       string         `json:"record_store_app_id"`
	RecordStoreAccessToken string         `json:"record_store_access_token"`
	RecordStoreTimeout     timex.Duration `json:"record_store_timeout"`
	RecordStoreAttempts    int            `json:"record_store_attempts"`
	RecordStoreBackoff     timex.Duration `json:"record_store_backoff"`
	Fields                 FieldIDs       `json:"fields"`
	S3Region               string         `json:"s3_region"`
}

// parseJSON overlays values from the JSON file named by -c/-config (or
// $R2RELAY_CONFIG). Nothing happens when no file is named.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.LogLevel, c.LogLevel)
	if c.MaxFileSize != 0 {
		config.MaxFileSize = c.MaxFileSize
	}
	setDuration(&config.FetchTimeout, c.FetchTimeout)
	setString(&config.TempDir, c.TempDir)
	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)
	setString(&config.RecordStoreURL, c.RecordStoreURL)
	setString(&config.RecordStoreAppID, c.RecordStoreAppID)
	setString(&config.RecordStoreAccessToken, c.RecordStoreAccessToken)
	setDuration(&config.RecordStoreTimeout, c.RecordStoreTimeout)
	if c.RecordStoreAttempts != 0 {
		config.RecordStoreAttempts = c.RecordStoreAttempts
	}
	setDuration(&config.RecordStoreBackoff, c.RecordStoreBackoff)
	if !c.Fields.IsZero() {
		config.Fields = c.Fields
	}
	setString(&config.S3Region, c.S3Region)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
