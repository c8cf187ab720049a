package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by parseEnv. PORT and MAX_FILE_SIZE keep the
// names used by earlier deployments.
const (
	envPort            = "PORT"
	envAddr            = "HTTP_ADDR"
	envLogLevel        = "LOG_LEVEL"
	envMaxFileSize     = "MAX_FILE_SIZE"
	envFetchTimeout    = "FETCH_TIMEOUT"
	envTempDir         = "TEMP_DIR"
	envRecordStoreURL  = "RECORD_STORE_URL"
	envRecordStoreApp  = "RECORD_STORE_APP_ID"
	envRecordStoreKey  = "RECORD_STORE_ACCESS_TOKEN"
	envRecordStoreTime = "RECORD_STORE_TIMEOUT"
	envFieldIDs        = "RECORD_STORE_FIELD_IDS"
	envS3Region        = "S3_REGION"
)

// dotenvFiles is the list godotenv loads; variables already present in the
// environment win over the file.
var dotenvFiles = []string{".env"}

// parseEnv loads .env (when it exists) into the process environment and then
// overlays every variable that is set onto config.
func parseEnv(config *Config) error {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	if v, ok := lookup(envPort); ok {
		config.EndpointAddrHTTP = ":" + v
	}
	if v, ok := lookup(envAddr); ok {
		config.EndpointAddrHTTP = v
	}
	if v, ok := lookup(envLogLevel); ok {
		config.LogLevel = v
	}
	if v, ok := lookup(envMaxFileSize); ok {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", envMaxFileSize, err)
		}
		config.MaxFileSize = size
	}
	if v, ok := lookup(envFetchTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envFetchTimeout, err)
		}
		config.FetchTimeout = d
	}
	if v, ok := lookup(envTempDir); ok {
		config.TempDir = v
	}
	if v, ok := lookup(envRecordStoreURL); ok {
		config.RecordStoreURL = v
	}
	if v, ok := lookup(envRecordStoreApp); ok {
		config.RecordStoreAppID = v
	}
	if v, ok := lookup(envRecordStoreKey); ok {
		config.RecordStoreAccessToken = v
	}
	if v, ok := lookup(envRecordStoreTime); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envRecordStoreTime, err)
		}
		config.RecordStoreTimeout = d
	}
	if v, ok := lookup(envFieldIDs); ok {
		ids, err := ParseFieldIDs(v, config.Fields)
		if err != nil {
			return fmt.Errorf("%s: %w", envFieldIDs, err)
		}
		config.Fields = ids
	}
	if v, ok := lookup(envS3Region); ok {
		config.S3Region = v
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
