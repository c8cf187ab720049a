// Package config handles configuration for the relay server, including
// defaults, environment (.env) overlay, JSON overlay and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/r2relay/internal/common"
)

// Config holds runtime settings for the relay server. It is built once at
// startup and shared read-only by every request.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the HTTP API.
//   - LogLevel: debug, info, warn or error.
//   - MaxFileSize: hard byte limit for both relay paths.
//   - FetchTimeout: overall timeout for probing and downloading a source URL.
//   - TempDir: where spill files are created ("" means the OS temp dir).
//   - ShutdownTimeout: grace period for in-flight requests on shutdown.
//   - RecordStoreURL / RecordStoreAppID / RecordStoreAccessToken: remote record service.
//   - RecordStoreTimeout: per-attempt timeout of a record store call.
//   - RecordStoreAttempts / RecordStoreBackoff: connect-timeout retry policy.
//   - Fields: field ids of the token form.
//   - S3Region: signing region used for every destination.
type Config struct {
	EndpointAddrHTTP       string
	LogLevel               string
	MaxFileSize            int64
	FetchTimeout           time.Duration
	TempDir                string
	ShutdownTimeout        time.Duration
	RecordStoreURL         string
	RecordStoreAppID       string
	RecordStoreAccessToken string
	RecordStoreTimeout     time.Duration
	RecordStoreAttempts    int
	RecordStoreBackoff     time.Duration
	Fields                 FieldIDs
	S3Region               string
}

// LoadDefaults populates Config with development defaults. The record store
// app id, access token and field ids have no sensible default and must be
// supplied.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":3009"
	c.LogLevel = "info"
	c.MaxFileSize = common.DefaultMaxFileSize
	c.FetchTimeout = 60 * time.Second
	c.TempDir = ""
	c.ShutdownTimeout = 10 * time.Second
	c.RecordStoreURL = "https://api.qingflow.com"
	c.RecordStoreTimeout = 30 * time.Second
	c.RecordStoreAttempts = 3
	c.RecordStoreBackoff = 1 * time.Second
	c.S3Region = "auto"
}

// Validate reports settings the server cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.EndpointAddrHTTP == "" {
		errs = append(errs, errors.New("http address is empty"))
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("max file size must be positive, got %d", c.MaxFileSize))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout))
	}
	if c.RecordStoreURL == "" {
		errs = append(errs, errors.New("record store url is empty"))
	}
	if c.RecordStoreAppID == "" {
		errs = append(errs, errors.New("record store app id is empty"))
	}
	if c.RecordStoreAccessToken == "" {
		errs = append(errs, errors.New("record store access token is empty"))
	}
	if c.RecordStoreTimeout <= 0 {
		errs = append(errs, errors.New("record store timeout must be positive"))
	}
	if err := c.Fields.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", common.ErrorValidation, err)
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from the environment (and a .env file, if present), an optional JSON file
// and finally command-line flags.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
