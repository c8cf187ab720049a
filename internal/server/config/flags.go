package config

import (
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/r2relay/internal/flagx"
)

// parseFlags overlays command-line flags onto config.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g. ":3009")
//	-l string   log level
//	-m int      max file size, bytes
//	-t value    fetch timeout, whole seconds ("90") or a duration ("1m30s")
//	-d string   temp dir for spill files
//	-r string   record store base URL
//	-i string   record store app id
//	-k string   record store access token
//	-f string   record store field ids ("id=1,active=2,...")
//	-g string   S3 region
//
// Only the flags listed above are taken from args; -c/-config is handled by
// parseJSON.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.Int64Var(&config.MaxFileSize, "m", config.MaxFileSize, "max file size (bytes)")
	fs.Func("t", "fetch timeout (seconds or duration)", func(v string) error {
		d, err := parseSeconds(v)
		if err != nil {
			return err
		}
		config.FetchTimeout = d
		return nil
	})
	fs.StringVar(&config.TempDir, "d", config.TempDir, "directory for spill files")
	fs.StringVar(&config.RecordStoreURL, "r", config.RecordStoreURL, "record store base URL")
	fs.StringVar(&config.RecordStoreAppID, "i", config.RecordStoreAppID, "record store app id")
	fs.StringVar(&config.RecordStoreAccessToken, "k", config.RecordStoreAccessToken, "record store access token")
	fieldIDs := fs.String("f", "", "record store field ids")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")

	if err := fs.Parse(flagx.FilterArgs(args, flagx.FlagNames(fs))); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	if *fieldIDs != "" {
		ids, err := ParseFieldIDs(*fieldIDs, config.Fields)
		if err != nil {
			return err
		}
		config.Fields = ids
	}
	return nil
}

// parseSeconds reads a bare integer as seconds and anything else as a
// time.Duration.
func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}
