package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// DBEnv names the environment variable holding the storage location.
// It is consulted only when --db-url is not given.
const DBEnv = "QSURVEY_DB"

// MaxRecentLimit bounds the number of responses a browse request may ask for.
const MaxRecentLimit = 100

type Config struct {
	Addr            string
	DBUrl           string
	CatalogPath     string
	RecentLimit     int
	GeocoderURL     string
	GeocoderTimeout time.Duration
	Debug           bool

	host string
	port uint
}

// Default returns the configuration used when no flag is given.
func Default() Config {
	return Config{
		Addr:            "0.0.0.0:8080",
		DBUrl:           "qsurvey.sqlite",
		CatalogPath:     "data.json",
		RecentLimit:     10,
		GeocoderTimeout: 5 * time.Second,
		host:            "0.0.0.0",
		port:            8080,
	}
}

// BindStorageFlags registers the flags every command needs to reach the store and the catalog.
func (cfg *Config) BindStorageFlags(fs *pflag.FlagSet) {
	fs.StringVar(&cfg.DBUrl, "db-url", cfg.DBUrl, "path to SQLite3 DB file (env "+DBEnv+")")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "path to the category catalog (.json, .yaml)")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "log at DEBUG level")
}

// BindServerFlags registers the flags of the HTTP server.
func (cfg *Config) BindServerFlags(fs *pflag.FlagSet) {
	fs.StringVar(&cfg.host, "host", cfg.host, "listen host name")
	fs.UintVar(&cfg.port, "port", cfg.port, "listen port number")
	fs.IntVar(&cfg.RecentLimit, "recent-limit", cfg.RecentLimit, "default number of responses on the browse page")
	fs.StringVar(&cfg.GeocoderURL, "geocoder-url", cfg.GeocoderURL, "Nominatim base URL for reverse geocoding (empty disables)")
	fs.DurationVar(&cfg.GeocoderTimeout, "geocoder-timeout", cfg.GeocoderTimeout, "reverse geocoding timeout")
}

// Finalize resolves derived fields after flags were parsed.
func (cfg *Config) Finalize(fs *pflag.FlagSet) error {
	if !fs.Changed("db-url") {
		if env := os.Getenv(DBEnv); env != "" {
			cfg.DBUrl = env
		}
	}
	if cfg.DBUrl == "" {
		return errors.New("missing parameter --db-url")
	}

	cfg.Addr = net.JoinHostPort(cfg.host, strconv.Itoa(int(cfg.port)))

	if cfg.RecentLimit < 1 || cfg.RecentLimit > MaxRecentLimit {
		return fmt.Errorf("--recent-limit must be between 1 and %d", MaxRecentLimit)
	}
	return nil
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
