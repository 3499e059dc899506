package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindStorageFlags(fs)
	cfg.BindServerFlags(fs)
	require.NoError(t, fs.Parse(args))
	err := cfg.Finalize(fs)
	return cfg, err
}

func TestDefaults(t *testing.T) {
	t.Setenv(DBEnv, "")

	cfg, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, "qsurvey.sqlite", cfg.DBUrl)
	assert.Equal(t, "data.json", cfg.CatalogPath)
	assert.Equal(t, 10, cfg.RecentLimit)
	assert.Equal(t, 5*time.Second, cfg.GeocoderTimeout)
	assert.Equal(t, "http://localhost:8080", cfg.Url())
}

func TestFlags(t *testing.T) {
	t.Setenv(DBEnv, "")

	cfg, err := parse(t,
		"--host", "127.0.0.1",
		"--port", "9000",
		"--db-url", "/tmp/x.sqlite",
		"--catalog", "cats.yaml",
		"--geocoder-url", "https://nominatim.example.org",
		"--debug",
	)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "/tmp/x.sqlite", cfg.DBUrl)
	assert.Equal(t, "cats.yaml", cfg.CatalogPath)
	assert.Equal(t, "https://nominatim.example.org", cfg.GeocoderURL)
	assert.True(t, cfg.Debug)
}

func TestStorageLocationFromEnv(t *testing.T) {
	t.Setenv(DBEnv, "/var/lib/qsurvey/env.sqlite")

	cfg, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/qsurvey/env.sqlite", cfg.DBUrl)

	cfg, err = parse(t, "--db-url", "flag.sqlite")
	require.NoError(t, err)
	assert.Equal(t, "flag.sqlite", cfg.DBUrl, "flag wins over env")
}

func TestInvalidRecentLimit(t *testing.T) {
	t.Setenv(DBEnv, "")

	_, err := parse(t, "--recent-limit", "0")
	assert.Error(t, err)

	_, err = parse(t, "--recent-limit", "500")
	assert.Error(t, err)

	cfg, err := parse(t, "--recent-limit", "100")
	require.NoError(t, err)
	assert.Equal(t, MaxRecentLimit, cfg.RecentLimit)
}
