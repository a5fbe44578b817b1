package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cyberfolio/folio-core/env"
	"github.com/cyberfolio/folio-core/sanitize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func lookup(vars map[string]string) env.Lookup {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadWith(Options{Lookup: lookup(nil)})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window.D())
	assert.Equal(t, 30*time.Second, cfg.Ticker.TTL.D())
	assert.Equal(t, []string{"BTC", "ETH", "SOL", "BNB", "XRP"}, cfg.Ticker.Symbols)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Relay.Configured())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "folio.yaml", `
server:
  addr: ":9090"
  shutdown_timeout: 1m
ticker:
  symbols: [BTC, ETH]
  ttl: 45s
  interval: 2m
  idle_timeout: 10m
rate_limit:
  limit: 5
  window: 1h
relay:
  service_id: service_1
  template_id: template_owner
  public_key: pk_123
  private_key: ${RELAY_SECRET:-none}
  reply_to: me@folio.dev
redis:
  url: redis://:hunter2@localhost:6379/0
telemetry:
  endpoint: http://localhost:4318
  sentry_dsn: https://key@o1.ingest.sentry.io/2
  environment: production
`)
	cfg, err := LoadWith(Options{Path: path, Lookup: lookup(map[string]string{"RELAY_SECRET": "s3cret"})})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, time.Minute, cfg.Server.ShutdownTimeout.D())
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout.D())
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Ticker.Symbols)
	assert.Equal(t, 45*time.Second, cfg.Ticker.TTL.D())
	assert.Equal(t, 2*time.Minute, cfg.Ticker.Interval.D())
	assert.Equal(t, 5, cfg.RateLimit.Limit)
	assert.Equal(t, time.Hour, cfg.RateLimit.Window.D())
	assert.True(t, cfg.Relay.Configured())
	assert.Equal(t, "s3cret", cfg.Relay.PrivateKey.Text())
	assert.Equal(t, "me@folio.dev", cfg.Relay.ReplyTo)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "folio", cfg.Redis.Prefix)
	assert.Equal(t, "http://localhost:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, "production", cfg.Telemetry.Environment)
	assert.Equal(t, "https://key@o1.ingest.sentry.io/2", cfg.Telemetry.SentryDSN.Text())
	assert.Equal(t, 10*time.Minute, cfg.Ticker.IdleTimeout.D())

	assert.NotContains(t, fmt.Sprintf("%v", cfg.Relay.PrivateKey), "s3cret")
	masked, err := sanitize.MaskURL(cfg.Redis.URL.Text())
	require.NoError(t, err)
	assert.NotContains(t, masked, "hunter2")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "folio.yaml", "rate_limit:\n  limit: 5\n")
	vars := map[string]string{
		"FOLIO_RATELIMIT_LIMIT":  "7",
		"FOLIO_RATELIMIT_WINDOW": "1d",
		"FOLIO_TICKER_SYMBOLS":   "btc, sol ,",
		"FOLIO_REDIS_URL":        "redis://localhost:6379",
		"FOLIO_SERVER_ADDR":      "127.0.0.1:0",
	}
	cfg, err := LoadWith(Options{Path: path, Lookup: lookup(vars)})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RateLimit.Limit)
	assert.Equal(t, 24*time.Hour, cfg.RateLimit.Window.D())
	assert.Equal(t, []string{"btc", "sol"}, cfg.Ticker.Symbols)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL.Text())
	assert.Equal(t, "127.0.0.1:0", cfg.Server.Addr)
}

func TestDotEnvIsLowestEnvPrecedence(t *testing.T) {
	dotenv := writeFile(t, ".env", "FOLIO_RELAY_SERVICE_ID=from_file\nFOLIO_RELAY_PUBLIC_KEY=pk_file\n")
	vars := map[string]string{"FOLIO_RELAY_SERVICE_ID": "from_env"}
	cfg, err := LoadWith(Options{DotEnv: dotenv, Lookup: lookup(vars)})
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.Relay.ServiceID)
	assert.Equal(t, "pk_file", cfg.Relay.PublicKey)

	_, err = LoadWith(Options{DotEnv: filepath.Join(t.TempDir(), "absent.env"), Lookup: lookup(nil)})
	assert.NoError(t, err)
}

func TestInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration": {"FOLIO_TICKER_TTL": "soon"},
		"bad limit":    {"FOLIO_RATELIMIT_LIMIT": "three"},
		"zero limit":   {"FOLIO_RATELIMIT_LIMIT": "0"},
		"no symbols":   {"FOLIO_TICKER_SYMBOLS": " , "},
		"empty addr":   {"FOLIO_SERVER_ADDR": ""},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadWith(Options{Lookup: lookup(vars)})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "%v", err)
		})
	}
}

func TestInvalidYAML(t *testing.T) {
	path := writeFile(t, "folio.yaml", "server: [\n")
	_, err := LoadWith(Options{Path: path, Lookup: lookup(nil)})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadWith(Options{Path: filepath.Join(t.TempDir(), "missing.yaml"), Lookup: lookup(nil)})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidConfig))
}

func TestValidateListsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.Limit = 0
	cfg.Ticker.Interval = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit.limit")
	assert.Contains(t, err.Error(), "ticker.interval")
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(struct {
		D Duration `yaml:"d"`
	}{Duration(90 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, "d: 1h30m\n", string(out))
}

func TestEnvKeys(t *testing.T) {
	keys := EnvKeys()
	assert.Contains(t, keys, "FOLIO_REDIS_URL")
	assert.Contains(t, keys, "FOLIO_RELAY_PRIVATE_KEY")
}
