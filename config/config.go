// Package config loads the service configuration from an optional YAML
// file, a dotenv file and FOLIO_* environment variables, in that order of
// increasing precedence.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cyberfolio/folio-core/cache"
	"github.com/cyberfolio/folio-core/env"
	"github.com/cyberfolio/folio-core/ratelimit"
	"github.com/cyberfolio/folio-core/relay"
	"github.com/cyberfolio/folio-core/sanitize"
	"github.com/cyberfolio/folio-core/ticker"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig marks every validation and parse failure from Load.
var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a time.Duration that accepts str2duration syntax such as "1d12h".
type Duration time.Duration

func (d Duration) D() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return str2duration.String(time.Duration(d))
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func parseDuration(s string) (Duration, error) {
	v, err := str2duration.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "parse duration %q", s)
	}
	return Duration(v), nil
}

type Server struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// Ticker configures the price board. IdleTimeout pauses polling when
// /api/prices has not been read for that long; zero polls unconditionally.
type Ticker struct {
	Endpoint    string          `yaml:"endpoint"`
	APIKey      sanitize.Secret `yaml:"api_key"`
	Symbols     []string        `yaml:"symbols"`
	TTL         Duration        `yaml:"ttl"`
	Interval    Duration        `yaml:"interval"`
	IdleTimeout Duration        `yaml:"idle_timeout"`
}

type RateLimit struct {
	Limit  int      `yaml:"limit"`
	Window Duration `yaml:"window"`
}

type Relay struct {
	relay.Config `yaml:",inline"`
	ReplyTo      string `yaml:"reply_to"`
}

type Redis struct {
	URL    sanitize.Secret `yaml:"url"`
	Prefix string          `yaml:"prefix"`
}

// Enabled reports whether a Redis URL was configured.
func (r Redis) Enabled() bool {
	return r.URL != ""
}

type Telemetry struct {
	Endpoint    string          `yaml:"endpoint"`
	ServiceName string          `yaml:"service_name"`
	SentryDSN   sanitize.Secret `yaml:"sentry_dsn"`
	Environment string          `yaml:"environment"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Ticker    Ticker    `yaml:"ticker"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Relay     Relay     `yaml:"relay"`
	Redis     Redis     `yaml:"redis"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Ticker: Ticker{
			Endpoint:    ticker.DefaultEndpoint,
			Symbols:     append([]string(nil), ticker.DefaultSymbols...),
			TTL:         Duration(cache.DefaultRequestTTL),
			Interval:    Duration(ticker.DefaultPollInterval),
			IdleTimeout: Duration(ticker.DefaultIdleTimeout),
		},
		RateLimit: RateLimit{
			Limit:  ratelimit.DefaultLimit,
			Window: Duration(ratelimit.DefaultWindow),
		},
		Relay: Relay{
			Config: relay.Config{Endpoint: relay.DefaultEndpoint},
		},
		Redis: Redis{Prefix: "folio"},
		Telemetry: Telemetry{
			ServiceName: "folio",
			Environment: "development",
		},
	}
}

// Options controls where Load looks.
type Options struct {
	// Path is the YAML file. Empty skips it; a missing named file is an error.
	Path string
	// DotEnv is a dotenv file consulted after the process environment. A
	// missing file is ignored.
	DotEnv string
	// Lookup replaces os.LookupEnv.
	Lookup env.Lookup
}

// Load reads the YAML file at path, then applies FOLIO_* environment variables.
func Load(path string) (Config, error) {
	return LoadWith(Options{Path: path, DotEnv: ".env"})
}

func LoadWith(opts Options) (Config, error) {
	lookup := opts.Lookup
	if lookup == nil {
		lookup = env.OS()
	}
	if opts.DotEnv != "" {
		lines, err := env.ParseEnvFile(opts.DotEnv)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read %s", opts.DotEnv)
		}
		lookup = env.Chain(lookup, env.FromLines(lines))
	}

	cfg := Default()
	if opts.Path != "" {
		buf, err := os.ReadFile(opts.Path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read %s", opts.Path)
		}
		buf = []byte(env.Interpolate(string(buf), lookup))
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return Config{}, errors.Mark(errors.Wrapf(err, "parse %s", opts.Path), ErrInvalidConfig)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, errors.Mark(err, ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type override func(cfg *Config, val string) error

func str(set func(*Config, string)) override {
	return func(cfg *Config, val string) error {
		set(cfg, val)
		return nil
	}
}

func dur(set func(*Config, Duration)) override {
	return func(cfg *Config, val string) error {
		d, err := parseDuration(val)
		if err != nil {
			return err
		}
		set(cfg, d)
		return nil
	}
}

var overrides = map[string]override{
	"SERVER_ADDR":             str(func(c *Config, v string) { c.Server.Addr = v }),
	"SERVER_READ_TIMEOUT":     dur(func(c *Config, d Duration) { c.Server.ReadTimeout = d }),
	"SERVER_WRITE_TIMEOUT":    dur(func(c *Config, d Duration) { c.Server.WriteTimeout = d }),
	"SERVER_SHUTDOWN_TIMEOUT": dur(func(c *Config, d Duration) { c.Server.ShutdownTimeout = d }),
	"TICKER_ENDPOINT":         str(func(c *Config, v string) { c.Ticker.Endpoint = v }),
	"TICKER_API_KEY":          str(func(c *Config, v string) { c.Ticker.APIKey = sanitize.Secret(v) }),
	"TICKER_SYMBOLS": str(func(c *Config, v string) {
		c.Ticker.Symbols = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Ticker.Symbols = append(c.Ticker.Symbols, s)
			}
		}
	}),
	"TICKER_TTL":          dur(func(c *Config, d Duration) { c.Ticker.TTL = d }),
	"TICKER_INTERVAL":     dur(func(c *Config, d Duration) { c.Ticker.Interval = d }),
	"TICKER_IDLE_TIMEOUT": dur(func(c *Config, d Duration) { c.Ticker.IdleTimeout = d }),
	"RATELIMIT_LIMIT": func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "parse limit %q", v)
		}
		c.RateLimit.Limit = n
		return nil
	},
	"RATELIMIT_WINDOW":                dur(func(c *Config, d Duration) { c.RateLimit.Window = d }),
	"RELAY_ENDPOINT":                  str(func(c *Config, v string) { c.Relay.Endpoint = v }),
	"RELAY_SERVICE_ID":                str(func(c *Config, v string) { c.Relay.ServiceID = v }),
	"RELAY_TEMPLATE_ID":               str(func(c *Config, v string) { c.Relay.TemplateID = v }),
	"RELAY_AUTO_REPLY_TEMPLATE_ID":    str(func(c *Config, v string) { c.Relay.AutoReplyTemplateID = v }),
	"RELAY_PUBLIC_KEY":                str(func(c *Config, v string) { c.Relay.PublicKey = v }),
	"RELAY_PRIVATE_KEY":               str(func(c *Config, v string) { c.Relay.PrivateKey = sanitize.Secret(v) }),
	"RELAY_REPLY_TO":                  str(func(c *Config, v string) { c.Relay.ReplyTo = v }),
	"REDIS_URL":                       str(func(c *Config, v string) { c.Redis.URL = sanitize.Secret(v) }),
	"REDIS_PREFIX":                    str(func(c *Config, v string) { c.Redis.Prefix = v }),
	"OTEL_ENDPOINT":                   str(func(c *Config, v string) { c.Telemetry.Endpoint = v }),
	"OTEL_SERVICE_NAME":               str(func(c *Config, v string) { c.Telemetry.ServiceName = v }),
	"SENTRY_DSN":                      str(func(c *Config, v string) { c.Telemetry.SentryDSN = sanitize.Secret(v) }),
	"ENVIRONMENT":                     str(func(c *Config, v string) { c.Telemetry.Environment = v }),
}

// EnvKeys lists every environment variable Load understands.
func EnvKeys() []string {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, env.Prefix+k)
	}
	return keys
}

func applyEnv(cfg *Config, lookup env.Lookup) error {
	for key, apply := range overrides {
		val, ok := lookup(env.Prefix + key)
		if !ok {
			continue
		}
		if err := apply(cfg, val); err != nil {
			return errors.Wrapf(err, "%s%s", env.Prefix, key)
		}
	}
	return nil
}

// Validate reports every problem at once, marked with ErrInvalidConfig.
func (c Config) Validate() error {
	var problems []string
	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	if c.RateLimit.Limit <= 0 {
		problems = append(problems, "rate_limit.limit must be positive")
	}
	if c.RateLimit.Window <= 0 {
		problems = append(problems, "rate_limit.window must be positive")
	}
	if c.Ticker.TTL < 0 {
		problems = append(problems, "ticker.ttl must not be negative")
	}
	if c.Ticker.IdleTimeout < 0 {
		problems = append(problems, "ticker.idle_timeout must not be negative")
	}
	if c.Ticker.Interval <= 0 {
		problems = append(problems, "ticker.interval must be positive")
	}
	if len(c.Ticker.Symbols) == 0 {
		problems = append(problems, "ticker.symbols must not be empty")
	}
	if c.Redis.Enabled() {
		if _, err := sanitize.MaskURL(c.Redis.URL.Text()); err != nil {
			problems = append(problems, "redis.url is not a valid URL")
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.Mark(errors.Newf("%s", strings.Join(problems, "; ")), ErrInvalidConfig)
}
