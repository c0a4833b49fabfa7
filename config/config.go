// Package config loads the cosmos configuration tree.
//
// Values come from an optional config file (yaml, toml or json), a .env file
// in the working directory and COSMOS_ prefixed environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Cosmos         Cosmos         `mapstructure:"cosmos"`
	Logging        Logging        `mapstructure:"logging"`
	Sentry         Sentry         `mapstructure:"sentry"`
	DB             DB             `mapstructure:"db"`
	Cache          Cache          `mapstructure:"cache"`
	Emotes         Emotes         `mapstructure:"emotes"`
	Theme          Theme          `mapstructure:"theme"`
	ImageProcessor ImageProcessor `mapstructure:"image_processor"`
	Server         Server         `mapstructure:"server"`
}

type Cosmos struct {
	Name     string   `mapstructure:"name"`
	Token    string   `mapstructure:"token"`
	Prefixes []string `mapstructure:"prefixes"`
	Shards   int      `mapstructure:"shards"`
	Owners   []string `mapstructure:"owners"`
	Disabled bool     `mapstructure:"disabled"`
}

type Logging struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Sentry keeps both the typed view of the monitoring credentials and the raw
// map they were decoded from. The raw map is what gets handed to the
// monitoring SDK, so both must be kept in step.
type Sentry struct {
	Dsn         string         `mapstructure:"dsn"`
	Environment string         `mapstructure:"environment"`
	Release     string         `mapstructure:"release"`
	Raw         map[string]any `mapstructure:"-"`
}

type DB struct {
	Driver    string `mapstructure:"driver"`
	ConnStr   string `mapstructure:"conn_str"`
	Path      string `mapstructure:"path"`
	ChannelID string `mapstructure:"channel_id"`
}

type Cache struct {
	Dir        string        `mapstructure:"dir"`
	TTL        time.Duration `mapstructure:"ttl"`
	GCInterval time.Duration `mapstructure:"gc_interval"`
}

type Emotes struct {
	Guilds   []string `mapstructure:"guilds"`
	Fallback string   `mapstructure:"fallback"`
}

type Theme struct {
	Path    string `mapstructure:"path"`
	Primary int    `mapstructure:"primary"`
}

type ImageProcessor struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
}

type Server struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads the configuration at path. An empty path skips the file and
// uses defaults and the environment only.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COSMOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.Sentry.Raw = maps.Clone(v.GetStringMap("sentry"))
	if cfg.Sentry.Raw == nil {
		cfg.Sentry.Raw = map[string]any{}
	}
	// env overrides are only visible through Get, not through the nested map
	for _, key := range []string{"dsn", "environment", "release"} {
		if val := v.GetString("sentry." + key); val != "" {
			cfg.Sentry.Raw[key] = val
		}
	}

	return &cfg, nil
}

// Default returns the configuration Load would produce without a file or
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.Sentry.Raw = map[string]any{}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cosmos.name", "cosmos")
	v.SetDefault("cosmos.token", "")
	v.SetDefault("cosmos.prefixes", []string{"!"})
	v.SetDefault("cosmos.shards", 1)
	v.SetDefault("cosmos.disabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")

	v.SetDefault("db.driver", "json")
	v.SetDefault("db.path", "./data.json")
	v.SetDefault("db.conn_str", "")
	v.SetDefault("db.channel_id", "")

	v.SetDefault("cache.dir", "./data")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.gc_interval", time.Hour)

	v.SetDefault("emotes.fallback", "❔")

	v.SetDefault("theme.primary", 0x61D1ED)

	v.SetDefault("image_processor.base_url", "http://localhost:8000")
	v.SetDefault("image_processor.timeout", 15*time.Second)
	v.SetDefault("image_processor.rate_limit", 5.0)
	v.SetDefault("image_processor.burst", 5)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
}

// SetRelease stores the release tag in both the typed field and the raw
// map handed to the monitoring SDK.
func (c *Config) SetRelease(release string) {
	c.Sentry.Release = release
	if c.Sentry.Raw == nil {
		c.Sentry.Raw = map[string]any{}
	}
	c.Sentry.Raw["release"] = release
}

// Validate returns every problem found, not just the first.
func (c *Config) Validate() []error {
	var errs []error
	if c.Cosmos.Token == "" {
		errs = append(errs, errors.New("cosmos.token is required"))
	}
	if len(c.Cosmos.Prefixes) == 0 {
		errs = append(errs, errors.New("cosmos.prefixes cannot be empty"))
	}
	for _, p := range c.Cosmos.Prefixes {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, errors.New("cosmos.prefixes contains an empty prefix"))
			break
		}
	}
	switch c.DB.Driver {
	case "json":
		if c.DB.Path == "" {
			errs = append(errs, errors.New("db.path is required when db.driver is 'json'"))
		}
	case "postgres":
		if c.DB.ConnStr == "" {
			errs = append(errs, errors.New("db.conn_str is required when db.driver is 'postgres'"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid db.driver: %s (expected: json, postgres)", c.DB.Driver))
	}
	if c.ImageProcessor.BaseURL == "" {
		errs = append(errs, errors.New("image_processor.base_url is required"))
	}
	return errs
}

// Masked returns a copy safe to print.
func (c *Config) Masked() Config {
	out := *c
	out.Cosmos.Token = mask(c.Cosmos.Token)
	out.DB.ConnStr = mask(c.DB.ConnStr)
	out.Sentry.Dsn = mask(c.Sentry.Dsn)
	out.Sentry.Raw = maps.Clone(c.Sentry.Raw)
	if _, ok := out.Sentry.Raw["dsn"]; ok {
		out.Sentry.Raw["dsn"] = out.Sentry.Dsn
	}
	return out
}

func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}
