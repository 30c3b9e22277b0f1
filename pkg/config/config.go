// Package config loads service configuration from an optional YAML file and
// the environment. Environment variables always win over the file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvFile names the variable holding the YAML file path when -config is not given.
const EnvFile = "TMS_CONFIG"

// VIN configures the decoder and its providers.
type VIN struct {
	Provider       string `yaml:"provider"`
	VincarioKey    string `yaml:"vincario_key"`
	VincarioSecret string `yaml:"vincario_secret"`
	VincarioPrefix string `yaml:"vincario_prefix"`
	NHTSABase      string `yaml:"nhtsa_base"`
}

// Upstream configures outbound HTTP clients and their breakers.
type Upstream struct {
	Timeout              time.Duration `yaml:"timeout"`
	BreakerFailThreshold int           `yaml:"breaker_fail_threshold"`
	BreakerOpenTimeout   time.Duration `yaml:"breaker_open_timeout"`
}

type Mapbox struct {
	AccessToken string `yaml:"access_token"`
}

type Neo4j struct {
	URL  string `yaml:"url"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

type NATS struct {
	// URL empty disables the event bus.
	URL string `yaml:"url"`
}

type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Config is the full service configuration.
type Config struct {
	Port       string    `yaml:"port"`
	CORSOrigin string    `yaml:"cors_origin"`
	LogLevel   string    `yaml:"log_level"`
	VIN        VIN       `yaml:"vin"`
	Upstream   Upstream  `yaml:"upstream"`
	Mapbox     Mapbox    `yaml:"mapbox"`
	Neo4j      Neo4j     `yaml:"neo4j"`
	NATS       NATS      `yaml:"nats"`
	RateLimit  RateLimit `yaml:"rate_limit"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:       "8080",
		CORSOrigin: "*",
		LogLevel:   "info",
		VIN: VIN{
			VincarioPrefix: "https://api.vindecoder.eu/3.2",
			NHTSABase:      "https://vpic.nhtsa.dot.gov",
		},
		Upstream: Upstream{
			Timeout:              30 * time.Second,
			BreakerFailThreshold: 5,
			BreakerOpenTimeout:   30 * time.Second,
		},
		Neo4j: Neo4j{
			URL:  "neo4j://localhost:7687",
			User: "neo4j",
			Pass: "password",
		},
		RateLimit: RateLimit{RPS: 20, Burst: 40},
	}
}

// Load builds a Config from defaults, then the YAML file at path (if path is
// not empty), then the environment.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	c.Port = envOr("PORT", c.Port)
	c.CORSOrigin = envOr("CORS_ORIGIN", c.CORSOrigin)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)

	c.VIN.Provider = envOr("VIN_DECODER_PROVIDER", c.VIN.Provider)
	c.VIN.VincarioKey = envOr("VINDECODER_EU_API_KEY", c.VIN.VincarioKey)
	c.VIN.VincarioSecret = envOr("VINDECODER_EU_SECRET_KEY", c.VIN.VincarioSecret)
	c.VIN.VincarioPrefix = envOr("VINDECODER_EU_API_PREFIX", c.VIN.VincarioPrefix)
	c.VIN.NHTSABase = envOr("NHTSA_API_BASE", c.VIN.NHTSABase)

	c.Mapbox.AccessToken = envOr("MAPBOX_ACCESS_TOKEN", c.Mapbox.AccessToken)
	c.Neo4j.URL = envOr("NEO4J_URL", c.Neo4j.URL)
	c.Neo4j.User = envOr("NEO4J_USER", c.Neo4j.User)
	c.Neo4j.Pass = envOr("NEO4J_PASS", c.Neo4j.Pass)
	c.NATS.URL = envOr("NATS_URL", c.NATS.URL)

	var errs []error
	c.Upstream.Timeout = envParse("UPSTREAM_TIMEOUT", c.Upstream.Timeout, time.ParseDuration, &errs)
	c.Upstream.BreakerFailThreshold = envParse("BREAKER_FAIL_THRESHOLD", c.Upstream.BreakerFailThreshold, strconv.Atoi, &errs)
	c.Upstream.BreakerOpenTimeout = envParse("BREAKER_OPEN_TIMEOUT", c.Upstream.BreakerOpenTimeout, time.ParseDuration, &errs)
	c.RateLimit.RPS = envParse("RATE_LIMIT_RPS", c.RateLimit.RPS, parseFloat, &errs)
	c.RateLimit.Burst = envParse("RATE_LIMIT_BURST", c.RateLimit.Burst, strconv.Atoi, &errs)
	return errors.Join(errs...)
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("config: port is required"))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("config: upstream timeout must be positive"))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("config: rate limit must not be negative"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Logger returns the JSON slog logger for c.LogLevel, writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log level %q: %w", s, err)
	}
	return lvl, nil
}

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envParse parses key with parse when set, keeping fallback and recording
// an error when the value is malformed.
func envParse[T any](key string, fallback T, parse func(string) (T, error), errs *[]error) T {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	out, err := parse(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s=%q: %w", key, v, err))
		return fallback
	}
	return out
}
