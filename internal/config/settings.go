package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jfs415/ip2asn2cc/internal/domain"
	"github.com/jfs415/ip2asn2cc/internal/support"
)

type Config struct {
	Countries           []string `json:"countries"`
	FilterPolicy        string   `json:"filter_policy"`
	IncludeIPv4Loopback bool     `json:"include_ipv4_loopback"`
	IncludeIPv6Loopback bool     `json:"include_ipv6_loopback"`

	Sources      []string `json:"sources"`
	Workers      int      `json:"workers"`
	FetchTimeout string   `json:"fetch_timeout"`
	ParseTimeout string   `json:"parse_timeout"`
	TempDir      string   `json:"temp_dir"`
	Proxy        string   `json:"proxy"`
	UserAgent    string   `json:"user_agent"`

	LogLevel string `json:"log_level"`

	Status struct {
		RedisURL string `json:"redis_url"`
		Key      string `json:"key"`
		TTL      string `json:"ttl"`
	} `json:"status"`

	Database struct {
		DSN string `json:"dsn"`
	} `json:"database"`

	GeoLite struct {
		CountryDB string `json:"country_db"`
	} `json:"geolite"`
}

const (
	DefaultSettingsPath = "data/settings.json"

	defaultWorkers      = 6
	defaultFetchTimeout = 5 * time.Minute
	defaultParseTimeout = 5 * time.Minute
	defaultStatusTTL    = 24 * time.Hour
)

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue atomic.Value
	configMu    sync.Mutex
)

func init() {
	cfg, err := Default()
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	configValue.Store(cfg)
}

// Default returns the embedded default configuration.
func Default() (Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfig, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SettingsPath is IP2CC_SETTINGS or DefaultSettingsPath.
func SettingsPath() string {
	return support.GetEnv("IP2CC_SETTINGS", DefaultSettingsPath)
}

// ReadSettings loads the settings file at path, creating it from the embedded
// defaults when missing, then applies environment overrides and stores the
// result.
func ReadSettings(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return GetConfig(), fmt.Errorf("read settings file: %w", err)
		}

		log.Warn("Settings file not found, creating with default configuration", "path", path)
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return GetConfig(), fmt.Errorf("create settings directory: %w", err)
			}
		}
		if err := os.WriteFile(path, defaultConfig, 0o644); err != nil {
			return GetConfig(), fmt.Errorf("write default settings file: %w", err)
		}
		data = defaultConfig
	}

	newConfig, err := Default()
	if err != nil {
		return GetConfig(), err
	}
	if err := json.Unmarshal(data, &newConfig); err != nil {
		return GetConfig(), fmt.Errorf("unmarshal settings file: %w", err)
	}

	applyEnvOverrides(&newConfig)
	if _, err := domain.ParseFilterPolicy(newConfig.FilterPolicy); err != nil {
		return GetConfig(), err
	}

	SetConfig(newConfig)
	log.Debug("Settings file loaded successfully", "path", path)
	return newConfig, nil
}

func applyEnvOverrides(cfg *Config) {
	if countries := support.GetEnvList("IP2CC_COUNTRIES", nil); len(countries) > 0 {
		cfg.Countries = countries
	}
	overrideString(&cfg.FilterPolicy, "IP2CC_POLICY")
	overrideString(&cfg.Proxy, "IP2CC_PROXY")
	overrideString(&cfg.LogLevel, "IP2CC_LOG_LEVEL")
	overrideString(&cfg.Status.RedisURL, "REDIS_URL")
	overrideString(&cfg.Database.DSN, "IP2CC_DATABASE_DSN")
	overrideString(&cfg.GeoLite.CountryDB, "IP2CC_GEOLITE_COUNTRY_DB")
	cfg.Workers = support.GetEnvInt("IP2CC_WORKERS", cfg.Workers)
}

// overrideString replaces *field with the variable's value unless it is unset
// or blank.
func overrideString(field *string, key string) {
	if value := strings.TrimSpace(support.GetEnv(key, "")); value != "" {
		*field = value
	}
}

func SetConfig(newConfig Config) {
	configMu.Lock()
	defer configMu.Unlock()
	configValue.Store(newConfig)
}

func GetConfig() Config {
	return configValue.Load().(Config)
}

// Policy parses FilterPolicy; an empty value means include.
func (c Config) Policy() (domain.FilterPolicy, error) {
	return domain.ParseFilterPolicy(c.FilterPolicy)
}

func (c Config) WorkerCount() int {
	if c.Workers <= 0 {
		return defaultWorkers
	}
	return c.Workers
}

func (c Config) FetchTimeoutDuration() time.Duration {
	return parseDuration("fetch_timeout", c.FetchTimeout, defaultFetchTimeout)
}

func (c Config) ParseTimeoutDuration() time.Duration {
	return parseDuration("parse_timeout", c.ParseTimeout, defaultParseTimeout)
}

func (c Config) StatusTTL() time.Duration {
	return parseDuration("status.ttl", c.Status.TTL, defaultStatusTTL)
}

// Level maps log_level onto a logger level, falling back to info.
func (c Config) Level() log.Level {
	raw := strings.TrimSpace(c.LogLevel)
	if raw == "" {
		return log.InfoLevel
	}
	level, err := log.ParseLevel(strings.ToLower(raw))
	if err != nil {
		log.Warn("invalid log level, using info", "value", raw)
		return log.InfoLevel
	}
	return level
}

func parseDuration(field, raw string, fallback time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn("invalid duration in settings", "field", field, "value", raw)
		return fallback
	}
	return d
}
