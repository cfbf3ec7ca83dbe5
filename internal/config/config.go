package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "CARDKIT_"

// Config is the gateway configuration. BotURL receives accepted turns as
// JSON; when it is empty they are only logged.
type Config struct {
	ListenAddr  string          `yaml:"listen_addr" validate:"required"`
	PolicyPath  string          `yaml:"policy_path"`
	WatchPolicy bool            `yaml:"watch_policy"`
	LogMode     string          `yaml:"log_mode" validate:"omitempty,oneof=dev development prod production"`
	BotURL      string          `yaml:"bot_url" validate:"omitempty,url"`
	Store       StoreConfig     `yaml:"store"`
	Slack       SlackConfig     `yaml:"slack"`
	Auth        AuthConfig      `yaml:"auth"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// StoreConfig selects the tracking backend. DSN is only read by sqlite.
type StoreConfig struct {
	Driver     string        `yaml:"driver" validate:"oneof=memory badger redis sqlite"`
	DSN        string        `yaml:"dsn" validate:"required_if=Driver sqlite"`
	BadgerPath string        `yaml:"badger_path" validate:"required_if=Driver badger"`
	RedisAddr  string        `yaml:"redis_addr" validate:"required_if=Driver redis"`
	RedisPass  string        `yaml:"redis_password"`
	RedisDB    int           `yaml:"redis_db" validate:"gte=0"`
	KeyPrefix  string        `yaml:"key_prefix"`
	TTL        time.Duration `yaml:"ttl" validate:"gte=0"`
}

type SlackConfig struct {
	BotToken      string `yaml:"bot_token"`
	BaseURL       string `yaml:"base_url" validate:"omitempty,url"`
	SigningSecret string `yaml:"signing_secret"`
}

// Enabled reports whether the Slack channel should be registered.
func (s SlackConfig) Enabled() bool {
	return s.BotToken != ""
}

type AuthConfig struct {
	DevToken    string `yaml:"dev_token"`
	JWTIssuer   string `yaml:"jwt_issuer" validate:"omitempty,url"`
	JWTAudience string `yaml:"jwt_audience"`
	JWKSURL     string `yaml:"jwks_url" validate:"omitempty,url"`
}

type RateLimitConfig struct {
	// RPS of zero disables the webhook limiter.
	RPS   float64 `yaml:"rps" validate:"gte=0"`
	Burst int     `yaml:"burst" validate:"gte=0"`
}

func Default() Config {
	return Config{
		ListenAddr: ":8080",
		LogMode:    "production",
		Store:      StoreConfig{Driver: "memory"},
		RateLimit:  RateLimitConfig{RPS: 20, Burst: 40},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any CARDKIT_* variable getenv reports as set.
func ApplyEnv(cfg Config, getenv func(string) string) (Config, error) {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}
	str("LISTEN_ADDR", &cfg.ListenAddr)
	str("POLICY_PATH", &cfg.PolicyPath)
	str("LOG_MODE", &cfg.LogMode)
	str("BOT_URL", &cfg.BotURL)
	str("STORE_DRIVER", &cfg.Store.Driver)
	str("STORE_DSN", &cfg.Store.DSN)
	str("BADGER_PATH", &cfg.Store.BadgerPath)
	str("REDIS_ADDR", &cfg.Store.RedisAddr)
	str("REDIS_PASSWORD", &cfg.Store.RedisPass)
	str("SLACK_BOT_TOKEN", &cfg.Slack.BotToken)
	str("SLACK_BASE_URL", &cfg.Slack.BaseURL)
	str("SLACK_SIGNING_SECRET", &cfg.Slack.SigningSecret)
	str("DEV_TOKEN", &cfg.Auth.DevToken)
	str("JWT_ISSUER", &cfg.Auth.JWTIssuer)
	str("JWT_AUDIENCE", &cfg.Auth.JWTAudience)
	str("JWKS_URL", &cfg.Auth.JWKSURL)

	if v := strings.TrimSpace(getenv(EnvPrefix + "REDIS_DB")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%sREDIS_DB: %w", EnvPrefix, err)
		}
		cfg.Store.RedisDB = n
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "WATCH_POLICY")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%sWATCH_POLICY: %w", EnvPrefix, err)
		}
		cfg.WatchPolicy = b
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.WatchPolicy && c.PolicyPath == "" {
		return errors.New("invalid config: watch_policy needs policy_path")
	}
	return nil
}

// Resolve loads path, applies the environment and validates the result.
func Resolve(path string, getenv func(string) string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	if cfg, err = ApplyEnv(cfg, getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
