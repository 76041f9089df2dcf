package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	BaseURL        string        `yaml:"base_url"        env:"PORTAL_BASE_URL"        env-default:"http://127.0.0.1:8000/api"`
	TokenDB        string        `yaml:"token_db"        env:"PORTAL_TOKEN_DB"        env-default:"portal.db"` // sqlite file holding the token pair, ":memory:" for none
	MasterKeyPath  string        `yaml:"master_key_path" env:"PORTAL_MASTER_KEY_PATH"`                         // Optional: seals stored tokens
	MasterKey      string        `yaml:"-"               env:"PORTAL_MASTER_KEY"`                              // Optional: key material when no file is set
	RequestTimeout time.Duration `yaml:"request_timeout" env:"PORTAL_REQUEST_TIMEOUT" env-default:"10s"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Env       string `yaml:"env"        env:"ENV"        env-default:"dev"`
	LogLevel  string `yaml:"log_level"  env:"LOG_LEVEL"  env-default:"warn"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"text"`
}

// RateLimitConfig bounds how fast the client talks to the backend. A zero
// Requests disables limiting.
type RateLimitConfig struct {
	Requests int           `yaml:"requests" env:"PORTAL_RATE_REQUESTS" env-default:"120"`
	Window   time.Duration `yaml:"window"   env:"PORTAL_RATE_WINDOW"   env-default:"1m"`
	Burst    int           `yaml:"burst"    env:"PORTAL_RATE_BURST"    env-default:"20"`
}

func (r RateLimitConfig) limit() httpx.RateLimitConfig {
	return httpx.RateLimitConfig{
		RequestsPerWindow: r.Requests,
		Window:            r.Window,
		Burst:             r.Burst,
	}
}

// LoadConfig reads configuration from the YAML file at path when one is
// given (or PORTAL_CONFIG is set), then lets environment variables override
// it.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("PORTAL_CONFIG")
	}

	var err error
	if path != "" {
		if _, statErr := os.Stat(path); statErr != nil {
			return Config{}, fmt.Errorf("config file does not exist: %s", path)
		}
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cleanenv cannot.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base url must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.TokenDB == "" {
		return errors.New("token db path is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.RateLimit.Requests < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit values must not be negative")
	}
	return nil
}
