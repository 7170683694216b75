// Package config loads capyhourly settings from defaults, an optional YAML
// file, a .env file and the process environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath   = "capyhourly.yaml"
	DefaultDBPath       = "capyhourly.sqlite"
	DefaultPostText     = "#capybara"
	DefaultIntervalSecs = 3600
	DefaultTimeoutSecs  = 30

	DefaultImageURL  = "https://api.capy.lol/v1/capybara"
	DefaultAPIURL    = "https://api.twitter.com"
	DefaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"

	EndpointV2     = "v2"
	EndpointLegacy = "v1.1"
)

// Credential env keys.
const (
	KeyConsumerKey    = "TWITTER_CONSUMER_KEY"
	KeyConsumerSecret = "TWITTER_CONSUMER_SECRET"
	KeyAccessToken    = "TWITTER_ACCESS_TOKEN"
	KeyAccessSecret   = "TWITTER_ACCESS_TOKEN_SECRET"
)

// ConfigError reports a missing or invalid setting.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// Credentials are the four OAuth1 secrets. Loaded once and never mutated.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

type Config struct {
	Credentials Credentials

	PostInterval   time.Duration
	PostText       string
	RequestTimeout time.Duration
	PostEndpoint   string

	DBPath   string
	DryRun   bool
	LogLevel string

	ImageURL  string
	APIURL    string
	UploadURL string
}

type configFile struct {
	Post struct {
		IntervalSecs int    `yaml:"interval_secs"`
		Text         string `yaml:"text"`
		Endpoint     string `yaml:"endpoint"`
	} `yaml:"post"`
	HTTP struct {
		TimeoutSecs int `yaml:"timeout_secs"`
	} `yaml:"http"`
	Services struct {
		ImageURL  string `yaml:"image_url"`
		APIURL    string `yaml:"api_url"`
		UploadURL string `yaml:"upload_url"`
	} `yaml:"services"`
	DBPath   *string `yaml:"db_path"`
	DryRun   *bool   `yaml:"dry_run"`
	LogLevel string  `yaml:"log_level"`
}

// Load resolves the configuration. path may be empty to use
// CAPYHOURLY_CONFIG or the default file name; a missing file is fine.
func Load(path string) (Config, error) {
	// .env never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if strings.TrimSpace(path) == "" {
		path = envOr("CAPYHOURLY_CONFIG", DefaultConfigPath)
	}

	cfg := Config{
		PostInterval:   DefaultIntervalSecs * time.Second,
		PostText:       DefaultPostText,
		RequestTimeout: DefaultTimeoutSecs * time.Second,
		PostEndpoint:   EndpointV2,
		DBPath:         DefaultDBPath,
		LogLevel:       "info",
		ImageURL:       DefaultImageURL,
		APIURL:         DefaultAPIURL,
		UploadURL:      DefaultUploadURL,
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.applyFile(raw); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}
	if f.Post.IntervalSecs != 0 {
		c.PostInterval = time.Duration(f.Post.IntervalSecs) * time.Second
	}
	if f.Post.Text != "" {
		c.PostText = f.Post.Text
	}
	if f.Post.Endpoint != "" {
		c.PostEndpoint = f.Post.Endpoint
	}
	if f.HTTP.TimeoutSecs != 0 {
		c.RequestTimeout = time.Duration(f.HTTP.TimeoutSecs) * time.Second
	}
	if f.Services.ImageURL != "" {
		c.ImageURL = f.Services.ImageURL
	}
	if f.Services.APIURL != "" {
		c.APIURL = f.Services.APIURL
	}
	if f.Services.UploadURL != "" {
		c.UploadURL = f.Services.UploadURL
	}
	if f.DBPath != nil {
		c.DBPath = *f.DBPath
	}
	if f.DryRun != nil {
		c.DryRun = *f.DryRun
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Credentials = Credentials{
		ConsumerKey:    os.Getenv(KeyConsumerKey),
		ConsumerSecret: os.Getenv(KeyConsumerSecret),
		AccessToken:    os.Getenv(KeyAccessToken),
		AccessSecret:   os.Getenv(KeyAccessSecret),
	}

	var err error
	if c.PostInterval, err = envSeconds("POST_INTERVAL_SECS", c.PostInterval); err != nil {
		return err
	}
	if c.RequestTimeout, err = envSeconds("REQUEST_TIMEOUT_SECS", c.RequestTimeout); err != nil {
		return err
	}
	c.PostText = envOr("POST_TEXT", c.PostText)
	c.PostEndpoint = envOr("POST_ENDPOINT", c.PostEndpoint)
	c.ImageURL = envOr("IMAGE_URL", c.ImageURL)
	c.APIURL = envOr("TWITTER_API_URL", c.APIURL)
	c.UploadURL = envOr("TWITTER_UPLOAD_URL", c.UploadURL)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	if v, ok := os.LookupEnv("CAPYHOURLY_DB"); ok {
		c.DBPath = v
	}
	c.DryRun = envBool("DRY_RUN", c.DryRun)
	return nil
}

// Validate checks required secrets and value ranges. Credentials are
// optional in dry-run mode.
func (c Config) Validate() error {
	if !c.DryRun {
		for _, kv := range []struct{ key, value string }{
			{KeyConsumerKey, c.Credentials.ConsumerKey},
			{KeyConsumerSecret, c.Credentials.ConsumerSecret},
			{KeyAccessToken, c.Credentials.AccessToken},
			{KeyAccessSecret, c.Credentials.AccessSecret},
		} {
			if strings.TrimSpace(kv.value) == "" {
				return &ConfigError{Key: kv.key, Reason: "missing required env var"}
			}
		}
	}
	if c.PostInterval <= 0 {
		return &ConfigError{Key: "POST_INTERVAL_SECS", Reason: "must be positive"}
	}
	if c.RequestTimeout <= 0 {
		return &ConfigError{Key: "REQUEST_TIMEOUT_SECS", Reason: "must be positive"}
	}
	if strings.TrimSpace(c.PostText) == "" {
		return &ConfigError{Key: "POST_TEXT", Reason: "must not be empty"}
	}
	switch c.PostEndpoint {
	case EndpointV2, EndpointLegacy:
	default:
		return &ConfigError{Key: "POST_ENDPOINT", Reason: fmt.Sprintf("unknown endpoint %q (want %s or %s)", c.PostEndpoint, EndpointV2, EndpointLegacy)}
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envSeconds(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ConfigError{Key: key, Reason: fmt.Sprintf("not an integer: %q", raw)}
	}
	return time.Duration(n) * time.Second, nil
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
