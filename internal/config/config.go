// Package config resolves vidquery settings from built-in defaults, an
// optional YAML file, an optional .env file and the process environment,
// in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrMissing = errors.New("required setting missing")

type Backend struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type Session struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type Storage struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// Enabled reports whether the S3 import source is configured.
func (s Storage) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

type Log struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type Config struct {
	Port           string  `yaml:"port"`
	BaseURL        string  `yaml:"base_url"`
	MaxUploadBytes int64   `yaml:"max_upload_bytes"`
	SearchTopK     int     `yaml:"search_top_k"`
	BannerSeconds  int     `yaml:"upload_banner_seconds"`
	StaticDir      string  `yaml:"static_dir"`
	GeoIPDB        string  `yaml:"geoip_db"`
	Backend        Backend `yaml:"backend"`
	Session        Session `yaml:"session"`
	Storage        Storage `yaml:"storage"`
	Log            Log     `yaml:"log"`
}

func Default() *Config {
	return &Config{
		Port:           "8080",
		BaseURL:        "http://localhost:8080",
		MaxUploadBytes: 500 * 1024 * 1024,
		SearchTopK:     5,
		BannerSeconds:  3,
		Session:        Session{TTL: 12 * time.Hour},
		Storage:        Storage{Region: "eu-central-1"},
		Log:            Log{Format: "text", Level: "info"},
	}
}

// Load builds the configuration. path names a YAML file and may be empty,
// in which case VIDQUERY_CONFIG is consulted. envFile names a dotenv file;
// a missing dotenv file is not an error.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("VIDQUERY_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
			slog.Debug("config: no dotenv file, using process environment", "file", envFile)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.BaseURL = getEnv("BASE_URL", c.BaseURL)
	c.MaxUploadBytes = getEnvInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.SearchTopK = int(getEnvInt64("SEARCH_TOP_K", int64(c.SearchTopK)))
	c.BannerSeconds = int(getEnvInt64("UPLOAD_BANNER_SECONDS", int64(c.BannerSeconds)))
	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)
	c.GeoIPDB = getEnv("GEOIP_DB", c.GeoIPDB)

	c.Backend.URL = getEnv("BACKEND_URL", c.Backend.URL)
	c.Backend.APIKey = getEnv("BACKEND_API_KEY", c.Backend.APIKey)
	c.Backend.Timeout = getEnvDuration("BACKEND_TIMEOUT", c.Backend.Timeout)

	c.Session.Secret = getEnv("SESSION_SECRET", c.Session.Secret)
	c.Session.TTL = getEnvDuration("SESSION_TTL", c.Session.TTL)

	c.Storage.Endpoint = getEnv("S3_ENDPOINT", c.Storage.Endpoint)
	c.Storage.Bucket = getEnv("S3_BUCKET", c.Storage.Bucket)
	c.Storage.AccessKey = getEnv("S3_ACCESS_KEY", c.Storage.AccessKey)
	c.Storage.SecretKey = getEnv("S3_SECRET_KEY", c.Storage.SecretKey)
	c.Storage.Region = getEnv("S3_REGION", c.Storage.Region)

	c.Log.Format = strings.ToLower(getEnv("LOG_FORMAT", c.Log.Format))
	c.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", c.Log.Level))
}

func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("BACKEND_URL: %w", ErrMissing)
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("SESSION_SECRET: %w", ErrMissing)
	}
	if c.SearchTopK <= 0 {
		c.SearchTopK = 5
	}
	if c.BannerSeconds <= 0 {
		c.BannerSeconds = 3
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = 12 * time.Hour
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT %q: want text or json", c.Log.Format)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

func (c *Config) BannerDuration() time.Duration {
	return time.Duration(c.BannerSeconds) * time.Second
}

// SecureCookies reports whether the public address is served over TLS.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", l.Level, err)
	}
	return level, nil
}

// Handler builds the slog handler selected by the log settings.
func (l Log) Handler(w io.Writer) slog.Handler {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
		slog.Warn("config: ignoring non-integer value", "key", key)
	}
	return fallback
}

// getEnvDuration accepts Go duration syntax or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("config: ignoring invalid duration", "key", key)
	return fallback
}
