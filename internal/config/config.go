// Package config provides YAML-based configuration for the photoqa client and
// the development simulator.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	// Backend client settings
	Client ClientConfig `yaml:"client"`

	// Status polling
	Polling PollingConfig `yaml:"polling"`

	// File selection rules
	Upload UploadConfig `yaml:"upload"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Development simulator
	Server ServerConfig `yaml:"server"`
}

// ClientConfig contains settings for talking to the backend
type ClientConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UserAgent      string        `yaml:"user_agent"`
}

// PollingConfig controls the status poll loop. Zero limits mean unbounded.
type PollingConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxPolls    int           `yaml:"max_polls"`
	MaxDuration time.Duration `yaml:"max_duration"`
}

// UploadConfig contains file selection settings
type UploadConfig struct {
	AllowedTypes []string `yaml:"allowed_types"`
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Level   string `yaml:"level"`
	NoColor bool   `yaml:"no_color"`
}

// ServerConfig contains settings for the development simulator
type ServerConfig struct {
	Port            int           `yaml:"port"`
	BindAddress     string        `yaml:"bind_address"`
	EnableCORS      bool          `yaml:"enable_cors"`
	AllowOrigins    []string      `yaml:"allow_origins"`
	BodyLimit       string        `yaml:"body_limit"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	MediaBackend    string        `yaml:"media_backend"`
	MediaDir        string        `yaml:"media_dir"`
	Minio           MinioConfig   `yaml:"minio"`
	StepDelay       time.Duration `yaml:"step_delay"`
	Providers       []string      `yaml:"providers"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	Retention       time.Duration `yaml:"retention"`
	RequestLogging  bool          `yaml:"request_logging"`
}

// MinioConfig contains S3 compatible storage settings used when
// server.media_backend is "minio"
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// Media storage backends
const (
	MediaBackendNone  = "none"
	MediaBackendLocal = "local"
	MediaBackendMinio = "minio"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Client: ClientConfig{
			BaseURL:        "http://localhost:8000",
			RequestTimeout: 30 * time.Second,
			UserAgent:      "photoqa/dev",
		},
		Polling: PollingConfig{
			Interval:    3 * time.Second,
			MaxPolls:    0,
			MaxDuration: 0,
		},
		Upload: UploadConfig{
			AllowedTypes: []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Port:            8000,
			BindAddress:     "127.0.0.1",
			EnableCORS:      true,
			AllowOrigins:    []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			BodyLimit:       "64M",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			MediaBackend:    MediaBackendLocal,
			MediaDir:        "media",
			Minio: MinioConfig{
				Endpoint: "localhost:9000",
				Bucket:   "photoqa",
			},
			StepDelay:       time.Second,
			Providers:       []string{"gemini", "openai", "anthropic", "groq"},
			CleanupInterval: time.Hour,
			Retention:       7 * 24 * time.Hour,
			RequestLogging:  true,
		},
	}
}

// LoadConfig loads configuration from a YAML file. An empty path or a missing
// file yields the defaults. A .env file in the working directory and the
// process environment are applied on top.
func LoadConfig(configPath string) (*AppConfig, error) {
	_ = godotenv.Load(".env")

	config := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	config.applyEnvironmentOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# photoqa configuration\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that would otherwise fail later at runtime
func (c *AppConfig) Validate() error {
	u, err := url.Parse(c.Client.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid client.base_url %q", c.Client.BaseURL)
	}
	if c.Polling.Interval <= 0 {
		return fmt.Errorf("polling.interval must be positive, got %s", c.Polling.Interval)
	}
	if c.Polling.MaxPolls < 0 {
		return fmt.Errorf("polling.max_polls must not be negative, got %d", c.Polling.MaxPolls)
	}
	if c.Polling.MaxDuration < 0 {
		return fmt.Errorf("polling.max_duration must not be negative, got %s", c.Polling.MaxDuration)
	}
	if c.Server.CleanupInterval <= 0 {
		return fmt.Errorf("server.cleanup_interval must be positive, got %s", c.Server.CleanupInterval)
	}
	switch c.Server.MediaBackend {
	case MediaBackendNone:
	case MediaBackendLocal:
		if c.Server.MediaDir == "" {
			return fmt.Errorf("server.media_dir is required for the local media backend")
		}
	case MediaBackendMinio:
		if c.Server.Minio.Endpoint == "" || c.Server.Minio.Bucket == "" {
			return fmt.Errorf("server.minio.endpoint and server.minio.bucket are required for the minio media backend")
		}
	default:
		return fmt.Errorf("unknown server.media_backend %q", c.Server.MediaBackend)
	}
	if c.Client.RequestTimeout < 0 {
		return fmt.Errorf("client.request_timeout must not be negative, got %s", c.Client.RequestTimeout)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if v := getEnv("PHOTOQA_BASE_URL"); v != "" {
		c.Client.BaseURL = v
	}
	if d, ok := getEnvDuration("PHOTOQA_POLL_INTERVAL"); ok {
		c.Polling.Interval = d
	}
	if n, ok := getEnvInt("PHOTOQA_MAX_POLLS"); ok {
		c.Polling.MaxPolls = n
	}
	if d, ok := getEnvDuration("PHOTOQA_REQUEST_TIMEOUT"); ok {
		c.Client.RequestTimeout = d
	}
	if v := getEnv("PHOTOQA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getEnv("PHOTOQA_MEDIA_BACKEND"); v != "" {
		c.Server.MediaBackend = v
	}
	if v := getEnv("MINIO_ENDPOINT"); v != "" {
		c.Server.Minio.Endpoint = v
	}
	if v := getEnv("MINIO_ACCESS_KEY"); v != "" {
		c.Server.Minio.AccessKey = v
	}
	if v := getEnv("MINIO_SECRET_KEY"); v != "" {
		c.Server.Minio.SecretKey = v
	}
	if v := getEnv("MINIO_BUCKET"); v != "" {
		c.Server.Minio.Bucket = v
	}
	if v := getEnv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Server.Minio.UseSSL = b
		}
	}
	if n, ok := getEnvInt("PORT"); ok {
		c.Server.Port = n
	}
}

// IsAllowedFile reports whether name has one of the allowed extensions.
// An empty allow list accepts everything.
func (c *AppConfig) IsAllowedFile(name string) bool {
	if len(c.Upload.AllowedTypes) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range c.Upload.AllowedTypes {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// GetServerAddr returns the simulator bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func getEnvInt(key string) (int, bool) {
	if val := getEnv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func getEnvDuration(key string) (time.Duration, bool) {
	if val := getEnv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
