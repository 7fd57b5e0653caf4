package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	MediaDriverLocal = "local"
	MediaDriverS3    = "s3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Media    MediaConfig    `yaml:"media"`
}

type ServerConfig struct {
	Name        string   `yaml:"name"`
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	BaseURL     string   `yaml:"base_url"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	AccessTokenSecret  string        `yaml:"access_token_secret"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl"`
	BcryptCost         int           `yaml:"bcrypt_cost"`
	// CookieSecure is a pointer so an explicit false in YAML survives setDefaults.
	CookieSecure *bool `yaml:"cookie_secure"`
}

// SecureCookies reports whether auth cookies carry the Secure attribute.
func (a AuthConfig) SecureCookies() bool {
	return a.CookieSecure == nil || *a.CookieSecure
}

type StorageConfig struct {
	TempDir        string        `yaml:"temp_dir"`
	UploadMaxBytes int64         `yaml:"upload_max_bytes"`
	TempFileMaxAge time.Duration `yaml:"temp_file_max_age"`
}

type MediaConfig struct {
	Driver string           `yaml:"driver"`
	Local  LocalMediaConfig `yaml:"local"`
	S3     S3MediaConfig    `yaml:"s3"`
}

type LocalMediaConfig struct {
	Root string `yaml:"root"`
}

type S3MediaConfig struct {
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	PublicBaseURL string `yaml:"public_base_url"`
	KeyPrefix     string `yaml:"key_prefix"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VIDTUBE_ACCESS_TOKEN_SECRET"); v != "" {
		c.Auth.AccessTokenSecret = v
	}
	if v := os.Getenv("VIDTUBE_REFRESH_TOKEN_SECRET"); v != "" {
		c.Auth.RefreshTokenSecret = v
	}
	if v := os.Getenv("VIDTUBE_S3_ACCESS_KEY"); v != "" {
		c.Media.S3.AccessKey = v
	}
	if v := os.Getenv("VIDTUBE_S3_SECRET_KEY"); v != "" {
		c.Media.S3.SecretKey = v
	}
}

func (c *Config) validate() error {
	if c.Auth.AccessTokenSecret == "" {
		return fmt.Errorf("auth.access_token_secret is required")
	}
	if len(c.Auth.AccessTokenSecret) < 32 {
		return fmt.Errorf("auth.access_token_secret must be at least 32 characters")
	}
	if c.Auth.RefreshTokenSecret == "" {
		return fmt.Errorf("auth.refresh_token_secret is required")
	}
	if len(c.Auth.RefreshTokenSecret) < 32 {
		return fmt.Errorf("auth.refresh_token_secret must be at least 32 characters")
	}
	if c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		return fmt.Errorf("auth.access_token_secret and auth.refresh_token_secret must differ")
	}

	c.Media.Driver = strings.ToLower(strings.TrimSpace(c.Media.Driver))
	switch c.Media.Driver {
	case "", MediaDriverLocal:
	case MediaDriverS3:
		if c.Media.S3.Bucket == "" {
			return fmt.Errorf("media.s3.bucket is required for the s3 driver")
		}
		if c.Media.S3.AccessKey == "" || c.Media.S3.SecretKey == "" {
			return fmt.Errorf("media.s3.access_key and media.s3.secret_key are required for the s3 driver")
		}
	default:
		return fmt.Errorf("media.driver %q is not supported", c.Media.Driver)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.Name == "" {
		c.Server.Name = "vidtube"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/vidtube.db"
	}
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = 10 * 24 * time.Hour
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}
	if c.Storage.TempDir == "" {
		c.Storage.TempDir = "./public/temp"
	}
	if c.Storage.UploadMaxBytes == 0 {
		c.Storage.UploadMaxBytes = 10 << 20
	}
	if c.Storage.TempFileMaxAge == 0 {
		c.Storage.TempFileMaxAge = time.Hour
	}
	if c.Media.Driver == "" {
		c.Media.Driver = MediaDriverLocal
	}
	if c.Media.Local.Root == "" {
		c.Media.Local.Root = "./data/media"
	}
	if c.Media.S3.Region == "" {
		c.Media.S3.Region = "us-east-1"
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
