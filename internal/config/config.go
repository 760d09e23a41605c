package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Email    EmailConfig    `yaml:"email"`
}

type ServerConfig struct {
	Name        string `yaml:"name"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	BaseURL     string `yaml:"base_url"`
	FrontendURL string `yaml:"frontend_url"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	AccessTokenSecret  string        `yaml:"access_token_secret"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl"`
	ResetTokenTTL      time.Duration `yaml:"reset_token_ttl"`
	RotationWindow     time.Duration `yaml:"rotation_window"`
	BcryptCost         int           `yaml:"bcrypt_cost"`
	HashWorkers        int           `yaml:"hash_workers"`
}

// UnmarshalYAML accepts duration fields in time.ParseDuration notation
// ("15m", "168h") rather than raw nanosecond integers.
func (a *AuthConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		AccessTokenSecret  string `yaml:"access_token_secret"`
		RefreshTokenSecret string `yaml:"refresh_token_secret"`
		AccessTokenTTL     string `yaml:"access_token_ttl"`
		RefreshTokenTTL    string `yaml:"refresh_token_ttl"`
		ResetTokenTTL      string `yaml:"reset_token_ttl"`
		RotationWindow     string `yaml:"rotation_window"`
		BcryptCost         int    `yaml:"bcrypt_cost"`
		HashWorkers        int    `yaml:"hash_workers"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	a.AccessTokenSecret = raw.AccessTokenSecret
	a.RefreshTokenSecret = raw.RefreshTokenSecret
	a.BcryptCost = raw.BcryptCost
	a.HashWorkers = raw.HashWorkers

	for _, f := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"access_token_ttl", raw.AccessTokenTTL, &a.AccessTokenTTL},
		{"refresh_token_ttl", raw.RefreshTokenTTL, &a.RefreshTokenTTL},
		{"reset_token_ttl", raw.ResetTokenTTL, &a.ResetTokenTTL},
		{"rotation_window", raw.RotationWindow, &a.RotationWindow},
	} {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("auth.%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

type EmailConfig struct {
	SMTP SMTPConfig `yaml:"smtp"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

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
	if v := os.Getenv("CAMPUSNET_ACCESS_TOKEN_SECRET"); v != "" {
		c.Auth.AccessTokenSecret = v
	}
	if v := os.Getenv("CAMPUSNET_REFRESH_TOKEN_SECRET"); v != "" {
		c.Auth.RefreshTokenSecret = v
	}
	if v := os.Getenv("CAMPUSNET_SMTP_PASSWORD"); v != "" {
		c.Email.SMTP.Password = v
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
	if c.Email.SMTP.Host == "" {
		return fmt.Errorf("email.smtp.host is required")
	}
	if c.Email.SMTP.Port == 0 {
		return fmt.Errorf("email.smtp.port is required")
	}
	if c.Email.SMTP.From == "" {
		return fmt.Errorf("email.smtp.from is required")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Name == "" {
		c.Server.Name = "CampusNet"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Server.FrontendURL == "" {
		c.Server.FrontendURL = c.Server.BaseURL
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/campusnet.db"
	}
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.ResetTokenTTL == 0 {
		c.Auth.ResetTokenTTL = 1 * time.Hour
	}
	if c.Auth.RotationWindow == 0 {
		c.Auth.RotationWindow = 24 * time.Hour
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 12
	}
	if c.Auth.HashWorkers == 0 {
		c.Auth.HashWorkers = 4
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
