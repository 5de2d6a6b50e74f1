package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port           string `yaml:"port"`
		Mode           string `yaml:"mode"` // gin mode: debug, release, test
		MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	} `yaml:"server"`
	Logging struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"logging"`
	Auth struct {
		JWTSecret         string `yaml:"jwt_secret"`
		TokenTTLMinutes   int64  `yaml:"token_ttl_minutes"`
		AllowRegistration bool   `yaml:"allow_registration"`
	} `yaml:"auth"`
	Credentials struct {
		Backend string `yaml:"backend"` // file, sqlite or postgres
		Path    string `yaml:"path"`    // flat file or SQLite database path
		URL     string `yaml:"url"`     // PostgreSQL URL
	} `yaml:"credentials"`
	Audit struct {
		Path string `yaml:"path"`
	} `yaml:"audit"`
	Forecast struct {
		ServiceURL     string          `yaml:"service_url"`
		ModelPath      string          `yaml:"model_path"`
		TimeoutSeconds int64           `yaml:"timeout_seconds"`
		History        map[int]float64 `yaml:"history"` // year -> total investment
	} `yaml:"forecast"`
	Notify struct {
		Telegram struct {
			Enabled  bool   `yaml:"enabled"`
			BotToken string `yaml:"bot_token"`
			ChatID   int64  `yaml:"chat_id"`
		} `yaml:"telegram"`
	} `yaml:"notify"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	return config, nil
}

// Default returns a configuration with every default applied, used when no
// config file is present.
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 32 << 20
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Auth.TokenTTLMinutes == 0 {
		c.Auth.TokenTTLMinutes = 8 * 60
	}

	if c.Credentials.Backend == "" {
		c.Credentials.Backend = "file"
	}
	if c.Credentials.Path == "" {
		switch c.Credentials.Backend {
		case "sqlite":
			c.Credentials.Path = "./data/credentials.db"
		default:
			c.Credentials.Path = "./data/accounts.jsonl"
		}
	}

	if c.Audit.Path == "" {
		c.Audit.Path = "./data/audit.log"
	}

	if c.Forecast.TimeoutSeconds == 0 {
		c.Forecast.TimeoutSeconds = 30
	}
	if len(c.Forecast.History) == 0 {
		c.Forecast.History = map[int]float64{
			2018: 8233274390221,
			2019: 20717720510244,
			2020: 15666957301328,
			2021: 16720571318394,
			2022: 7947606550602,
			2023: 120869283284370,
		}
	}

	// Secrets may be given as ${ENV_VAR} references
	c.Auth.JWTSecret = os.ExpandEnv(c.Auth.JWTSecret)
	c.Credentials.URL = os.ExpandEnv(c.Credentials.URL)
	c.Notify.Telegram.BotToken = os.ExpandEnv(c.Notify.Telegram.BotToken)
}

// TokenTTL is the lifetime of a login session.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// ForecastTimeout bounds a single call to the model service.
func (c *Config) ForecastTimeout() time.Duration {
	return time.Duration(c.Forecast.TimeoutSeconds) * time.Second
}
