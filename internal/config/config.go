package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigFile points at a YAML file applied before the environment.
	EnvConfigFile = "GAMEMETRICS_CONFIG"
	xdgConfigName = "gamemetrics/config.yaml"
)

type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	ToConsole bool   `yaml:"to_console"`
	ToFile    bool   `yaml:"to_file"`
	File      string `yaml:"file"`
	Caller    bool   `yaml:"caller"`
}

type SinkConfig struct {
	JSONLPath    string `yaml:"jsonl"`
	RedisURL     string `yaml:"redis_url"`
	RedisTTLSec  int    `yaml:"redis_ttl_sec"`
	DatabaseURL  string `yaml:"database_url"`
	BadgerDir    string `yaml:"badger_dir"`
	WebhookURL   string `yaml:"webhook_url"`
	WebhookToken string `yaml:"webhook_token"`
}

type AppConfig struct {
	Format    string `yaml:"format"`
	Model     string `yaml:"model"`
	Ply       int    `yaml:"ply"`
	Workers   int    `yaml:"workers"`
	Precision int    `yaml:"precision"`

	// Perspective overrides the format's eval convention ("white" or "mover").
	Perspective string `yaml:"perspective"`

	Sinks SinkConfig `yaml:"sinks"`
	Log   LogConfig  `yaml:"log"`

	// MessagesDir holds YAML overrides for the text templates of run output.
	MessagesDir string `yaml:"messages_dir"`

	// Path of the YAML file that was applied, empty when none was found.
	Path string `yaml:"-"`
}

func defaults() *AppConfig {
	return &AppConfig{
		Format:    "lichess",
		Model:     "sf16.1",
		Ply:       30,
		Precision: 4,
		Log: LogConfig{
			Level:     "info",
			Format:    "legacy",
			ToConsole: true,
			File:      filepath.Join("logs", "gamemetrics.log"),
		},
	}
}

// Load builds the configuration from defaults, then the YAML file, then the
// environment. path wins over GAMEMETRICS_CONFIG, which wins over the XDG
// config location; only an explicitly named file is required to exist.
func Load(path string) (*AppConfig, error) {
	cfg := defaults()

	file, required := strings.TrimSpace(path), true
	if file == "" {
		file = strings.TrimSpace(os.Getenv(EnvConfigFile))
	}
	if file == "" {
		required = false
		if found, err := xdg.SearchConfigFile(xdgConfigName); err == nil {
			file = found
		}
	}
	if file != "" {
		if err := cfg.applyFile(file); err != nil {
			if required || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.Path = path
	return nil
}

func (c *AppConfig) applyEnv() {
	setString(&c.Format, "GAMEMETRICS_FORMAT")
	setString(&c.Model, "GAMEMETRICS_MODEL")
	setInt(&c.Ply, "GAMEMETRICS_PLY")
	setInt(&c.Workers, "GAMEMETRICS_WORKERS")
	setInt(&c.Precision, "GAMEMETRICS_PRECISION")
	setString(&c.Perspective, "GAMEMETRICS_PERSPECTIVE")

	setString(&c.Sinks.JSONLPath, "GAMEMETRICS_JSONL")
	setString(&c.Sinks.RedisURL, "REDIS_URL")
	setInt(&c.Sinks.RedisTTLSec, "REDIS_TTL_SEC")
	setString(&c.Sinks.DatabaseURL, "DATABASE_URL")
	setString(&c.Sinks.BadgerDir, "GAMEMETRICS_BADGER_DIR")
	setString(&c.Sinks.WebhookURL, "GAMEMETRICS_WEBHOOK_URL")
	setString(&c.Sinks.WebhookToken, "GAMEMETRICS_WEBHOOK_TOKEN")

	setString(&c.MessagesDir, "GAMEMETRICS_MESSAGES_DIR")

	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setBool(&c.Log.ToConsole, "LOG_TO_CONSOLE")
	setBool(&c.Log.ToFile, "LOG_TO_FILE")
	setString(&c.Log.File, "LOG_FILE")
	setBool(&c.Log.Caller, "LOG_CALLER")
}

// Validate checks the numeric bounds. Callers that overlay flags after Load
// run it again.
func (c *AppConfig) Validate() error {
	if c.Ply <= 0 {
		return errors.New("ply must be positive")
	}
	if c.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	if c.Precision > 12 {
		return errors.New("precision must be at most 12")
	}
	if c.Sinks.RedisTTLSec < 0 {
		return errors.New("redis ttl must not be negative")
	}
	return nil
}

// HasSink reports whether any record destination is configured.
func (c *AppConfig) HasSink() bool {
	s := c.Sinks
	return s.JSONLPath != "" || s.RedisURL != "" || s.DatabaseURL != "" || s.BadgerDir != "" || s.WebhookURL != ""
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
