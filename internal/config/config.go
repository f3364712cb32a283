package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

type DisplayConfig struct {
	PlaySound  bool `yaml:"play_sound"`
	SetBadge   bool `yaml:"set_badge"`
	ShowBanner bool `yaml:"show_banner"`
	ShowList   bool `yaml:"show_list"`
}

type Config struct {
	// Timezone is the IANA zone gig dates and times are interpreted in; "Local" uses the host zone.
	Timezone string `yaml:"timezone"`

	Storage struct {
		Driver string       `yaml:"driver"` // sqlite | memory
		Path   string       `yaml:"path"`
		Backup BackupConfig `yaml:"backup"`
	} `yaml:"storage"`

	Recordings struct {
		// Dir holds the recorded audio files.
		Dir string `yaml:"dir"`
	} `yaml:"recordings"`

	Notifications struct {
		Driver            string         `yaml:"driver"` // memory | redis
		PermissionGranted *bool          `yaml:"permission_granted"`
		Display           *DisplayConfig `yaml:"display"`
	} `yaml:"notifications"`

	Redis struct {
		Address   string `yaml:"address"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`

	Scheduler struct {
		RefreshCron string `yaml:"refresh_cron"`
	} `yaml:"scheduler"`

	Dispatcher struct {
		Enabled             bool    `yaml:"enabled"`
		PollIntervalSeconds int     `yaml:"poll_interval_seconds"`
		RatePerSecond       float64 `yaml:"rate_per_second"`
		Burst               int     `yaml:"burst"`
		MaxRetries          int     `yaml:"max_retries"`
	} `yaml:"dispatcher"`

	Audit struct {
		Enabled       bool `yaml:"enabled"`
		RetentionDays int  `yaml:"retention_days"`
		ExportOnStart bool `yaml:"export_on_start"`
	} `yaml:"audit"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	HTTP struct {
		Listen string `yaml:"listen"`
		// APIKey, when set, must be sent in the X-Api-Key header of every /api request.
		APIKey string `yaml:"api_key"`
	} `yaml:"http"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Log struct {
		Level   string `yaml:"level"`
		Console bool   `yaml:"console"`
	} `yaml:"log"`
}

// Load reads the YAML config at path and fills in defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	if cfg.Storage.Driver == "sqlite" {
		if err = os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/bandaid.db"
	}
	if c.Storage.Backup.Schedule == "" {
		c.Storage.Backup.Schedule = "0 3 * * *"
	}
	if c.Storage.Backup.StoragePath == "" {
		c.Storage.Backup.StoragePath = "data/backups"
	}
	if c.Recordings.Dir == "" {
		c.Recordings.Dir = "data/recordings"
	}
	if c.Notifications.Driver == "" {
		c.Notifications.Driver = "memory"
	}
	if c.Notifications.PermissionGranted == nil {
		granted := true
		c.Notifications.PermissionGranted = &granted
	}
	if c.Notifications.Display == nil {
		c.Notifications.Display = &DisplayConfig{PlaySound: true, SetBadge: true, ShowBanner: true, ShowList: true}
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "bandaid"
	}
	if c.Scheduler.RefreshCron == "" {
		c.Scheduler.RefreshCron = "*/5 * * * *"
	}
	if c.Dispatcher.PollIntervalSeconds <= 0 {
		c.Dispatcher.PollIntervalSeconds = 15
	}
	if c.Dispatcher.RatePerSecond <= 0 {
		c.Dispatcher.RatePerSecond = 20
	}
	if c.Dispatcher.Burst <= 0 {
		c.Dispatcher.Burst = 30
	}
	if c.Dispatcher.MaxRetries < 0 {
		c.Dispatcher.MaxRetries = 0
	}
	if c.Audit.RetentionDays <= 0 {
		c.Audit.RetentionDays = 90
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8080"
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Dispatcher.PollIntervalSeconds) * time.Second
}
