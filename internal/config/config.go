package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Practice PracticeConfig `yaml:"practice"`
	Session  SessionConfig  `yaml:"session"`
	Export   ExportConfig   `yaml:"export"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// AuthConfig protects the API with an X-API-Key header. Empty disables auth.
type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// PracticeConfig holds defaults for practice settings and the metronome.
// Timezone is an IANA name deciding which calendar day an entry belongs to;
// empty means the system zone.
type PracticeConfig struct {
	InactivityDays  int     `yaml:"inactivity_days"`
	MetronomeBPM    int     `yaml:"metronome_bpm"`
	MetronomeVolume float64 `yaml:"metronome_volume"`
	Timezone        string  `yaml:"timezone"`
}

// Location resolves Timezone. Load has already validated it.
func (p PracticeConfig) Location() *time.Location {
	if p.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SessionConfig locates the session journal.
type SessionConfig struct {
	StateDir string `yaml:"state_dir"`
}

// ExportConfig controls the scheduled markdown export. An empty schedule
// disables it.
type ExportConfig struct {
	Path     string `yaml:"path"`
	Schedule string `yaml:"schedule"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 8080},
		Practice: PracticeConfig{
			InactivityDays:  7,
			MetronomeBPM:    120,
			MetronomeVolume: 0.5,
		},
		Session: SessionConfig{StateDir: "state"},
		Export:  ExportConfig{Path: "Guitar Exercises.md"},
		Logging: LoggingConfig{Level: "info", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
	}
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A .env file in the working directory is loaded first; it never replaces
// variables already set in the environment.
// Env vars use the prefix FRETLOG_ and underscore-separated paths:
//
//	FRETLOG_SERVER_HOST, FRETLOG_SERVER_PORT,
//	FRETLOG_DB_HOST, FRETLOG_DB_PORT, FRETLOG_DB_NAME,
//	FRETLOG_DB_USER, FRETLOG_DB_PASSWORD, FRETLOG_DB_SSLMODE,
//	FRETLOG_AUTH_API_KEY, FRETLOG_PRACTICE_INACTIVITY_DAYS,
//	FRETLOG_PRACTICE_METRONOME_BPM, FRETLOG_PRACTICE_METRONOME_VOLUME,
//	FRETLOG_PRACTICE_TIMEZONE,
//	FRETLOG_SESSION_STATE_DIR, FRETLOG_EXPORT_PATH, FRETLOG_EXPORT_SCHEDULE,
//	FRETLOG_LOG_LEVEL, FRETLOG_LOG_FILE
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	setString("FRETLOG_SERVER_HOST", &cfg.Server.Host)
	setInt("FRETLOG_SERVER_PORT", &cfg.Server.Port)
	setString("FRETLOG_DB_HOST", &cfg.Database.Host)
	setInt("FRETLOG_DB_PORT", &cfg.Database.Port)
	setString("FRETLOG_DB_NAME", &cfg.Database.Name)
	setString("FRETLOG_DB_USER", &cfg.Database.User)
	setString("FRETLOG_DB_PASSWORD", &cfg.Database.Password)
	setString("FRETLOG_DB_SSLMODE", &cfg.Database.SSLMode)
	setString("FRETLOG_AUTH_API_KEY", &cfg.Auth.APIKey)
	setInt("FRETLOG_PRACTICE_INACTIVITY_DAYS", &cfg.Practice.InactivityDays)
	setInt("FRETLOG_PRACTICE_METRONOME_BPM", &cfg.Practice.MetronomeBPM)
	setFloat("FRETLOG_PRACTICE_METRONOME_VOLUME", &cfg.Practice.MetronomeVolume)
	setString("FRETLOG_PRACTICE_TIMEZONE", &cfg.Practice.Timezone)
	setString("FRETLOG_SESSION_STATE_DIR", &cfg.Session.StateDir)
	setString("FRETLOG_EXPORT_PATH", &cfg.Export.Path)
	setString("FRETLOG_EXPORT_SCHEDULE", &cfg.Export.Schedule)
	setString("FRETLOG_LOG_LEVEL", &cfg.Logging.Level)
	setString("FRETLOG_LOG_FILE", &cfg.Logging.File)
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Practice.InactivityDays < 0 {
		return fmt.Errorf("practice.inactivity_days must not be negative")
	}
	if c.Practice.MetronomeBPM < 30 || c.Practice.MetronomeBPM > 200 {
		return fmt.Errorf("practice.metronome_bpm must be between 30 and 200")
	}
	if c.Practice.MetronomeVolume < 0 || c.Practice.MetronomeVolume > 1 {
		return fmt.Errorf("practice.metronome_volume must be between 0 and 1")
	}
	if c.Practice.Timezone != "" {
		if _, err := time.LoadLocation(c.Practice.Timezone); err != nil {
			return fmt.Errorf("practice.timezone: %w", err)
		}
	}
	if c.Session.StateDir == "" {
		return fmt.Errorf("session.state_dir is required")
	}
	if c.Export.Schedule != "" && c.Export.Path == "" {
		return fmt.Errorf("export.path is required when export.schedule is set")
	}
	return nil
}
