package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath      = "CONFIG_PATH"
	EnvDBConnection    = "DB_CONNECTION"
	EnvSessionTTL      = "SESSION_TTL"
	EnvExecutorTimeout = "EXECUTOR_TIMEOUT"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

const (
	defaultHost          = ""
	defaultPort          = 8318
	defaultLogDir        = "logs"
	defaultSessionTTL    = 24 * time.Hour
	defaultSweepInterval = time.Hour
	defaultExecTimeout   = 30 * time.Second
)

// SessionConfig controls session lifetime and housekeeping.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep-interval"`
}

// ExecutorConfig controls outbound test calls.
type ExecutorConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Settings holds the runtime options read from the YAML config file.
type Settings struct {
	Host          string         `yaml:"host"`
	Port          int            `yaml:"port"`
	Debug         bool           `yaml:"debug"`
	LoggingToFile bool           `yaml:"logging-to-file"`
	LogDir        string         `yaml:"log-dir"`
	Session       SessionConfig  `yaml:"session"`
	Executor      ExecutorConfig `yaml:"executor"`
}

// DefaultSettings returns the settings used when the config file omits a value.
// Port stays zero so a command-line default can still apply.
func DefaultSettings() Settings {
	return Settings{
		Host:   defaultHost,
		LogDir: defaultLogDir,
		Session: SessionConfig{
			TTL:           defaultSessionTTL,
			SweepInterval: defaultSweepInterval,
		},
		Executor: ExecutorConfig{Timeout: defaultExecTimeout},
	}
}

// LoadSettings loads runtime settings from the YAML config file.
// A missing or unreadable file yields defaults; env overrides apply either way.
func LoadSettings(configPath string) (Settings, error) {
	result := DefaultSettings()

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &result); errUnmarshal != nil {
			return DefaultSettings(), fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	}

	if ttlRaw := strings.TrimSpace(os.Getenv(EnvSessionTTL)); ttlRaw != "" {
		if ttl, errParse := time.ParseDuration(ttlRaw); errParse == nil && ttl > 0 {
			result.Session.TTL = ttl
		}
	}
	if timeoutRaw := strings.TrimSpace(os.Getenv(EnvExecutorTimeout)); timeoutRaw != "" {
		if timeout, errParse := time.ParseDuration(timeoutRaw); errParse == nil && timeout > 0 {
			result.Executor.Timeout = timeout
		}
	}

	result.normalize()
	return result, nil
}

func (s *Settings) normalize() {
	s.Host = strings.TrimSpace(s.Host)
	if s.Port < 0 || s.Port > 65535 {
		s.Port = 0
	}
	if strings.TrimSpace(s.LogDir) == "" {
		s.LogDir = defaultLogDir
	}
	if s.Session.TTL <= 0 {
		s.Session.TTL = defaultSessionTTL
	}
	if s.Session.SweepInterval <= 0 {
		s.Session.SweepInterval = defaultSweepInterval
	}
	if s.Executor.Timeout <= 0 {
		s.Executor.Timeout = defaultExecTimeout
	}
}

// ApplyDefaultPort sets the port when the config file did not.
func (s *Settings) ApplyDefaultPort(port int) {
	if s.Port <= 0 && port > 0 && port <= 65535 {
		s.Port = port
	}
}

// Addr returns the listen address.
func (s Settings) Addr() string {
	port := s.Port
	if port <= 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", s.Host, port)
}
