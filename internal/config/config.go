package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database file path
}

// GRPCConfig contains real-time gRPC server settings.
type GRPCConfig struct {
	Address    string  `yaml:"address"`     // listen address (e.g., ":50051")
	RateLimit  float64 `yaml:"rate_limit"`  // inbound frames per second per connection
	RateBurst  int     `yaml:"rate_burst"`  // burst allowance per connection
	SendBuffer int     `yaml:"send_buffer"` // outbound frames queued per connection
}

// HTTPConfig contains the read-only ops HTTP settings. An empty address disables it.
type HTTPConfig struct {
	Address string `yaml:"address"`
}

// AuthConfig contains authentication and room-derivation secrets.
type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	RoomSecret string `yaml:"room_secret"`
}

// SchedulerConfig controls the two scheduling sub-loops.
type SchedulerConfig struct {
	OneTimeInterval       time.Duration `yaml:"one_time_interval"`
	RecurringPollInterval time.Duration `yaml:"recurring_poll_interval"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

func defaults() *Config {
	return &Config{
		Database:  DatabaseConfig{Path: "survey.db"},
		GRPC:      GRPCConfig{Address: ":50051", RateLimit: 20, RateBurst: 40, SendBuffer: 64},
		HTTP:      HTTPConfig{Address: ":8080"},
		Scheduler: SchedulerConfig{OneTimeInterval: time.Minute, RecurringPollInterval: 60 * time.Second},
		Log:       LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// SURVEY_CONFIG, and environment variables, in that order of precedence.
// JWT_SECRET and ROOM_SECRET are required.
func Load() (*Config, error) {
	cfg, err := build()
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set; required for production")
	}
	if cfg.Auth.RoomSecret == "" {
		return nil, fmt.Errorf("ROOM_SECRET environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses safe defaults for the secrets in development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	cfg, err := build()
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "dev-secret-change-me"
	}
	if cfg.Auth.RoomSecret == "" {
		cfg.Auth.RoomSecret = "dev-room-secret-change-me"
	}
	return cfg, nil
}

func build() (*Config, error) {
	cfg := defaults()
	if path := getEnv("SURVEY_CONFIG", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.GRPC.Address = getEnv("GRPC_ADDRESS", c.GRPC.Address)
	c.HTTP.Address = getEnv("HTTP_ADDRESS", c.HTTP.Address)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.RoomSecret = getEnv("ROOM_SECRET", c.Auth.RoomSecret)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	var err error
	if c.GRPC.RateBurst, err = getEnvInt("GRPC_RATE_BURST", c.GRPC.RateBurst); err != nil {
		return err
	}
	if c.GRPC.SendBuffer, err = getEnvInt("GRPC_SEND_BUFFER", c.GRPC.SendBuffer); err != nil {
		return err
	}
	if c.GRPC.RateLimit, err = getEnvFloat("GRPC_RATE_LIMIT", c.GRPC.RateLimit); err != nil {
		return err
	}
	if c.Scheduler.OneTimeInterval, err = getEnvDuration("ONE_TIME_INTERVAL", c.Scheduler.OneTimeInterval); err != nil {
		return err
	}
	if c.Scheduler.RecurringPollInterval, err = getEnvDuration("RECURRING_POLL_INTERVAL", c.Scheduler.RecurringPollInterval); err != nil {
		return err
	}
	return nil
}

func (c *Config) validate() error {
	if c.Scheduler.OneTimeInterval <= 0 || c.Scheduler.RecurringPollInterval <= 0 {
		return errors.New("scheduler intervals must be positive")
	}
	if c.GRPC.RateLimit <= 0 || c.GRPC.RateBurst <= 0 {
		return errors.New("grpc rate limit and burst must be positive")
	}
	if c.GRPC.SendBuffer <= 0 {
		return errors.New("grpc send buffer must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvInt retrieves an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	if value, exists := os.LookupEnv(key); exists {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %w", key, err)
		}
		return f, nil
	}
	return defaultVal, nil
}

// getEnvDuration accepts Go duration strings such as "30s" or "5m".
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return d, nil
	}
	return defaultVal, nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{DB: %s, gRPC: %s, HTTP: %s, OneTime: %s, Recurring: %s, Log: %s, Auth: *** (masked) ***}",
		c.Database.Path, c.GRPC.Address, c.HTTP.Address, c.Scheduler.OneTimeInterval, c.Scheduler.RecurringPollInterval, c.Log.Level)
}
