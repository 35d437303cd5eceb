package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Directions DirectionsConfig `mapstructure:"directions"`
	Session    SessionConfig    `mapstructure:"session"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// DirectionsConfig points at a Mapbox-compatible directions API.
type DirectionsConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	AccessToken string `mapstructure:"access_token"`
	Timeout     int    `mapstructure:"timeout"` // seconds
}

func (d DirectionsConfig) TimeoutDuration() time.Duration {
	return time.Duration(d.Timeout) * time.Second
}

// SessionConfig parameterises the navigation session route requests are built from.
type SessionConfig struct {
	ID       string `mapstructure:"id"`
	Profile  string `mapstructure:"profile"`
	Language string `mapstructure:"language"`
	Offline  bool   `mapstructure:"offline"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
	TTL  int    `mapstructure:"ttl"` // route snapshot TTL in seconds
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables and validates it.
func Load(service string) (*Config, error) {
	cfg, err := Read(service)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for tools that only need part of the config.
func Read(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("directions.base_url", "https://api.mapbox.com")
	v.SetDefault("directions.access_token", "")
	v.SetDefault("directions.timeout", 15)
	v.SetDefault("session.id", "default")
	v.SetDefault("session.profile", "driving-traffic")
	v.SetDefault("session.language", "")
	v.SetDefault("session.offline", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "routefinder")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "routefinder")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.ttl", 3600)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: ROUTEFINDER_DIRECTIONS_ACCESS_TOKEN → directions.access_token
	v.SetEnvPrefix("ROUTEFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Directions.BaseURL == "" {
		errs = append(errs, "directions.base_url is required")
	}
	if c.Directions.AccessToken == "" {
		errs = append(errs, "directions.access_token is required")
	}
	if c.Directions.Timeout <= 0 {
		errs = append(errs, "directions.timeout must be positive")
	}
	if c.Session.ID == "" {
		errs = append(errs, "session.id is required")
	} else if strings.ContainsAny(c.Session.ID, ".*> \t\r\n") {
		// The id becomes a single NATS subject token.
		errs = append(errs, fmt.Sprintf("session.id must not contain '.', '*', '>' or whitespace, got %q", c.Session.ID))
	}
	if c.Session.Profile == "" {
		errs = append(errs, "session.profile is required")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Valkey.TTL <= 0 {
		errs = append(errs, "valkey.ttl must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
