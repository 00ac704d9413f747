package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the engine process. Database and Redis
// are optional: the audit sink and distributed lock both fall back to
// no-op/in-process implementations when left unconfigured.
type Config struct {
	ServiceName string   `mapstructure:"service_name"`
	Environment string   `mapstructure:"environment"`
	Port        int      `mapstructure:"port"`
	LogLevel    string   `mapstructure:"log_level"`
	Database    Database `mapstructure:"database"`
	Redis       Redis    `mapstructure:"redis"`
	Metrics     Metrics  `mapstructure:"metrics"`
	Security    Security `mapstructure:"security"`
	Engine      Engine   `mapstructure:"engine"`
}

// Database configuration, consumed only by the optional audit sink.
type Database struct {
	URL             string `mapstructure:"url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// Redis configuration, consumed only by the optional distributed lock.
type Redis struct {
	URL        string `mapstructure:"url"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// Metrics configuration for the ingress gateway's /metrics endpoint.
type Metrics struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Security configuration for the operator-facing admin surface.
type Security struct {
	JWTSecret        string `mapstructure:"jwt_secret"`
	JWTRefreshSecret string `mapstructure:"jwt_refresh_secret"`
	JWTAlgorithm     string `mapstructure:"jwt_algorithm"`
	TokenExpiry      int    `mapstructure:"token_expiry"`
	RefreshExpiry    int    `mapstructure:"refresh_expiry"`
	BcryptCost       int    `mapstructure:"bcrypt_cost"`
}

// Engine holds every CLI-visible tuning knob for the detection core.
type Engine struct {
	AutoFireThreshold        float64 `mapstructure:"auto_fire_threshold"`
	ProposeThreshold         float64 `mapstructure:"propose_threshold"`
	LearningPeriodDays       int     `mapstructure:"learning_period_days"`
	MinSamples               int     `mapstructure:"min_samples"`
	UpdateIntervalHours      int     `mapstructure:"update_interval_hours"`
	MaxBlocks                int     `mapstructure:"max_blocks"`
	MaxHoneypots             int     `mapstructure:"max_honeypots"`
	RequestsPerMinute        int     `mapstructure:"requests_per_minute"`
	BurstThreshold           int     `mapstructure:"burst_threshold"`
	TimeWindowSeconds        int     `mapstructure:"time_window_seconds"`
	MaxConcurrentEnumerations int    `mapstructure:"max_concurrent_enumerations"`
	ChainTimeWindowHours     int     `mapstructure:"chain_time_window_hours"`
	ChainGapHours            int     `mapstructure:"chain_gap_hours"`
	CorrelationThreshold     float64 `mapstructure:"correlation_threshold"`
	GraphEdgeThreshold       float64 `mapstructure:"graph_edge_threshold"`
	QueueCapacity            int     `mapstructure:"queue_capacity"`
}

// LearningPeriod converts LearningPeriodDays to a duration once at startup,
// so callers never compare naive local times against it.
func (e Engine) LearningPeriod() time.Duration {
	return time.Duration(e.LearningPeriodDays) * 24 * time.Hour
}

// UpdateInterval converts UpdateIntervalHours to a duration.
func (e Engine) UpdateInterval() time.Duration {
	return time.Duration(e.UpdateIntervalHours) * time.Hour
}

// ChainGap converts ChainGapHours to a duration.
func (e Engine) ChainGap() time.Duration {
	return time.Duration(e.ChainGapHours) * time.Hour
}

// TimeWindow converts TimeWindowSeconds to a duration.
func (e Engine) TimeWindow() time.Duration {
	return time.Duration(e.TimeWindowSeconds) * time.Second
}

// Load reads configuration from file and environment variables.
func Load(serviceName string) (*Config, error) {
	config := &Config{
		ServiceName: serviceName,
		Environment: "development",
		Port:        8080,
		LogLevel:    "info",
		Database: Database{
			MaxOpenConns:    25,
			MaxIdleConns:    25,
			ConnMaxLifetime: 300,
		},
		Redis: Redis{
			MaxRetries: 3,
			PoolSize:   10,
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    "/metrics",
		},
		Security: Security{
			JWTSecret:        "dev-secret-change-in-production",
			JWTRefreshSecret: "dev-refresh-secret-change-in-production",
			JWTAlgorithm:     "RS256",
			TokenExpiry:      900,
			RefreshExpiry:    604800,
			BcryptCost:       12,
		},
		Engine: Engine{
			AutoFireThreshold:         0.90,
			ProposeThreshold:          0.70,
			LearningPeriodDays:        7,
			MinSamples:                100,
			UpdateIntervalHours:       24,
			MaxBlocks:                 1000,
			MaxHoneypots:              10,
			RequestsPerMinute:         60,
			BurstThreshold:            100,
			TimeWindowSeconds:         60,
			MaxConcurrentEnumerations: 5,
			ChainTimeWindowHours:      24,
			ChainGapHours:             2,
			CorrelationThreshold:      0.5,
			GraphEdgeThreshold:        0.3,
			QueueCapacity:             4096,
		},
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("./config/environments")
	viper.AddConfigPath(".")

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	config.Environment = env

	viper.SetConfigName(env)
	if err := viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		_ = viper.ReadInConfig()
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("IFF")

	switch serviceName {
	case "gateway":
		viper.SetDefault("port", 8080)
	case "honeypot-relay":
		viper.SetDefault("port", 8090)
	case "engine":
		viper.SetDefault("port", 8091) // unused by the no-HTTP process itself, kept valid for config validation
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateConfig checks the fields the engine cannot run without. Database
// and Redis URLs are deliberately not required: both back optional
// components that default to no-op implementations.
func validateConfig(cfg *Config) error {
	if cfg.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if cfg.Engine.ProposeThreshold > cfg.Engine.AutoFireThreshold {
		return fmt.Errorf("propose_threshold must be <= auto_fire_threshold")
	}
	return nil
}

// GetEnv returns the current environment.
func (c *Config) GetEnv() string {
	return c.Environment
}

// IsProduction returns true if running in production.
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// IsDevelopment returns true if running in development.
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) == "development"
}
