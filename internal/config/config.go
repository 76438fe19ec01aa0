package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/skilltreehq/mentor-platform/pkg/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	// Service configuration
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"mentor-platform"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	Logging    LoggingConfig    `yaml:"logging,inline"`
	Database   DatabaseConfig   `yaml:"database,inline"`
	Graph      GraphConfig      `yaml:"graph,inline"`
	Uploads    UploadsConfig    `yaml:"uploads,inline"`
	Health     HealthConfig     `yaml:"health,inline"`
	Monitoring MonitoringConfig `yaml:"monitoring,inline"`
}

// Validate validates the configuration and returns an error if invalid
func (c *AppConfig) Validate() error {
	var result error

	validLevels := []string{"debug", "info", "warn", "error"}
	level := strings.ToLower(c.Logging.Level)
	valid := false
	for _, validLevel := range validLevels {
		if level == validLevel {
			valid = true
			break
		}
	}
	if !valid {
		result = multierror.Append(result, fmt.Errorf("log_level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		result = multierror.Append(result, fmt.Errorf("log_format must be either 'json' or 'text', got %q", c.Logging.Format))
	}

	if err := c.Graph.validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := c.Uploads.validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if c.Database.URL != "" && c.Database.MaxConnections <= 0 {
		result = multierror.Append(result, fmt.Errorf("database_max_connections must be greater than 0 when database is configured"))
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("health port must be between 1 and 65535, got %d", c.Health.Port))
	}

	return result
}

// GetLogLevel returns the parsed logger level
func (c *AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(c.Logging.Level)
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// LogConfig logs the current configuration (without sensitive data)
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.StringField("log_level", c.Logging.Level),
		logger.StringField("graph_base_url", c.Graph.BaseURL),
		logger.StringField("graph_tenant", c.Graph.TenantID),
		logger.DurationField("token_cache_ttl", c.Graph.TokenCacheTTL),
		logger.IntField("upload_max_size_mb", c.Uploads.MaxSizeMB),
		logger.StringField("upload_folder", c.Uploads.FolderName),
		logger.BoolField("database_configured", c.Database.URL != ""),
		logger.BoolField("metrics_enabled", c.Monitoring.MetricsEnabled),
	)
}
