package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates all configuration settings for the application.
type Config struct {
	// Environment indicates the running environment (e.g., "development", "production").
	Environment string `mapstructure:"environment"`
	// LogLevel sets the global logging verbosity.
	LogLevel string `mapstructure:"log_level"`
	// Server holds configuration for the HTTP server.
	Server ServerConfig `mapstructure:"server"`
	// Database holds configuration for the database connection.
	Database DatabaseConfig `mapstructure:"database"`
	// Redis holds configuration for the Redis connection.
	Redis RedisConfig `mapstructure:"redis"`
	// Categorizer holds configuration for the zero-shot labeling service.
	Categorizer CategorizerConfig `mapstructure:"categorizer"`
	// Anomaly holds configuration for anomaly detection.
	Anomaly AnomalyConfig `mapstructure:"anomaly"`
	// Forecast holds configuration for spending forecasting.
	Forecast ForecastConfig `mapstructure:"forecast"`
}

// ServerConfig defines the HTTP server settings.
type ServerConfig struct {
	// Port is the TCP port the server listens on.
	Port int `mapstructure:"port"`
	// AllowedOrigins is a list of CORS allowed origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// MaxUploadMB is the maximum accepted request body size in megabytes.
	MaxUploadMB int `mapstructure:"max_upload_mb"`
}

// DatabaseConfig defines the PostgreSQL database connection settings.
type DatabaseConfig struct {
	// Host is the database server hostname or IP.
	Host string `mapstructure:"host"`
	// Port is the database server port.
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password.
	Password string `mapstructure:"password"`
	// DBName is the name of the database to connect to.
	DBName string `mapstructure:"dbname"`
	// SSLMode defines the SSL connection mode.
	SSLMode string `mapstructure:"sslmode"`
	// DatabaseURL is a connection string that can override individual fields.
	DatabaseURL string `mapstructure:"database_url"`
	// Enabled controls whether transaction storage is active.
	Enabled bool `mapstructure:"enabled"`
}

// ConnString builds a pgx connection string from the individual fields
// unless DatabaseURL overrides them.
func (c DatabaseConfig) ConnString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// RedisConfig defines the Redis connection settings.
type RedisConfig struct {
	// Host is the Redis server hostname.
	Host string `mapstructure:"host"`
	// Port is the Redis server port.
	Port int `mapstructure:"port"`
	// Password is the Redis authentication password.
	Password string `mapstructure:"password"`
	// DB is the Redis database index to use.
	DB int `mapstructure:"db"`
	// Enabled controls whether the label cache is active.
	Enabled bool `mapstructure:"enabled"`
}

// Addr returns the host:port address of the Redis server.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CategorizerConfig defines settings for the zero-shot classification service.
type CategorizerConfig struct {
	// ServiceURL is the base URL of the classification service.
	ServiceURL string `mapstructure:"service_url"`
	// Timeout is the per-request timeout in seconds.
	Timeout int `mapstructure:"timeout"`
	// BatchSize is the number of descriptions classified per batch.
	BatchSize int `mapstructure:"batch_size"`
	// CacheTTL is how long cached labels stay valid.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// AnomalyConfig defines settings for statistical anomaly detection.
type AnomalyConfig struct {
	// ZScoreThreshold is the absolute z-score above which an expense is flagged.
	ZScoreThreshold float64 `mapstructure:"z_score_threshold"`
}

// ForecastConfig defines settings for per-category spending forecasting.
type ForecastConfig struct {
	// MinHistoryMonths is the minimum number of observed months required to train.
	MinHistoryMonths int `mapstructure:"min_history_months"`
	// HorizonMonths is the number of months forecast ahead.
	HorizonMonths int `mapstructure:"horizon_months"`
	// MajorCategoryThreshold is the minimum share of total spending for a
	// category to be forecast (0.05 = 5%).
	MajorCategoryThreshold float64 `mapstructure:"major_category_threshold"`
	// NEstimators is the number of boosting rounds per category model.
	NEstimators int `mapstructure:"n_estimators"`
	// MaxDepth is the maximum regression tree depth.
	MaxDepth int `mapstructure:"max_depth"`
	// LearningRate is the boosting shrinkage factor.
	LearningRate float64 `mapstructure:"learning_rate"`
	// ModelDir is the directory where trained models are persisted.
	ModelDir string `mapstructure:"model_dir"`
}

// Load reads the configuration from the config file and environment variables.
//
// Returns:
//
//	*Config: The loaded configuration structure.
//	error: An error if the configuration could not be parsed.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("database.database_url", "DATABASE_URL")
	_ = viper.BindEnv("categorizer.service_url", "CATEGORIZER_SERVICE_URL")

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults initializes the default configuration values in Viper.
func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.max_upload_mb", 50)

	// Database (transaction storage is optional)
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "finsight")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")

	// Redis
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Categorizer
	viper.SetDefault("categorizer.service_url", "http://localhost:9090")
	viper.SetDefault("categorizer.timeout", 30)
	viper.SetDefault("categorizer.batch_size", 8)
	viper.SetDefault("categorizer.cache_ttl", "24h")

	// Anomaly detection
	viper.SetDefault("anomaly.z_score_threshold", 3.0)

	// Forecast
	viper.SetDefault("forecast.min_history_months", 6)
	viper.SetDefault("forecast.horizon_months", 3)
	viper.SetDefault("forecast.major_category_threshold", 0.05)
	viper.SetDefault("forecast.n_estimators", 200)
	viper.SetDefault("forecast.max_depth", 6)
	viper.SetDefault("forecast.learning_rate", 0.1)
	viper.SetDefault("forecast.model_dir", "models")
}

// validateConfig validates critical operational settings.
func validateConfig(config *Config) error {
	if config.Anomaly.ZScoreThreshold < 0 {
		return fmt.Errorf("anomaly.z_score_threshold must be >= 0, got %v", config.Anomaly.ZScoreThreshold)
	}
	if config.Forecast.MinHistoryMonths < 2 {
		return fmt.Errorf("forecast.min_history_months must be >= 2, got %d", config.Forecast.MinHistoryMonths)
	}
	if config.Forecast.HorizonMonths <= 0 {
		return fmt.Errorf("forecast.horizon_months must be positive, got %d", config.Forecast.HorizonMonths)
	}
	if config.Forecast.MajorCategoryThreshold < 0 || config.Forecast.MajorCategoryThreshold >= 1 {
		return fmt.Errorf("forecast.major_category_threshold must be in [0,1), got %v", config.Forecast.MajorCategoryThreshold)
	}
	if config.Forecast.LearningRate <= 0 || config.Forecast.LearningRate > 1 {
		return fmt.Errorf("forecast.learning_rate must be in (0,1], got %v", config.Forecast.LearningRate)
	}
	if config.Categorizer.BatchSize <= 0 {
		return fmt.Errorf("categorizer.batch_size must be positive, got %d", config.Categorizer.BatchSize)
	}
	return nil
}
