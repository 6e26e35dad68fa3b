package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Intake   IntakeConfig   `mapstructure:"intake"`
	VIN      VINConfig      `mapstructure:"vin"`
	Sourcing SourcingConfig `mapstructure:"sourcing"`
	Batch    BatchConfig    `mapstructure:"batch"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// IntakeConfig holds document intake limits
type IntakeConfig struct {
	MaxDocumentBytes    int64    `mapstructure:"max_document_bytes"`
	AllowedContentTypes []string `mapstructure:"allowed_content_types"`
}

// VINConfig holds VIN decoder configuration
type VINConfig struct {
	RemoteURL     string        `mapstructure:"remote_url"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

// VendorConfig declares one quote backend
type VendorConfig struct {
	ID       string `mapstructure:"id"`
	Endpoint string `mapstructure:"endpoint"`
}

// ScoreWeightsConfig holds the vendor scoring weights
type ScoreWeightsConfig struct {
	Price       float64 `mapstructure:"price"`
	Reliability float64 `mapstructure:"reliability"`
	LeadTime    float64 `mapstructure:"lead_time"`
	Preference  float64 `mapstructure:"preference"`
}

// SourcingConfig holds the sourcing pipeline configuration
type SourcingConfig struct {
	EnableAutomatedSourcing bool               `mapstructure:"enable_automated_sourcing"`
	EnhanceWithVINDecoding  bool               `mapstructure:"enhance_with_vin_decoding"`
	GenerateAutoPO          bool               `mapstructure:"generate_auto_po"`
	PerVendorTimeout        time.Duration      `mapstructure:"per_vendor_timeout"`
	DocumentBudget          time.Duration      `mapstructure:"document_budget"`
	ApprovalThresholdAmount float64            `mapstructure:"approval_threshold_amount"`
	BaseMarkupFraction      float64            `mapstructure:"base_markup_fraction"`
	LowConfidenceFloor      float64            `mapstructure:"low_confidence_floor"`
	LineConcurrency         int                `mapstructure:"line_concurrency"`
	PreferredVendors        []string           `mapstructure:"preferred_vendors"`
	QuoteCacheTTL           time.Duration      `mapstructure:"quote_cache_ttl"`
	ScoreWeights            ScoreWeightsConfig `mapstructure:"score_weights"`
	VendorReliability       map[string]float64 `mapstructure:"vendor_reliability"`
	Vendors                 []VendorConfig     `mapstructure:"vendors"`
}

// BatchConfig holds batch orchestration configuration
type BatchConfig struct {
	PauseOnError    bool `mapstructure:"pause_on_error"`
	FileConcurrency int  `mapstructure:"file_concurrency"`
	MaxBatchFiles   int  `mapstructure:"max_batch_files"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Override with environment variables
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/partspipe.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")

	// Intake defaults
	viper.SetDefault("intake.max_document_bytes", int64(10*1024*1024))
	viper.SetDefault("intake.allowed_content_types", []string{
		"application/xml", "text/xml",
	})

	// VIN decoder defaults
	viper.SetDefault("vin.remote_timeout", 3*time.Second)
	viper.SetDefault("vin.cache_ttl", 15*time.Minute)

	// Sourcing defaults
	viper.SetDefault("sourcing.enable_automated_sourcing", true)
	viper.SetDefault("sourcing.enhance_with_vin_decoding", true)
	viper.SetDefault("sourcing.generate_auto_po", true)
	viper.SetDefault("sourcing.per_vendor_timeout", 5*time.Second)
	viper.SetDefault("sourcing.document_budget", 60*time.Second)
	viper.SetDefault("sourcing.approval_threshold_amount", 1500.0)
	viper.SetDefault("sourcing.base_markup_fraction", 0.0)
	viper.SetDefault("sourcing.low_confidence_floor", 0.5)
	viper.SetDefault("sourcing.line_concurrency", 4)
	viper.SetDefault("sourcing.quote_cache_ttl", 5*time.Minute)
	viper.SetDefault("sourcing.score_weights.price", 0.4)
	viper.SetDefault("sourcing.score_weights.reliability", 0.3)
	viper.SetDefault("sourcing.score_weights.lead_time", 0.2)
	viper.SetDefault("sourcing.score_weights.preference", 0.1)

	// Batch defaults
	viper.SetDefault("batch.pause_on_error", false)
	viper.SetDefault("batch.file_concurrency", 1)
	viper.SetDefault("batch.max_batch_files", 100)
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Deployment-specific paths and endpoints from environment
	viper.BindEnv("database.path", "PARTSPIPE_DB_PATH")
	viper.BindEnv("vin.remote_url", "PARTSPIPE_VIN_REMOTE_URL")
	viper.BindEnv("server.port", "PARTSPIPE_PORT")
	viper.BindEnv("logger.level", "PARTSPIPE_LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Intake.MaxDocumentBytes <= 0 {
		return fmt.Errorf("intake.max_document_bytes must be positive")
	}

	if c.Sourcing.PerVendorTimeout <= 0 {
		return fmt.Errorf("sourcing.per_vendor_timeout must be positive")
	}
	if c.Sourcing.DocumentBudget < c.Sourcing.PerVendorTimeout {
		return fmt.Errorf("sourcing.document_budget must be at least sourcing.per_vendor_timeout")
	}
	if c.Sourcing.ApprovalThresholdAmount < 0 {
		return fmt.Errorf("sourcing.approval_threshold_amount must not be negative")
	}
	if c.Sourcing.BaseMarkupFraction < 0 {
		return fmt.Errorf("sourcing.base_markup_fraction must not be negative")
	}
	for _, v := range c.Sourcing.Vendors {
		if v.ID == "" {
			return fmt.Errorf("sourcing.vendors entries require an id")
		}
		if v.Endpoint == "" {
			return fmt.Errorf("sourcing.vendors[%s].endpoint is required", v.ID)
		}
	}

	if c.Batch.MaxBatchFiles <= 0 {
		return fmt.Errorf("batch.max_batch_files must be positive")
	}

	return nil
}
