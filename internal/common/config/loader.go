// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"offer-estimation/internal/estimation/calculation"
	"offer-estimation/internal/estimation/learning"
	"offer-estimation/internal/estimation/risk"
	"offer-estimation/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default returns the configuration used for every key the files leave out.
func Default() Config {
	return Config{
		App: AppConfig{
			Name:        "offer-estimation",
			Environment: "development",
		},
		Estimation: EstimationConfig{
			Coefficients: calculation.DefaultCoefficients(),
			Catalog: CatalogConfig{
				Source: CatalogStatic,
				Index:  "catalog",
			},
		},
		Learning: learning.DefaultConfig(),
		Risk:     risk.DefaultThresholds(),
		Workers:  map[string]WorkerConfig{},
	}
}

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml over
// it and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return decode(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile loads the first .env found from the working directory up to
// the module root.
func loadEnvFile() string {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string and list values.
// Unset variables expand to empty values so defaults and overrides apply.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		switch val := v.Get(key).(type) {
		case string:
			if hasPlaceholder(val) {
				v.Set(key, os.ExpandEnv(val))
			}
		case []interface{}:
			expanded := make([]string, 0, len(val))
			changed := false
			for _, item := range val {
				str, ok := item.(string)
				if !ok {
					continue
				}
				if hasPlaceholder(str) {
					str, changed = os.ExpandEnv(str), true
				}
				if str != "" {
					expanded = append(expanded, str)
				}
			}
			if changed {
				v.Set(key, expanded)
			}
		}
	}
}

func hasPlaceholder(s string) bool {
	return strings.Contains(s, "${") || (strings.HasPrefix(s, "$") && len(s) > 1)
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	overrides := []struct {
		target *string
		env    string
	}{
		{&cfg.Camunda.BrokerAddress, "ZEEBE_ADDRESS"},
		{&cfg.Database.Postgres.User, "DB_USER"},
		{&cfg.Database.Postgres.Password, "DB_PASSWORD"},
		{&cfg.Notifications.SNS.TopicARN, "SNS_TOPIC_ARN"},
		{&cfg.Notifications.SNS.Region, "AWS_REGION"},
		{&cfg.Observability.JaegerEndpoint, "JAEGER_ENDPOINT"},
	}
	for _, o := range overrides {
		if *o.target == "" {
			if val := os.Getenv(o.env); val != "" {
				*o.target = val
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Postgres.QueryTimeout == 0 {
		cfg.Database.Postgres.QueryTimeout = 10000
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = "estimation.db"
	}

	// Estimation defaults
	coeff := &cfg.Estimation.Coefficients
	defaults := calculation.DefaultCoefficients()
	if coeff.HourlyRate == 0 {
		coeff.HourlyRate = defaults.HourlyRate
	}
	if coeff.MaterialCostFactor == 0 {
		coeff.MaterialCostFactor = defaults.MaterialCostFactor
	}
	if len(coeff.RiskBufferTable) == 0 {
		coeff.RiskBufferTable = defaults.RiskBufferTable
	}
	if coeff.ComponentTimeFactors == nil {
		coeff.ComponentTimeFactors = map[string]float64{}
	}
	if coeff.ComplexityMultipliers == nil {
		coeff.ComplexityMultipliers = map[string]float64{}
	}
	if cfg.Estimation.Catalog.Source == "" {
		cfg.Estimation.Catalog.Source = CatalogStatic
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Observability defaults
	if cfg.Observability.SampleRatio == 0 {
		cfg.Observability.SampleRatio = 1
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig checks values that would make estimates wrong. Connection
// settings are checked by RequireWorkerInfrastructure.
func validateConfig(cfg *Config) error {
	coeff := cfg.Estimation.Coefficients
	if coeff.HourlyRate <= 0 {
		return fmt.Errorf("estimation.coefficients.hourly_rate must be positive")
	}
	if coeff.DefaultMarginPct < 0 || coeff.MinimumMarginPct < 0 {
		return fmt.Errorf("estimation.coefficients margins must not be negative")
	}
	if coeff.MinimumMarginPct > 0 && coeff.MinimumMarginPct < models.MarginFloorPct {
		return fmt.Errorf("estimation.coefficients.minimum_margin_pct must be at least %.0f", models.MarginFloorPct)
	}
	if cfg.Risk.MinimumMarginPct < models.MarginFloorPct {
		return fmt.Errorf("risk.minimum_margin_pct must be at least %.0f", models.MarginFloorPct)
	}
	for i, pct := range coeff.RiskBufferTable {
		if pct < 0 {
			return fmt.Errorf("estimation.coefficients.risk_buffer_table[%d] must not be negative", i)
		}
	}

	switch cfg.Estimation.Catalog.Source {
	case CatalogStatic, CatalogSQL, CatalogElasticsearch:
	default:
		return fmt.Errorf("estimation.catalog.source %q is not one of static, sql, elasticsearch", cfg.Estimation.Catalog.Source)
	}

	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}
	return nil
}

// RequireWorkerInfrastructure validates the settings the worker manager
// needs to connect to Zeebe and PostgreSQL.
func RequireWorkerInfrastructure(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if cfg.Estimation.Catalog.Source == CatalogElasticsearch && cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required for the elasticsearch catalog")
	}
	if cfg.Estimation.Catalog.CacheTTL > 0 && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when the catalog cache is enabled")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
