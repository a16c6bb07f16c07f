// Package config provides configuration loading and management for the application.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	Deribit    DeribitConfig    `yaml:"deribit"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	AWS        AWSConfig        `yaml:"aws"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Signing    SigningConfig    `yaml:"signing"`
	Guard      GuardConfig      `yaml:"guard"`
	Validation ValidationConfig `yaml:"validation"`
}

// DeribitConfig controls the upstream API client
type DeribitConfig struct {
	// Base URL of the public JSON-RPC over HTTP API
	BaseURL string `yaml:"base_url"`

	// Per-request deadlines; the book summary is much larger than the index price
	PriceTimeout     time.Duration `yaml:"price_timeout"`
	ContractsTimeout time.Duration `yaml:"contracts_timeout"`

	// Transport retries for 5xx and connection errors
	RetryMax int `yaml:"retry_max"`

	// Client-side request pacing
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// OutputConfig names the local artifacts
type OutputConfig struct {
	Dir        string `yaml:"dir"`
	JSONFile   string `yaml:"json_file"`
	TextFile   string `yaml:"text_file"`
	CSVEnabled bool   `yaml:"csv_enabled"`
	CSVFile    string `yaml:"csv_file"`
}

// LoggingConfig mirrors logger.Options
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// TelemetryConfig covers tracing and run metrics
type TelemetryConfig struct {
	// OpenTelemetry endpoint for traces; empty disables tracing
	OtelEndpoint string `yaml:"otel_endpoint"`

	// node_exporter textfile target for run metrics
	MetricsTextfile string `yaml:"metrics_textfile"`

	// Prometheus Pushgateway URL
	PushgatewayURL string `yaml:"pushgateway_url"`

	CloudWatchEnabled   bool   `yaml:"cloudwatch_enabled"`
	CloudWatchNamespace string `yaml:"cloudwatch_namespace"`
}

// AWSConfig is shared by the S3 and CloudWatch sinks
type AWSConfig struct {
	Region             string `yaml:"region"`
	AccessKeyID        string `yaml:"access_key_id"`
	SecretAccessKey    string `yaml:"secret_access_key"`
	S3Enabled          bool   `yaml:"s3_enabled"`
	S3Bucket           string `yaml:"s3_bucket"`
	S3Prefix           string `yaml:"s3_prefix"`
	S3Endpoint         string `yaml:"s3_endpoint"`
	S3PathStyle        bool   `yaml:"s3_path_style"`
	ParquetCompression string `yaml:"parquet_compression"`
}

// WebhookConfig enables POSTing each report to an HTTP endpoint
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// SigningConfig controls the detached report signature
type SigningConfig struct {
	Enabled bool `yaml:"enabled"`

	// Hex-encoded secp256k1 private key; a throwaway key is generated when empty
	PrivateKey string `yaml:"private_key"`
}

// GuardConfig mirrors guard.Thresholds
type GuardConfig struct {
	MinContracts   int     `yaml:"min_contracts"`
	MinExpiries    int     `yaml:"min_expiries"`
	MaxPriceChange float64 `yaml:"max_price_change"`
}

// ValidationConfig mirrors validation.ValidationOptions
type ValidationConfig struct {
	DropExpired     bool    `yaml:"drop_expired"`
	MinOpenInterest float64 `yaml:"min_open_interest"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Deribit: DeribitConfig{
			BaseURL:          "https://www.deribit.com/api/v2",
			PriceTimeout:     10 * time.Second,
			ContractsTimeout: 15 * time.Second,
			RetryMax:         3,
			RateLimitRPS:     5,
			RateLimitBurst:   1,
		},
		Output: OutputConfig{
			Dir:      "data",
			JSONFile: "maxpain_longshort.json",
			TextFile: "tradingview_format.txt",
			CSVFile:  "maxpain_longshort.csv",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Telemetry: TelemetryConfig{
			CloudWatchNamespace: "BTCMaxPain",
		},
		AWS: AWSConfig{
			Region:             "us-east-1",
			S3Prefix:           "maxpain",
			ParquetCompression: "snappy",
		},
		Webhook: WebhookConfig{
			Timeout: 10 * time.Second,
		},
		Guard: GuardConfig{
			MinContracts: 1,
			MinExpiries:  1,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields with environment variables that are set.
func (c *Config) ApplyEnv() {
	c.Deribit.BaseURL = GetEnvOrDefault("DERIBIT_BASE_URL", c.Deribit.BaseURL)
	c.Deribit.PriceTimeout = GetEnvAsDuration("PRICE_TIMEOUT", c.Deribit.PriceTimeout)
	c.Deribit.ContractsTimeout = GetEnvAsDuration("CONTRACTS_TIMEOUT", c.Deribit.ContractsTimeout)
	c.Deribit.RetryMax = GetEnvAsInt("HTTP_RETRY_MAX", c.Deribit.RetryMax)
	c.Deribit.RateLimitRPS = GetEnvAsFloat("RATE_LIMIT_RPS", c.Deribit.RateLimitRPS)
	c.Deribit.RateLimitBurst = GetEnvAsInt("RATE_LIMIT_BURST", c.Deribit.RateLimitBurst)

	c.Output.Dir = GetEnvOrDefault("OUTPUT_DIR", c.Output.Dir)
	c.Output.JSONFile = GetEnvOrDefault("JSON_FILE", c.Output.JSONFile)
	c.Output.TextFile = GetEnvOrDefault("TEXT_FILE", c.Output.TextFile)
	c.Output.CSVEnabled = GetEnvAsBool("CSV_ENABLED", c.Output.CSVEnabled)
	c.Output.CSVFile = GetEnvOrDefault("CSV_FILE", c.Output.CSVFile)

	c.Logging.Level = GetEnvOrDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = GetEnvOrDefault("LOG_FORMAT", c.Logging.Format)
	c.Logging.Output = GetEnvOrDefault("LOG_OUTPUT", c.Logging.Output)
	c.Logging.MaxAge = GetEnvAsInt("LOG_MAX_AGE", c.Logging.MaxAge)

	c.Telemetry.OtelEndpoint = GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.OtelEndpoint)
	c.Telemetry.MetricsTextfile = GetEnvOrDefault("METRICS_TEXTFILE", c.Telemetry.MetricsTextfile)
	c.Telemetry.PushgatewayURL = GetEnvOrDefault("PUSHGATEWAY_URL", c.Telemetry.PushgatewayURL)
	c.Telemetry.CloudWatchEnabled = GetEnvAsBool("CLOUDWATCH_ENABLED", c.Telemetry.CloudWatchEnabled)
	c.Telemetry.CloudWatchNamespace = GetEnvOrDefault("CLOUDWATCH_NAMESPACE", c.Telemetry.CloudWatchNamespace)

	c.AWS.Region = GetEnvOrDefault("AWS_REGION", c.AWS.Region)
	c.AWS.AccessKeyID = GetEnvOrDefault("AWS_ACCESS_KEY_ID", c.AWS.AccessKeyID)
	c.AWS.SecretAccessKey = GetEnvOrDefault("AWS_SECRET_ACCESS_KEY", c.AWS.SecretAccessKey)
	c.AWS.S3Enabled = GetEnvAsBool("S3_ENABLED", c.AWS.S3Enabled)
	c.AWS.S3Bucket = GetEnvOrDefault("S3_BUCKET", c.AWS.S3Bucket)
	c.AWS.S3Prefix = GetEnvOrDefault("S3_PREFIX", c.AWS.S3Prefix)
	c.AWS.S3Endpoint = GetEnvOrDefault("S3_ENDPOINT", c.AWS.S3Endpoint)
	c.AWS.S3PathStyle = GetEnvAsBool("S3_PATH_STYLE", c.AWS.S3PathStyle)
	c.AWS.ParquetCompression = strings.ToLower(GetEnvOrDefault("PARQUET_COMPRESSION", c.AWS.ParquetCompression))

	c.Webhook.URL = GetEnvOrDefault("WEBHOOK_URL", c.Webhook.URL)
	c.Webhook.APIKey = GetEnvOrDefault("WEBHOOK_API_KEY", c.Webhook.APIKey)
	c.Webhook.Timeout = GetEnvAsDuration("WEBHOOK_TIMEOUT", c.Webhook.Timeout)

	c.Signing.Enabled = GetEnvAsBool("SIGNING_ENABLED", c.Signing.Enabled)
	c.Signing.PrivateKey = GetEnvOrDefault("SIGNING_KEY", c.Signing.PrivateKey)

	c.Guard.MinContracts = GetEnvAsInt("GUARD_MIN_CONTRACTS", c.Guard.MinContracts)
	c.Guard.MinExpiries = GetEnvAsInt("GUARD_MIN_EXPIRIES", c.Guard.MinExpiries)
	c.Guard.MaxPriceChange = GetEnvAsFloat("GUARD_MAX_PRICE_CHANGE", c.Guard.MaxPriceChange)

	c.Validation.DropExpired = GetEnvAsBool("VALIDATION_DROP_EXPIRED", c.Validation.DropExpired)
	c.Validation.MinOpenInterest = GetEnvAsFloat("VALIDATION_MIN_OPEN_INTEREST", c.Validation.MinOpenInterest)
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	u, err := url.Parse(c.Deribit.BaseURL)
	if c.Deribit.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("deribit base_url %q is not an absolute URL", c.Deribit.BaseURL)
	}
	if c.Deribit.PriceTimeout <= 0 || c.Deribit.ContractsTimeout <= 0 {
		return fmt.Errorf("deribit timeouts must be positive")
	}
	if c.Deribit.RetryMax < 0 {
		return fmt.Errorf("deribit retry_max cannot be negative")
	}
	if c.Deribit.RateLimitRPS < 0 || c.Deribit.RateLimitBurst < 0 {
		return fmt.Errorf("deribit rate limit cannot be negative")
	}
	if c.Output.Dir == "" || c.Output.JSONFile == "" || c.Output.TextFile == "" {
		return fmt.Errorf("output dir, json_file and text_file are required")
	}
	if c.Output.CSVEnabled && c.Output.CSVFile == "" {
		return fmt.Errorf("output csv_file is required when csv is enabled")
	}
	switch c.AWS.ParquetCompression {
	case "snappy", "gzip", "none", "":
	default:
		return fmt.Errorf("unknown parquet compression %q", c.AWS.ParquetCompression)
	}
	if c.AWS.S3Enabled && c.AWS.S3Bucket == "" {
		return fmt.Errorf("s3 is enabled but no bucket is configured")
	}
	if (c.AWS.S3Enabled || c.Telemetry.CloudWatchEnabled) && c.AWS.Region == "" {
		return fmt.Errorf("aws region is required for s3 and cloudwatch")
	}
	if c.Webhook.URL != "" && c.Webhook.Timeout <= 0 {
		return fmt.Errorf("webhook timeout must be positive")
	}
	if c.Guard.MinContracts < 0 || c.Guard.MinExpiries < 0 || c.Guard.MaxPriceChange < 0 {
		return fmt.Errorf("guard thresholds cannot be negative")
	}
	return nil
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists && value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		} else {
			logrus.Warnf("Invalid integer in %s: %v, using default: %v", key, err, defaultValue)
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists && value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		} else {
			logrus.Warnf("Invalid float in %s: %v, using default: %v", key, err, defaultValue)
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists && value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		} else {
			logrus.Warnf("Invalid duration in %s: %v, using default: %v", key, err, defaultValue)
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		} else {
			logrus.Warnf("Invalid boolean in %s: %v, using default: %v", key, err, defaultValue)
		}
	}
	return defaultValue
}
