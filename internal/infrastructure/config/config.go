package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig
	Log            LogConfig
	HTTP           HTTPConfig
	ERP            ERPConfig
	FHIR           FHIRConfig
	Reconciliation ReconciliationConfig
	Pipeline       PipelineConfig
	Redis          RedisConfig
	Database       DatabaseConfig
	Ingress        IngressConfig
	Storage        StorageConfig
	Swagger        SwaggerConfig
	Telemetry      TelemetryConfig
	Retention      RetentionConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `validate:"required"`
	Env  string `validate:"oneof=development test staging production"`
	Port string `validate:"required,numeric"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64 `validate:"gt=0"`
	TrustedProxies []string
	// RequestTimeout bounds how long a sender waits for its event to be reconciled
	RequestTimeout time.Duration
}

// ERPConfig holds the Odoo JSON-RPC connection settings
type ERPConfig struct {
	URL            string `validate:"required,url"`
	Database       string `validate:"required"`
	Username       string `validate:"required"`
	Password       string `validate:"required"`
	TimeoutSeconds int    `validate:"gte=0"`
}

// FHIRConfig holds the clinical FHIR server connection settings
type FHIRConfig struct {
	URL                 string `validate:"required,url"`
	Username            string
	Password            string
	TimeoutSeconds      int `validate:"gte=0"`
	ObservationPageSize int `validate:"gte=0"`
}

// ReconciliationConfig holds the engine's mapping constants
type ReconciliationConfig struct {
	// EnrichmentCode is the observation concept copied onto new orders (weight)
	EnrichmentCode string `validate:"required"`
	// EnrichmentField is the sale.order field receiving it
	EnrichmentField string `validate:"required"`
	// AbsentSentinel is written when the patient has no such observation
	AbsentSentinel string
	// DefaultServiceUnitRef is the unit external id of quantity-less lines
	DefaultServiceUnitRef  string `validate:"required"`
	DefaultServiceQuantity string `validate:"required,numeric"`
}

// PipelineConfig holds ingest pipeline settings
type PipelineConfig struct {
	Workers    int           `validate:"gt=0"`
	QueueSize  int           `validate:"gt=0"`
	JobTimeout time.Duration `validate:"gt=0"`
	// LockTTL bounds how long a crashed instance can hold a visit's lock
	LockTTL       time.Duration `validate:"gt=0"`
	DedupeEnabled bool
	DedupeTTL     time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled       bool
	Host          string
	Port          int
	Password      string
	DB            int
	AllowFallback bool
}

// DatabaseConfig holds journal database settings
type DatabaseConfig struct {
	Driver          string `validate:"oneof=postgres sqlite"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file, ":memory:" for an ephemeral journal
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
	// MigrateOnStart applies pending postgres migrations when the server starts
	MigrateOnStart bool
}

// IngressConfig holds bearer token settings for the event endpoints
type IngressConfig struct {
	AuthEnabled bool
	JWTSecret   string
	Issuer      string
}

// StorageConfig holds S3-compatible dead-letter archive settings
type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
	Prefix       string
}

// SwaggerConfig holds Swagger documentation endpoint configuration
type SwaggerConfig struct {
	Enabled     bool
	RequireAuth bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable tracing
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	ServiceVersion    string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	// Database tracing options
	DBTraceEnabled    bool
	DBLogFullSQL      bool // dev only
	DBSlowQueryThresh time.Duration
	// Continuous profiling
	ProfilingEnabled   bool
	PyroscopeAddress   string
	ProfileTypes       []string
	SpanProfiles       bool
	QueueDepthInterval time.Duration
}

// RetentionConfig holds journal retention settings
type RetentionConfig struct {
	Enabled       bool
	Schedule      string
	RetentionDays int
	CheckInterval time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SYNC_ prefix (e.g., SYNC_ERP_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file. An empty path searches
// the working directory and /app.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/app")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
			RequestTimeout: v.GetDuration("http.request_timeout"),
		},
		ERP: ERPConfig{
			URL:            v.GetString("erp.url"),
			Database:       v.GetString("erp.database"),
			Username:       v.GetString("erp.username"),
			Password:       v.GetString("erp.password"),
			TimeoutSeconds: v.GetInt("erp.timeout_seconds"),
		},
		FHIR: FHIRConfig{
			URL:                 v.GetString("fhir.url"),
			Username:            v.GetString("fhir.username"),
			Password:            v.GetString("fhir.password"),
			TimeoutSeconds:      v.GetInt("fhir.timeout_seconds"),
			ObservationPageSize: v.GetInt("fhir.observation_page_size"),
		},
		Reconciliation: ReconciliationConfig{
			EnrichmentCode:         v.GetString("reconciliation.enrichment_code"),
			EnrichmentField:        v.GetString("reconciliation.enrichment_field"),
			AbsentSentinel:         v.GetString("reconciliation.absent_sentinel"),
			DefaultServiceUnitRef:  v.GetString("reconciliation.default_service_unit_ref"),
			DefaultServiceQuantity: v.GetString("reconciliation.default_service_quantity"),
		},
		Pipeline: PipelineConfig{
			Workers:       v.GetInt("pipeline.workers"),
			QueueSize:     v.GetInt("pipeline.queue_size"),
			JobTimeout:    v.GetDuration("pipeline.job_timeout"),
			LockTTL:       v.GetDuration("pipeline.lock_ttl"),
			DedupeEnabled: v.GetBool("pipeline.dedupe_enabled"),
			DedupeTTL:     v.GetDuration("pipeline.dedupe_ttl"),
		},
		Redis: RedisConfig{
			Enabled:       v.GetBool("redis.enabled"),
			Host:          v.GetString("redis.host"),
			Port:          v.GetInt("redis.port"),
			Password:      v.GetString("redis.password"),
			DB:            v.GetInt("redis.db"),
			AllowFallback: v.GetBool("redis.allow_fallback"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
			MigrateOnStart:  v.GetBool("database.migrate_on_start"),
		},
		Ingress: IngressConfig{
			AuthEnabled: v.GetBool("ingress.auth_enabled"),
			JWTSecret:   v.GetString("ingress.jwt_secret"),
			Issuer:      v.GetString("ingress.issuer"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			Prefix:       v.GetString("storage.prefix"),
		},
		Swagger: SwaggerConfig{
			Enabled:     v.GetBool("swagger.enabled"),
			RequireAuth: v.GetBool("swagger.require_auth"),
		},
		Telemetry: TelemetryConfig{
			Enabled:            v.GetBool("telemetry.enabled"),
			CollectorEndpoint:  v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:      v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:        v.GetString("telemetry.service_name"),
			ServiceVersion:     v.GetString("telemetry.service_version"),
			Insecure:           v.GetBool("telemetry.insecure"),
			MetricsEnabled:     v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:    v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:        v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:     v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:       v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh:  v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:   v.GetBool("telemetry.profiling_enabled"),
			PyroscopeAddress:   v.GetString("telemetry.pyroscope_address"),
			ProfileTypes:       v.GetStringSlice("telemetry.profile_types"),
			SpanProfiles:       v.GetBool("telemetry.span_profiles"),
			QueueDepthInterval: v.GetDuration("telemetry.queue_depth_interval"),
		},
		Retention: RetentionConfig{
			Enabled:       v.GetBool("retention.enabled"),
			Schedule:      v.GetString("retention.schedule"),
			RetentionDays: v.GetInt("retention.retention_days"),
			CheckInterval: v.GetDuration("retention.check_interval"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers built-in defaults. Registering every key also lets
// AutomaticEnv resolve keys that appear in no config file.
func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"app.name": "clinicsync",
		"app.env":  "development",
		"app.port": "8080",

		"log.level":  "info",
		"log.format": "console",
		"log.output": "stdout",

		"http.read_timeout":     15 * time.Second,
		"http.write_timeout":    60 * time.Second,
		"http.idle_timeout":     60 * time.Second,
		"http.max_header_bytes": 1 << 20,
		"http.max_body_size":    10 << 20,
		"http.trusted_proxies":  []string{},
		"http.request_timeout":  50 * time.Second,

		"erp.url":             "",
		"erp.database":        "",
		"erp.username":        "",
		"erp.password":        "",
		"erp.timeout_seconds": 30,

		"fhir.url":                   "",
		"fhir.username":              "",
		"fhir.password":              "",
		"fhir.timeout_seconds":       30,
		"fhir.observation_page_size": 10,

		"reconciliation.enrichment_code":          "5089AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		"reconciliation.enrichment_field":         "partner_weight",
		"reconciliation.absent_sentinel":          "false",
		"reconciliation.default_service_unit_ref": "uom.product_uom_unit",
		"reconciliation.default_service_quantity": "1",

		"pipeline.workers":        8,
		"pipeline.queue_size":     64,
		"pipeline.job_timeout":    2 * time.Minute,
		"pipeline.lock_ttl":       2 * time.Minute,
		"pipeline.dedupe_enabled": true,
		"pipeline.dedupe_ttl":     24 * time.Hour,

		"redis.enabled":        false,
		"redis.host":           "localhost",
		"redis.port":           6379,
		"redis.password":       "",
		"redis.db":             0,
		"redis.allow_fallback": true,

		"database.driver":             "sqlite",
		"database.host":               "localhost",
		"database.port":               5432,
		"database.user":               "postgres",
		"database.password":           "",
		"database.dbname":             "clinicsync",
		"database.sslmode":            "disable",
		"database.path":               "clinicsync.db",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  60,
		"database.conn_max_idle_time": 30,
		"database.log_level":          "warn",
		"database.migrate_on_start":   false,

		"ingress.auth_enabled": false,
		"ingress.jwt_secret":   "",
		"ingress.issuer":       "openmrs-atomfeed",

		"storage.enabled":        false,
		"storage.endpoint":       "http://localhost:9000",
		"storage.region":         "us-east-1",
		"storage.bucket":         "clinicsync",
		"storage.access_key":     "",
		"storage.secret_key":     "",
		"storage.use_ssl":        false,
		"storage.use_path_style": true,
		"storage.prefix":         "dead-letter",

		"swagger.enabled":      true,
		"swagger.require_auth": false,

		"telemetry.enabled":                 false,
		"telemetry.collector_endpoint":      "localhost:4317",
		"telemetry.sampling_ratio":          1.0,
		"telemetry.service_name":            "clinicsync",
		"telemetry.service_version":         "dev",
		"telemetry.insecure":                false,
		"telemetry.metrics_enabled":         false,
		"telemetry.metrics_interval":        60 * time.Second,
		"telemetry.logs_enabled":            false,
		"telemetry.db_trace_enabled":        false,
		"telemetry.db_log_full_sql":         false,
		"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
		"telemetry.profiling_enabled":       false,
		"telemetry.pyroscope_address":       "http://localhost:4040",
		"telemetry.profile_types":           []string{},
		"telemetry.span_profiles":           false,
		"telemetry.queue_depth_interval":    15 * time.Second,

		"retention.enabled":        true,
		"retention.schedule":       "0 3 * * *",
		"retention.retention_days": 90,
		"retention.check_interval": time.Minute,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

var validate = validator.New()

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid configuration: %s failed on '%s'", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Database.Driver == "postgres" {
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be positive")
		}
		if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
			return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
				c.Database.MaxIdleConns, c.Database.MaxOpenConns)
		}
	}

	if c.Ingress.AuthEnabled && len(c.Ingress.JWTSecret) < 32 {
		return fmt.Errorf("ingress.jwt_secret must be at least 32 characters when ingress auth is enabled")
	}

	if c.Storage.Enabled && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		return fmt.Errorf("storage.access_key and storage.secret_key are required when storage is enabled")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		if !c.Ingress.AuthEnabled {
			return fmt.Errorf("ingress.auth_enabled must be true in production")
		}
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("database.driver must be postgres in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Redis.Enabled && c.Redis.AllowFallback {
			return fmt.Errorf("redis.allow_fallback must be false in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent patient data in traces")
		}
	}

	return nil
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
