package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server    Server    `mapstructure:"server"`
	Cache     Cache     `mapstructure:"cache"`
	Fetcher   Fetcher   `mapstructure:"fetcher"`
	Render    Render    `mapstructure:"render"`
	Watermark Watermark `mapstructure:"watermark"`
	Storage   Storage   `mapstructure:"storage"`
	Database  Database  `mapstructure:"database"`
	Kafka     Kafka     `mapstructure:"kafka"`
	Retry     Retry     `mapstructure:"retry"`
	Metrics   Metrics   `mapstructure:"metrics"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort string `mapstructure:"http_port"` // HTTP address to listen on, e.g. ":3000"
}

// Cache holds source cache configuration.
type Cache struct {
	Capacity int `mapstructure:"capacity"` // Maximum number of cached sources
}

// Fetcher holds configuration for retrieving source images.
type Fetcher struct {
	Timeout      time.Duration `mapstructure:"timeout"`        // Per-fetch timeout
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"` // Largest accepted source
	UserAgent    string        `mapstructure:"user_agent"`
}

// Render holds transform engine configuration.
type Render struct {
	DefaultFormat   string `mapstructure:"default_format"`    // png, jpeg or gif
	MaxDimension    uint   `mapstructure:"max_dimension"`     // Largest width/height accepted by resize
	MaxSourcePixels int64  `mapstructure:"max_source_pixels"` // Largest width*height of a source image
	JPEGQuality     int    `mapstructure:"jpeg_quality"`
}

// Watermark holds the watermark image location.
type Watermark struct {
	Path string `mapstructure:"path"` // Empty selects the built-in badge
}

// Storage holds configuration for the object store serving s3:// sources.
type Storage struct {
	Enabled    bool   `mapstructure:"enabled"`
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"` // Default bucket for s3:///key
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Database holds the render journal database configuration.
type Database struct {
	Enabled bool           `mapstructure:"enabled"`
	Master  DatabaseNode   `mapstructure:"master"`
	Slaves  []DatabaseNode `mapstructure:"slaves"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	RetentionDays   int           `mapstructure:"retention_days"` // 0 keeps records forever
}

// DatabaseNode holds connection parameters for a single database node.
type DatabaseNode struct {
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"ssl_mode"`
}

// Kafka holds configuration for the prewarm queue.
type Kafka struct {
	Enabled bool     `mapstructure:"enabled"`
	GroupID string   `mapstructure:"group_id"` // Consumer group ID
	Topic   string   `mapstructure:"topic"`    // Kafka topic name
	Brokers []string `mapstructure:"brokers"`  // List of Kafka broker addresses
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// Metrics holds the Prometheus endpoint configuration.
type Metrics struct {
	Addr string `mapstructure:"addr"` // Empty disables the metrics listener
}

// DSN returns the PostgreSQL DSN string for connecting to this database node.
func (n DatabaseNode) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		n.User, n.Pass, n.Host, n.Port, n.Name, n.SSLMode,
	)
}

// setDefaults registers fallback values for optional settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", ":3000")
	v.SetDefault("cache.capacity", 10240)
	v.SetDefault("fetcher.timeout", 10*time.Second)
	v.SetDefault("fetcher.max_body_bytes", 32<<20)
	v.SetDefault("render.default_format", "png")
	v.SetDefault("render.max_dimension", 8192)
	v.SetDefault("render.max_source_pixels", 50_000_000)
	v.SetDefault("render.jpeg_quality", 90)
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 100*time.Millisecond)
	v.SetDefault("retry.backoff", 2.0)
}

// bindEnv binds secrets and deployment-specific settings to environment variables.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"database.master.host": "DB_HOST",
		"database.master.port": "DB_PORT",
		"database.master.user": "DB_USER",
		"database.master.pass": "DB_PASSWORD",
		"database.master.name": "DB_NAME",
		"storage.access_key":   "STORAGE_ACCESS_KEY",
		"storage.secret_key":   "STORAGE_SECRET_KEY",
		"cache.capacity":       "CACHE_CAPACITY",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	return nil
}

// Load reads the configuration from the YAML file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration file cannot be loaded or unmarshaled.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}
