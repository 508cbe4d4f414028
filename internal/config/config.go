package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string
	NodeID      int64

	// CORSAllowedOrigins is a comma separated origin allowlist used in production.
	CORSAllowedOrigins string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Storage StorageConfig
	Redis   RedisConfig
	Ingest  IngestConfig
	Push    MetricsPushConfig

	// StrictInvariants turns balance clamping into ErrInvariantViolation.
	StrictInvariants bool
}

type StorageConfig struct {
	Driver          string
	Dir             string
	GCSBucket       string
	GCSCredentials  string
	GCSObjectPrefix string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// MetricsPushConfig configures pushing the process metrics to a Prometheus
// remote_write endpoint or a Pushgateway. An empty Exporter disables it.
type MetricsPushConfig struct {
	Exporter  string
	Endpoint  string
	AuthToken string
	Interval  time.Duration
}

type IngestConfig struct {
	Workers       int
	QueueSize     int
	JobTimeout    time.Duration
	SweepInterval time.Duration
	StuckAfter    time.Duration
	LockTTL       time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	cfg := Config{
		AppName:            getenv("APP_NAME", "royalti"),
		AppVersion:         getenv("APP_VERSION", "0.1.0"),
		Environment:        environment,
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		LogLevel:           strings.ToLower(getenv("LOG_LEVEL", "info")),
		NodeID:             int64(getenvInt("SNOWFLAKE_NODE", 1)),
		CORSAllowedOrigins: getenv("CORS_ALLOWED_ORIGINS", ""),
		OTLPEndpoint:       getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:             getenv("DB_TYPE", "postgres"),
		DBHost:             getenv("DB_HOST", "localhost"),
		DBPort:             getenv("DB_PORT", "5432"),
		DBName:             getenv("DB_NAME", "royalti"),
		DBUser:             getenv("DB_USER", "postgres"),
		DBPassword:         getenv("DB_PASSWORD", ""),
		DBSSLMode:          getenv("DB_SSL_MODE", "disable"),
		DBMaxIdleConn:      getenvInt("DB_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:      getenvInt("DB_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime:  getenvInt("DB_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime:  getenvInt("DB_CONN_MAX_IDLE_TIME", 300),
		Storage: StorageConfig{
			Driver:          strings.ToLower(getenv("STORAGE_DRIVER", "local")),
			Dir:             getenv("STORAGE_DIR", "./data/uploads"),
			GCSBucket:       strings.TrimSpace(getenv("GCS_BUCKET", "")),
			GCSCredentials:  strings.TrimSpace(getenv("GCS_CREDENTIALS_FILE", "")),
			GCSObjectPrefix: strings.Trim(getenv("GCS_OBJECT_PREFIX", "reports"), "/"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Ingest: IngestConfig{
			Workers:       getenvInt("INGEST_WORKERS", 2),
			QueueSize:     getenvInt("INGEST_QUEUE_SIZE", 256),
			JobTimeout:    getenvDuration("INGEST_JOB_TIMEOUT", 15*time.Minute),
			SweepInterval: getenvDuration("INGEST_SWEEP_INTERVAL", time.Minute),
			StuckAfter:    getenvDuration("INGEST_STUCK_AFTER", 30*time.Minute),
			LockTTL:       getenvDuration("INGEST_LOCK_TTL", 20*time.Minute),
		},
		Push: MetricsPushConfig{
			Exporter:  strings.ToLower(strings.TrimSpace(getenv("METRICS_PUSH_EXPORTER", ""))),
			Endpoint:  strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("METRICS_PUSH_AUTH_TOKEN", "")),
			Interval:  getenvDuration("METRICS_PUSH_INTERVAL", time.Minute),
		},
		StrictInvariants: getenvBool("STRICT_INVARIANTS", environment != "production"),
	}

	return cfg
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
