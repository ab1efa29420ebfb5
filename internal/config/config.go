package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	MarketData MarketDataConfig
	FX         FXConfig
	SMTP       SMTPConfig
	Scheduler  SchedulerConfig
	Log        LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka configuration. Empty Brokers disables events.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// RedisConfig holds the exchange-rate cache connection. Empty Addr uses an in-memory cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MarketDataConfig holds quote provider settings
type MarketDataConfig struct {
	BaseURL          string
	APIKey           string
	BenchmarkSymbol  string
	TreasuryMaturity string
	Timeout          time.Duration
	MaxRetries       int
}

// FXConfig holds currency converter settings
type FXConfig struct {
	BaseURL           string
	ReportingCurrency string
	CacheTTL          time.Duration
	Timeout           time.Duration
}

// SMTPConfig holds email relay settings. Empty Username selects the dry-run sender.
type SMTPConfig struct {
	Host        string
	Port        string
	Username    string
	AppPassword string
	From        string
}

// SchedulerConfig holds the recomputation loop settings
type SchedulerConfig struct {
	IntervalMinutes float64
	// Cron, when set, replaces the fixed interval with a cron expression.
	Cron            string
	AlertCooldown   time.Duration
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Pretty bool
}

// DefaultIntervalMinutes is used when the configured interval is missing or not positive.
const DefaultIntervalMinutes = 1.0

// Load reads configuration from a .env file (if present) and environment variables
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "portfolio"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "portfolio-events"),
			GroupID: getEnv("KAFKA_GROUP_ID", "portfolio-worker"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		MarketData: MarketDataConfig{
			BaseURL:          getEnv("MARKETDATA_BASE_URL", "https://www.alphavantage.co/query"),
			APIKey:           os.Getenv("MARKETDATA_API_KEY"),
			BenchmarkSymbol:  getEnv("MARKETDATA_BENCHMARK", "ACWI"),
			TreasuryMaturity: getEnv("MARKETDATA_TREASURY_MATURITY", "10year"),
			Timeout:          getEnvAsDuration("MARKETDATA_TIMEOUT", 10*time.Second),
			MaxRetries:       getEnvAsInt("MARKETDATA_MAX_RETRIES", 3),
		},
		FX: FXConfig{
			BaseURL:           getEnv("FX_BASE_URL", "https://api.exchangerate-api.com/v4/latest"),
			ReportingCurrency: strings.ToUpper(getEnv("FX_REPORTING_CURRENCY", "HKD")),
			CacheTTL:          getEnvAsDuration("FX_CACHE_TTL", time.Hour),
			Timeout:           getEnvAsDuration("FX_TIMEOUT", 10*time.Second),
		},
		SMTP: SMTPConfig{
			Host:        getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:        getEnv("SMTP_PORT", "587"),
			Username:    os.Getenv("SMTP_USERNAME"),
			AppPassword: os.Getenv("APP_PASSWORD"),
			From:        os.Getenv("SMTP_FROM"),
		},
		Scheduler: SchedulerConfig{
			IntervalMinutes: ParseInterval(os.Getenv("SCHEDULER_INTERVAL_MINUTES")),
			Cron:            strings.TrimSpace(os.Getenv("SCHEDULER_CRON")),
			AlertCooldown:   getEnvAsDuration("ALERT_COOLDOWN", 0),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvAsBool("LOG_PRETTY", false),
		},
	}
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.DBName == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.MarketData.BaseURL == "" {
		errs = append(errs, errors.New("MARKETDATA_BASE_URL is required"))
	}
	if c.MarketData.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("MARKETDATA_TIMEOUT must be positive, got %s", c.MarketData.Timeout))
	}
	if c.MarketData.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("MARKETDATA_MAX_RETRIES must not be negative, got %d", c.MarketData.MaxRetries))
	}
	if c.FX.BaseURL == "" {
		errs = append(errs, errors.New("FX_BASE_URL is required"))
	}
	if len(c.FX.ReportingCurrency) != 3 {
		errs = append(errs, fmt.Errorf("FX_REPORTING_CURRENCY must be a 3-letter code, got %q", c.FX.ReportingCurrency))
	}
	if c.FX.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("FX_TIMEOUT must be positive, got %s", c.FX.Timeout))
	}
	if c.Scheduler.IntervalMinutes <= 0 {
		errs = append(errs, fmt.Errorf("scheduler interval must be positive, got %v", c.Scheduler.IntervalMinutes))
	}
	if c.Scheduler.AlertCooldown < 0 {
		errs = append(errs, fmt.Errorf("ALERT_COOLDOWN must not be negative, got %s", c.Scheduler.AlertCooldown))
	}
	if c.SMTP.Username != "" && c.SMTP.AppPassword == "" {
		errs = append(errs, errors.New("APP_PASSWORD is required when SMTP_USERNAME is set"))
	}
	return errors.Join(errs...)
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// SenderAddress is the From address, falling back to the SMTP login.
func (s *SMTPConfig) SenderAddress() string {
	if s.From != "" {
		return s.From
	}
	return s.Username
}

// Interval converts the configured minutes to a duration.
func (s *SchedulerConfig) Interval() time.Duration {
	minutes := s.IntervalMinutes
	if minutes <= 0 {
		minutes = DefaultIntervalMinutes
	}
	return time.Duration(minutes * float64(time.Minute))
}

// ParseInterval reads an interval in minutes. Empty, malformed or non-positive
// input yields DefaultIntervalMinutes.
func ParseInterval(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultIntervalMinutes
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return DefaultIntervalMinutes
	}
	return v
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
