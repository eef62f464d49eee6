package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr     string `envconfig:"API_ADDR" default:"127.0.0.1:8080"` // "127.0.0.1:8080" locally, ":8080" in Docker
	LogDir   string `envconfig:"LOG_DIR" default:"logs"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Store selection: Postgres if DatabaseURL is set, else SQLite if
	// SQLitePath is set, else in-memory.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	SQLitePath  string `envconfig:"SQLITE_PATH"`

	MonitorsFile      string `envconfig:"MONITORS_FILE"`
	WatchMonitorsFile bool   `envconfig:"WATCH_MONITORS_FILE" default:"true"`

	CycleSchedule       string        `envconfig:"CYCLE_SCHEDULE" default:"@every 30s"`
	MaxConcurrentChecks int           `envconfig:"MAX_CONCURRENT_CHECKS" default:"8"`
	RetryAttempts       int           `envconfig:"RETRY_ATTEMPTS" default:"1"`
	RetryBackoff        time.Duration `envconfig:"RETRY_BACKOFF" default:"300ms"`
	AlertTimeout        time.Duration `envconfig:"ALERT_TIMEOUT" default:"10s"`

	SMTP  SMTPConfig
	Kafka KafkaConfig
	API   APIConfig
}

type SMTPConfig struct {
	Email    string `envconfig:"SMTP_EMAIL"`
	Password string `envconfig:"SMTP_PASSWORD"`
	Host     string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	Port     int    `envconfig:"SMTP_PORT" default:"587"`
	FromName string `envconfig:"SMTP_FROM_NAME" default:"StatusPulse"`
}

// KafkaConfig is optional; no brokers means no event stream.
type KafkaConfig struct {
	Brokers     []string `envconfig:"KAFKA_BROKERS"`
	StatusTopic string   `envconfig:"KAFKA_STATUS_TOPIC" default:"monitor-status"`
}

type APIConfig struct {
	PublicAPIKeys  []string `envconfig:"PUBLIC_API_KEYS"`
	AdminAPIKeys   []string `envconfig:"ADMIN_API_KEYS"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
	PublicRPM      int      `envconfig:"PUBLIC_RPM" default:"120"`
	PublicBurst    int      `envconfig:"PUBLIC_BURST" default:"60"`
	AdminRPM       int      `envconfig:"ADMIN_RPM" default:"60"`
	AdminBurst     int      `envconfig:"ADMIN_BURST" default:"30"`
}

// FromEnv loads .env if present, then the process environment.
func FromEnv() (Config, error) {
	return Load(".env")
}

func Load(dotenv string) (Config, error) {
	_ = godotenv.Load(dotenv)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.MaxConcurrentChecks < 1 {
		cfg.MaxConcurrentChecks = 1
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	return cfg, nil
}

func (c SMTPConfig) Configured() bool { return c.Email != "" && c.Password != "" }
