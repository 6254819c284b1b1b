package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Notify    NotifyConfig
	Admission AdmissionConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Topics  TopicConfig
	Enabled bool
}

type TopicConfig struct {
	VisitCheckedIn   string
	OverrideRecorded string
	DiscountIssued   string
}

// NotifyConfig points at the external notification collaborator. Calls are
// bounded by Timeout and never fatal to an admission.
type NotifyConfig struct {
	BaseURL string
	Timeout time.Duration
}

type AdmissionConfig struct {
	// OverrideSecret is the server-held credential compared during override
	// authorization. Never logged or echoed back.
	OverrideSecret string
	// Local time after which no check-in is allowed.
	CutoffHour   int
	CutoffMinute int
	// VisitDuration is the fixed expiry applied at check-in.
	VisitDuration time.Duration
	// QRTokenTTL is the lifetime of invitation QR tokens.
	QRTokenTTL time.Duration
	// Bootstrap defaults for the policy row when none exists yet.
	DefaultGuestMonthlyLimit   int
	DefaultHostConcurrentLimit int
	AutoMigrate                bool
	MigrationsDir              string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "visitpass_user"),
			Password:     getEnv("DB_PASSWORD", "visitpass_pass"),
			Database:     getEnv("DB_NAME", "visitpass"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				VisitCheckedIn:   getEnv("KAFKA_TOPIC_CHECKED_IN", "visitpass.visits.checked_in"),
				OverrideRecorded: getEnv("KAFKA_TOPIC_OVERRIDE", "visitpass.visits.override_recorded"),
				DiscountIssued:   getEnv("KAFKA_TOPIC_DISCOUNT", "visitpass.discounts.issued"),
			},
		},
		Notify: NotifyConfig{
			BaseURL: getEnv("NOTIFY_SERVICE_URL", "http://localhost:8090"),
			Timeout: time.Duration(getEnvInt("NOTIFY_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Admission: AdmissionConfig{
			OverrideSecret:             getEnv("OVERRIDE_SECRET", ""),
			CutoffHour:                 getEnvInt("CHECKIN_CUTOFF_HOUR", 23),
			CutoffMinute:               getEnvInt("CHECKIN_CUTOFF_MINUTE", 59),
			VisitDuration:              time.Duration(getEnvInt("VISIT_DURATION_HOURS", 12)) * time.Hour,
			QRTokenTTL:                 time.Duration(getEnvInt("QR_TOKEN_TTL_HOURS", 48)) * time.Hour,
			DefaultGuestMonthlyLimit:   getEnvInt("DEFAULT_GUEST_MONTHLY_LIMIT", 3),
			DefaultHostConcurrentLimit: getEnvInt("DEFAULT_HOST_CONCURRENT_LIMIT", 3),
			AutoMigrate:                getEnvBool("AUTO_MIGRATE", false),
			MigrationsDir:              getEnv("MIGRATIONS_DIR", "./migrations"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
