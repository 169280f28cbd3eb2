package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Log        LogConfig
	Gateway    GatewayConfig
	Classifier ClassifierConfig
	Bot        BotConfig
	Alerts     AlertsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig guards the admin/ops API. Tokens are issued out of band.
type JWTConfig struct {
	Secret string
}

type LogConfig struct {
	Level  string
	Format string
}

// GatewayConfig points at the WhatsApp message gateway used for outbound sends.
type GatewayConfig struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	WebhookToken string
}

// ClassifierConfig points at the external timetable-image extraction service.
type ClassifierConfig struct {
	BaseURL string
	Timeout time.Duration
}

// BotConfig carries the attendance-lifecycle timing knobs.
type BotConfig struct {
	ReminderLead       time.Duration
	ConfirmationDelay  time.Duration
	OverdueAfter       time.Duration
	EvaluationWindow   time.Duration
	SessionTTL         time.Duration
	LowAttendanceBar   int
	AlertHour          int
	SummaryCacheTTL    time.Duration
}

// AlertsConfig sizes the alert delivery worker pool.
type AlertsConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Gateway = GatewayConfig{
		BaseURL:      v.GetString("GATEWAY_BASE_URL"),
		Token:        v.GetString("GATEWAY_TOKEN"),
		Timeout:      parseDuration(v.GetString("GATEWAY_TIMEOUT"), 10*time.Second),
		WebhookToken: v.GetString("GATEWAY_WEBHOOK_TOKEN"),
	}

	cfg.Classifier = ClassifierConfig{
		BaseURL: v.GetString("CLASSIFIER_BASE_URL"),
		Timeout: parseDuration(v.GetString("CLASSIFIER_TIMEOUT"), 30*time.Second),
	}

	cfg.Bot = BotConfig{
		ReminderLead:      parseDuration(v.GetString("BOT_REMINDER_LEAD"), 10*time.Minute),
		ConfirmationDelay: parseDuration(v.GetString("BOT_CONFIRMATION_DELAY"), 10*time.Minute),
		OverdueAfter:      parseDuration(v.GetString("BOT_OVERDUE_AFTER"), 2*time.Hour),
		EvaluationWindow:  parseDuration(v.GetString("BOT_EVALUATION_WINDOW"), time.Minute),
		SessionTTL:        parseDuration(v.GetString("BOT_SESSION_TTL"), 3*time.Minute),
		LowAttendanceBar:  v.GetInt("BOT_LOW_ATTENDANCE_THRESHOLD"),
		AlertHour:         v.GetInt("BOT_ALERT_HOUR"),
		SummaryCacheTTL:   parseDuration(v.GetString("BOT_SUMMARY_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Alerts = AlertsConfig{
		Workers:    v.GetInt("ALERTS_WORKERS"),
		MaxRetries: v.GetInt("ALERTS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("ALERTS_RETRY_DELAY"), 5*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "attendance_bot")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GATEWAY_BASE_URL", "http://localhost:3000")
	v.SetDefault("GATEWAY_TOKEN", "")
	v.SetDefault("GATEWAY_TIMEOUT", "10s")
	v.SetDefault("GATEWAY_WEBHOOK_TOKEN", "")

	v.SetDefault("CLASSIFIER_BASE_URL", "")
	v.SetDefault("CLASSIFIER_TIMEOUT", "30s")

	v.SetDefault("BOT_REMINDER_LEAD", "10m")
	v.SetDefault("BOT_CONFIRMATION_DELAY", "10m")
	v.SetDefault("BOT_OVERDUE_AFTER", "2h")
	v.SetDefault("BOT_EVALUATION_WINDOW", "1m")
	v.SetDefault("BOT_SESSION_TTL", "3m")
	v.SetDefault("BOT_LOW_ATTENDANCE_THRESHOLD", 75)
	v.SetDefault("BOT_ALERT_HOUR", 18)
	v.SetDefault("BOT_SUMMARY_CACHE_TTL", "10m")

	v.SetDefault("ALERTS_WORKERS", 2)
	v.SetDefault("ALERTS_MAX_RETRIES", 3)
	v.SetDefault("ALERTS_RETRY_DELAY", "5s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
