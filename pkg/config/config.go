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
	CORS       CORSConfig
	Log        LogConfig
	Scheduling SchedulingConfig
	Exports    ExportsConfig
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

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig governs the availability and booking engine.
type SchedulingConfig struct {
	// DefaultCapacity is the lesson capacity assumed for any period an
	// instructor has not explicitly configured.
	DefaultCapacity int
	// InstructorHorizonMonths bounds how far ahead instructors may configure
	// their calendar.
	InstructorHorizonMonths int
	// StudentHorizonMonths bounds how far ahead students may book.
	StudentHorizonMonths int
	// CompletionSweepInterval is how often confirmed bookings whose lesson
	// date has passed are swept to COMPLETED.
	CompletionSweepInterval time.Duration
	// AvailabilityCacheTTL controls how long resolved availability ranges are
	// kept in Redis before recomputation.
	AvailabilityCacheTTL time.Duration
}

// ExportsConfig governs ledger export endpoints and the download-link
// archive behind them.
type ExportsConfig struct {
	Enabled bool
	// Dir is where rendered exports are kept for link delivery.
	Dir string
	// LinkTTL bounds both download-token validity and how long archived
	// files are kept on disk.
	LinkTTL time.Duration
	// SignSecret signs download tokens.
	SignSecret string
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

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        v.GetDuration("JWT_EXPIRATION"),
		RefreshExpiration: v.GetDuration("JWT_REFRESH_EXPIRATION"),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduling = SchedulingConfig{
		DefaultCapacity:         v.GetInt("SCHEDULING_DEFAULT_CAPACITY"),
		InstructorHorizonMonths: v.GetInt("SCHEDULING_INSTRUCTOR_HORIZON_MONTHS"),
		StudentHorizonMonths:    v.GetInt("SCHEDULING_STUDENT_HORIZON_MONTHS"),
		CompletionSweepInterval: v.GetDuration("SCHEDULING_COMPLETION_SWEEP_INTERVAL"),
		AvailabilityCacheTTL:    v.GetDuration("SCHEDULING_AVAILABILITY_CACHE_TTL"),
	}

	cfg.Exports = ExportsConfig{
		Enabled:    v.GetBool("EXPORTS_ENABLED"),
		Dir:        v.GetString("EXPORTS_DIR"),
		LinkTTL:    v.GetDuration("EXPORTS_LINK_TTL"),
		SignSecret: v.GetString("EXPORTS_SIGN_SECRET"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "redrive")
	v.SetDefault("DB_PASSWORD", "redrive")
	v.SetDefault("DB_NAME", "redrive")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWT_EXPIRATION", 15*time.Minute)
	v.SetDefault("JWT_REFRESH_EXPIRATION", 720*time.Hour)
	v.SetDefault("JWT_ISSUER", "redrive-api")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULING_DEFAULT_CAPACITY", 2)
	v.SetDefault("SCHEDULING_INSTRUCTOR_HORIZON_MONTHS", 4)
	v.SetDefault("SCHEDULING_STUDENT_HORIZON_MONTHS", 2)
	v.SetDefault("SCHEDULING_COMPLETION_SWEEP_INTERVAL", time.Hour)
	v.SetDefault("SCHEDULING_AVAILABILITY_CACHE_TTL", 30*time.Second)

	v.SetDefault("EXPORTS_ENABLED", true)
	v.SetDefault("EXPORTS_DIR", "./exports")
	v.SetDefault("EXPORTS_LINK_TTL", 24*time.Hour)
	v.SetDefault("EXPORTS_SIGN_SECRET", "change-me")
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
