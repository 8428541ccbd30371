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

// Config - настройки сервера, собираются из .env и окружения.
type Config struct {
	ServerAddress       string
	LogLevel            string
	RequestTimeout      time.Duration
	AttachmentTimeout   time.Duration
	RFQTTL              time.Duration
	ExpirySweepInterval time.Duration
	MetricsNamespace    string

	Database   DatabaseConfig
	Media      MediaConfig
	Cloudinary CloudinaryConfig
	Redis      RedisConfig
	Auth       AuthConfig
}

// DatabaseConfig. Driver: postgres (lib/pq), pgx или sqlite.
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// MediaConfig - локальное хранилище вложений, если Cloudinary не настроен.
type MediaConfig struct {
	Dir           string
	PublicBaseURL string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

// Enabled - все три ключа заданы.
func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// RedisConfig. Пустой Addr выключает кэш входящих.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	UseTLS        bool
	InboxCacheTTL time.Duration
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	Required  bool
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	var errs []error
	cfg := &Config{
		ServerAddress:       getEnv("SERVER_ADDRESS", "0.0.0.0:8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		RequestTimeout:      getDuration("REQUEST_TIMEOUT", 15*time.Second, &errs),
		AttachmentTimeout:   getDuration("ATTACHMENT_TIMEOUT", 30*time.Second, &errs),
		RFQTTL:              getDuration("RFQ_TTL", 24*time.Hour, &errs),
		ExpirySweepInterval: getDuration("EXPIRY_SWEEP_INTERVAL", 5*time.Minute, &errs),
		MetricsNamespace:    getEnv("METRICS_NAMESPACE", "agrimarket"),
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:    firstEnv("POSTGRES_CONN", "DB_DSN"),
		},
		Media: MediaConfig{
			Dir:           getEnv("MEDIA_DIR", "./media"),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", ""),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getInt("REDIS_DB", 0, &errs),
			UseTLS:        getBool("REDIS_TLS", false, &errs),
			InboxCacheTTL: getDuration("INBOX_CACHE_TTL", 10*time.Second, &errs),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getDuration("TOKEN_TTL", 24*time.Hour, &errs),
			Required:  getBool("AUTH_REQUIRED", false, &errs),
		},
	}

	switch cfg.Database.Driver {
	case "postgres", "pgx":
		if cfg.Database.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_CONN env variable is not set"))
		}
	case "sqlite":
		if cfg.Database.DSN == "" {
			cfg.Database.DSN = "file:agrimarket.db"
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported", cfg.Database.Driver))
	}
	if cfg.Auth.Required && cfg.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_REQUIRED is set but JWT_SECRET is empty"))
	}
	if cfg.RFQTTL <= 0 {
		errs = append(errs, errors.New("RFQ_TTL must be positive"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// getEnv получает переменную окружения или использует дефолтное значение
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func getBool(key string, def bool, errs *[]error) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func getInt(key string, def int, errs *[]error) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}
