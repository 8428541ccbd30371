package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// clearEnv обнуляет переменные, которые могли прийти из окружения разработчика.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"SERVER_ADDRESS", "LOG_LEVEL", "REQUEST_TIMEOUT", "ATTACHMENT_TIMEOUT", "RFQ_TTL",
		"EXPIRY_SWEEP_INTERVAL", "DB_DRIVER", "POSTGRES_CONN", "DB_DSN", "REDIS_ADDR",
		"REDIS_DB", "REDIS_TLS", "INBOX_CACHE_TTL", "JWT_SECRET", "TOKEN_TTL", "AUTH_REQUIRED",
		"CLOUDINARY_CLOUD_NAME", "CLOUDINARY_API_KEY", "CLOUDINARY_API_SECRET",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8080", cfg.ServerAddress)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "file:agrimarket.db", cfg.Database.DSN)
	require.Equal(t, 24*time.Hour, cfg.RFQTTL)
	require.Equal(t, 30*time.Second, cfg.AttachmentTimeout)
	require.False(t, cfg.Cloudinary.Enabled())
	require.False(t, cfg.Auth.Required)
}

func TestLoadPostgres(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("POSTGRES_CONN", "postgres://u:p@localhost/agri?sslmode=disable")
	t.Setenv("RFQ_TTL", "2h")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "postgres://u:p@localhost/agri?sslmode=disable", cfg.Database.DSN)
	require.Equal(t, 2*time.Hour, cfg.RFQTTL)
	require.Equal(t, 3, cfg.Redis.DB)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without dsn": {"DB_DRIVER": "postgres"},
		"unknown driver":       {"DB_DRIVER": "mysql"},
		"auth without secret":  {"DB_DRIVER": "sqlite", "AUTH_REQUIRED": "true"},
		"bad duration":         {"DB_DRIVER": "sqlite", "REQUEST_TIMEOUT": "soon"},
		"non-positive ttl":     {"DB_DRIVER": "sqlite", "RFQ_TTL": "-1h"},
		"bad bool":             {"DB_DRIVER": "sqlite", "REDIS_TLS": "maybe"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestCloudinaryEnabled(t *testing.T) {
	c := CloudinaryConfig{CloudName: "demo", APIKey: "key"}
	require.False(t, c.Enabled())
	c.APISecret = "secret"
	require.True(t, c.Enabled())
}
