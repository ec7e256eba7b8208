package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SESSION_SECRET", "session-secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.DBDriver)
	require.Equal(t, "session-secret", cfg.JWTSecret, "JWT secret falls back to the session secret")
	require.Equal(t, 168*time.Hour, cfg.JWTTTL)
	require.Equal(t, "localhost:6379", cfg.RedisAddr())
	require.False(t, cfg.IsProduction())
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate_ReleaseRequiresSecret(t *testing.T) {
	cfg := &Config{
		DBDriver:  "mysql",
		GinMode:   "release",
		JWTSecret: "default-secret-key-change-me",
		JWTTTL:    time.Hour,
	}
	require.Error(t, cfg.Validate())

	cfg.JWTSecret = "a-real-secret"
	require.NoError(t, cfg.Validate())
}

func TestValidate_InternalListenerMustBeSeparate(t *testing.T) {
	cfg := &Config{
		DBDriver:         "sqlite",
		JWTTTL:           time.Hour,
		HTTPAddr:         ":8080",
		InternalHTTPAddr: ":8080",
	}
	require.Error(t, cfg.Validate())

	cfg.InternalHTTPAddr = "127.0.0.1:8081"
	require.NoError(t, cfg.Validate())
}
