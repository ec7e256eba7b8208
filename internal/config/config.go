package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBDriver   string `env:"DB_DRIVER" envDefault:"mysql"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"3306"`
	DBUser     string `env:"DB_USER" envDefault:"coup"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"couppassword"`
	DBName     string `env:"DB_NAME" envDefault:"coup"`

	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	SessionSecret string        `env:"SESSION_SECRET" envDefault:"default-secret-key-change-me"`
	JWTSecret     string        `env:"JWT_SECRET"`
	JWTIssuer     string        `env:"JWT_ISSUER" envDefault:"coup-api"`
	JWTTTL        time.Duration `env:"JWT_TTL" envDefault:"168h"`

	// InternalAPIKey guards the /internal routes. Empty disables them.
	InternalAPIKey string `env:"INTERNAL_API_KEY"`

	GinMode        string        `env:"GIN_MODE" envDefault:"debug"`
	HTTPAddr       string        `env:"HTTP_ADDR" envDefault:":8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigin     string        `env:"CORS_ORIGIN" envDefault:"http://localhost:3000"`

	// InternalHTTPAddr serves /internal on a private listener, e.g.
	// "127.0.0.1:8081". Empty mounts it on HTTPAddr.
	InternalHTTPAddr string `env:"INTERNAL_HTTP_ADDR"`

	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION" envDefault:"ap-northeast-2"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = cfg.SessionSecret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be expressed as defaults.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == "default-secret-key-change-me") {
		return fmt.Errorf("JWT_SECRET must be set in release mode")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.InternalHTTPAddr != "" && c.InternalHTTPAddr == c.HTTPAddr {
		return fmt.Errorf("INTERNAL_HTTP_ADDR must differ from HTTP_ADDR")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}
