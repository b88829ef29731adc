// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config holds everything the chat service reads from the environment.
type Config struct {
	MongoURI string `env:"MONGODB_URI,required=true"`
	Port     int    `env:"PORT,default=8080"`
	Env      string `env:"ENV,default=development"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	// EncryptionKey is the passphrase the at-rest content key is derived from.
	EncryptionKey string `env:"ENCRYPTION_KEY,required=true"`

	// BaseURL prefixes relative media/image paths in API responses.
	BaseURL string `env:"BASE_URL,default=http://localhost:8080"`

	PageSize int64 `env:"PAGE_SIZE,default=20"`

	StaleConnectionMaxAge time.Duration `env:"STALE_CONNECTION_MAX_AGE,default=10m"`
	SweepInterval         time.Duration `env:"SWEEP_INTERVAL,default=60s"`

	RateLimitRPM   int    `env:"RATE_LIMIT_RPM,default=60"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`

	// FirebaseCredentialsFile is optional; without it push notifications are
	// logged and dropped instead of sent.
	FirebaseCredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// A missing .env file is fine; deployments set real environment variables.
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Origins returns the configured allowed CORS origins.
func (c *Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
