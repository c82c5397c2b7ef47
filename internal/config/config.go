package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the complete runtime configuration. It is parsed once at startup
// and passed to components explicitly; nothing reads the environment after
// Load returns.
type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// JWTSecret signs both access and refresh tokens. When empty, main
	// generates a random development secret.
	JWTSecret       string        `env:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	AvatarBucket   string `env:"AVATAR_BUCKET" envDefault:"kompello-avatars"`

	// SocialAutoRegister controls whether a social login with an unlinked
	// external identity creates a new account. Off, such logins fail with 401.
	SocialAutoRegister bool `env:"SOCIAL_AUTO_REGISTER" envDefault:"false"`

	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`

	// Generic OIDC provider, e.g. a Keycloak realm.
	OIDCName     string `env:"OIDC_PROVIDER_NAME"`
	OIDCIssuer   string `env:"OIDC_ISSUER"`
	OIDCJWKSURL  string `env:"OIDC_JWKS_URL"`
	OIDCClientID string `env:"OIDC_CLIENT_ID"`

	LoginRateLimit  int           `env:"LOGIN_RATE_LIMIT" envDefault:"10"`
	LoginRateWindow time.Duration `env:"LOGIN_RATE_WINDOW" envDefault:"1m"`

	StatsRefreshInterval time.Duration `env:"STATS_REFRESH_INTERVAL" envDefault:"10m"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
