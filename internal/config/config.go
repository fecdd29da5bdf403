package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// minSecretLength is the shortest TOKEN_SECRET accepted for HS256
const minSecretLength = 32

var ErrMissingSecret = errors.New("TOKEN_SECRET must be set")

// Config is the process configuration, read from the environment (and an optional .env file)
type Config struct {
	HTTPPort string

	MongoURI      string
	MongoDatabase string
	RedisAddr     string

	TokenSecret     string
	AttemptWindow   time.Duration
	VerificationTTL time.Duration

	RateLimitWindow   time.Duration
	RateLimitPerIP    int
	RateLimitPerEmail int

	PoolCacheTTL time.Duration

	CORSAllowedOrigins []string
	// TrustProxyHeaders takes the client IP from X-Forwarded-For; only set behind a proxy that overwrites it
	TrustProxyHeaders bool

	LogLevel  string
	LogPretty bool
}

// Load reads and validates the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads the configuration without validating it
func Read() *Config {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "skillgate")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("ATTEMPT_WINDOW", "24h")
	v.SetDefault("VERIFICATION_TTL", "72h")
	v.SetDefault("RATE_LIMIT_WINDOW", "1h")
	v.SetDefault("RATE_LIMIT_PER_IP", 30)
	v.SetDefault("RATE_LIMIT_PER_EMAIL", 5)
	v.SetDefault("POOL_CACHE_TTL", "30s")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("TRUST_PROXY_HEADERS", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn().Err(err).Msg("Error reading config file")
		}
	}

	return &Config{
		HTTPPort:           v.GetString("HTTP_PORT"),
		MongoURI:           v.GetString("MONGO_URI"),
		MongoDatabase:      v.GetString("MONGO_DATABASE"),
		RedisAddr:          strings.TrimPrefix(v.GetString("REDIS_ADDR"), "redis://"),
		TokenSecret:        v.GetString("TOKEN_SECRET"),
		AttemptWindow:      v.GetDuration("ATTEMPT_WINDOW"),
		VerificationTTL:    v.GetDuration("VERIFICATION_TTL"),
		RateLimitWindow:    v.GetDuration("RATE_LIMIT_WINDOW"),
		RateLimitPerIP:     v.GetInt("RATE_LIMIT_PER_IP"),
		RateLimitPerEmail:  v.GetInt("RATE_LIMIT_PER_EMAIL"),
		PoolCacheTTL:       v.GetDuration("POOL_CACHE_TTL"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		TrustProxyHeaders:  v.GetBool("TRUST_PROXY_HEADERS"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogPretty:          v.GetBool("LOG_PRETTY"),
	}
}

// Validate checks the values Load cannot default
func (c *Config) Validate() error {
	if c.TokenSecret == "" {
		return ErrMissingSecret
	}
	if len(c.TokenSecret) < minSecretLength {
		return fmt.Errorf("TOKEN_SECRET must be at least %d bytes", minSecretLength)
	}
	if c.AttemptWindow <= 0 {
		return fmt.Errorf("ATTEMPT_WINDOW must be positive, got %s", c.AttemptWindow)
	}
	if c.VerificationTTL <= 0 {
		return fmt.Errorf("VERIFICATION_TTL must be positive, got %s", c.VerificationTTL)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}
	if c.RateLimitPerIP < 0 || c.RateLimitPerEmail < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	if c.PoolCacheTTL < 0 {
		return fmt.Errorf("POOL_CACHE_TTL must not be negative, got %s", c.PoolCacheTTL)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
