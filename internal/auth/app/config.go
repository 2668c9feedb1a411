package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Issuer   string // Issuer claim for tokens (default: velora-auth)
	Audience string // Audience claim for tokens (default: velora-api)

	PrivateKeyPEM  []byte // RSA private key, from JWT_PRIVATE_KEY or JWT_PRIVATE_KEY_FILE
	AccessTokenTTL time.Duration
	RefreshTTL     time.Duration

	DatabaseFile string // Path to SQLite database file (default: ./auth.db)
	RedisURL     string // Redis connection URL (default: redis://localhost:6379)

	UserFrontendURL   string // Buyer storefront, used in reset links
	SellerFrontendURL string // Seller dashboard, used in reset links

	Env                 string // Environment (dev, staging, prod) (default: dev)
	LogLevel            string // Log level (debug, info, warn, error) (default: info)
	LogFormat           string // Log format (json, text) (default: json)
	Port                int    // HTTP server port (default: 3334)
	ShutdownGracePeriod time.Duration
}

func LoadConfig() Config {
	return Config{
		Issuer:   getEnvOrDefault("AUTH_ISSUER", "velora-auth"),
		Audience: getEnvOrDefault("AUTH_AUDIENCE", "velora-api"),

		PrivateKeyPEM:  loadPrivateKeyPEM(),
		AccessTokenTTL: getEnvDurationOrDefault("ACCESS_TOKEN_TTL", 0),
		RefreshTTL:     getEnvDurationOrDefault("REFRESH_TOKEN_TTL", 0),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		RedisURL:     getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),

		UserFrontendURL:   getEnvOrDefault("FRONTEND_URL", "http://localhost:8000"),
		SellerFrontendURL: getEnvOrDefault("SELLER_FRONTEND_URL", "http://localhost:8001"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 3334),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// loadPrivateKeyPEM reads the signing key from JWT_PRIVATE_KEY, falling
// back to JWT_PRIVATE_KEY_FILE. Deployment tooling often stores PEM in an
// env var with literal \n sequences, so those are unescaped.
func loadPrivateKeyPEM() []byte {
	if pem := os.Getenv("JWT_PRIVATE_KEY"); pem != "" {
		return []byte(strings.ReplaceAll(pem, `\n`, "\n"))
	}
	if path := os.Getenv("JWT_PRIVATE_KEY_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
