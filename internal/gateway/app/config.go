package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	PublicKeyPEM []byte // RSA public key, from JWT_PUBLIC_KEY or JWT_PUBLIC_KEY_FILE
	Issuer       string // Expected issuer claim (default: velora-auth)
	Audience     string // Expected audience claim (default: velora-api)

	AuthServiceURL    string // default: http://localhost:3334
	PaymentServiceURL string // default: http://localhost:3335
	ProductServiceURL string // default: http://localhost:3336

	ProxyTimeout time.Duration // Upstream response deadline (default: 15s)

	Env                 string // Environment (dev, staging, prod) (default: dev)
	LogLevel            string // Log level (debug, info, warn, error) (default: info)
	LogFormat           string // Log format (json, text) (default: json)
	Port                int    // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration
}

func LoadConfig() Config {
	return Config{
		PublicKeyPEM: loadPublicKeyPEM(),
		Issuer:       getEnvOrDefault("AUTH_ISSUER", "velora-auth"),
		Audience:     getEnvOrDefault("AUTH_AUDIENCE", "velora-api"),

		AuthServiceURL:    getEnvOrDefault("AUTH_SERVICE_URL", "http://localhost:3334"),
		PaymentServiceURL: getEnvOrDefault("PAYMENT_SERVICE_URL", "http://localhost:3335"),
		ProductServiceURL: getEnvOrDefault("PRODUCT_SERVICE_URL", "http://localhost:3336"),

		ProxyTimeout: getEnvDurationOrDefault("PROXY_TIMEOUT", 15*time.Second),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func loadPublicKeyPEM() []byte {
	if pem := os.Getenv("JWT_PUBLIC_KEY"); pem != "" {
		return []byte(strings.ReplaceAll(pem, `\n`, "\n"))
	}
	if path := os.Getenv("JWT_PUBLIC_KEY_FILE"); path != "" {
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
