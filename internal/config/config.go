// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the full service configuration. Secrets are injected through
// the environment (optionally via a .env file during development).
type Config struct {
	Port   int
	DBPath string
	AppURL string
	JWT    JWTConfig
	PayPal PayPalConfig
}

// JWTConfig configures caller-identity token validation.
type JWTConfig struct {
	Secret string
}

// PayPalConfig configures the payment gateway client.
type PayPalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	WebhookID    string
	Timeout      int // seconds
}

// Load reads configuration from the environment. A .env file is loaded
// first if present (silently ignored when missing).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:   envInt("PORT", 8080),
		DBPath: envStr("DB_PATH", "./data/betonem.db"),
		AppURL: envStr("APP_URL", "http://localhost:3000"),
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
		},
		PayPal: PayPalConfig{
			BaseURL:      envStr("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			WebhookID:    os.Getenv("PAYPAL_WEBHOOK_ID"),
			Timeout:      envInt("PAYPAL_TIMEOUT", 30),
		},
	}

	if cfg.PayPal.ClientID == "" || cfg.PayPal.ClientSecret == "" {
		return nil, fmt.Errorf("PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET are required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
