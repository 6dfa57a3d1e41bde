// Package config loads the bidding client's settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the client settings
type Config struct {
	LedgerURL        string
	RabbitMQURL      string
	RedisURL         string // optional, notices are disabled when empty
	AccessToken      string // optional, read-only session when empty
	PublicKeyPath    string
	Issuer           string
	SubmitTimeout    time.Duration
	ClockInterval    time.Duration
	MinBidIncrement  int64
	ReconnectBackoff time.Duration
}

// Load reads .env.local and .env (local overrides) and then the environment
func Load() (Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		LedgerURL:     getenv("LEDGER_URL"),
		RabbitMQURL:   getenv("RABBITMQ_URL"),
		RedisURL:      getenv("REDIS_URL"),
		AccessToken:   getenv("ACCESS_TOKEN"),
		PublicKeyPath: getenv("JWT_PUBLIC_KEY_PATH"),
		Issuer:        getOrDefault(getenv, "JWT_ISSUER", "livebid"),
	}

	for _, required := range []struct{ key, value string }{
		{"LEDGER_URL", cfg.LedgerURL},
		{"RABBITMQ_URL", cfg.RabbitMQURL},
		{"JWT_PUBLIC_KEY_PATH", cfg.PublicKeyPath},
	} {
		if required.value == "" {
			return Config{}, fmt.Errorf("%s is not set", required.key)
		}
	}

	var err error
	if cfg.SubmitTimeout, err = durationOrDefault(getenv, "SUBMIT_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ClockInterval, err = durationOrDefault(getenv, "CLOCK_INTERVAL", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ReconnectBackoff, err = durationOrDefault(getenv, "RECONNECT_MAX_INTERVAL", 30*time.Second); err != nil {
		return Config{}, err
	}

	cfg.MinBidIncrement = 1
	if v := getenv("MIN_BID_INCREMENT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("MIN_BID_INCREMENT must be a positive integer, got %q", v)
		}
		cfg.MinBidIncrement = n
	}

	return cfg, nil
}

func getOrDefault(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationOrDefault(getenv func(string) string, key string, defaultValue time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}
