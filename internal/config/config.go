package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const DefaultBackendURL = "https://production.up.railway.app"

type Config struct {
	BackendURL      string `validate:"required,url"`
	CredentialStore string `validate:"oneof=file redis postgres memory"`
	CredentialFile  string
	RedisURL        string `validate:"required_if=CredentialStore redis"`
	DatabaseURL     string `validate:"required_if=CredentialStore postgres"`
	CallbackAddr    string `validate:"required"`

	RateRPS       float64       `validate:"gte=0"`
	RateBurst     int           `validate:"gte=1"`
	RedirectDelay time.Duration `validate:"gte=0"`
	// zero: no client-side timeout
	HTTPTimeout time.Duration `validate:"gte=0"`
}

var validate = validator.New()

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	env := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	c := &Config{
		BackendURL:      env("BACKEND_URL", DefaultBackendURL),
		CredentialStore: env("CREDENTIAL_STORE", "file"),
		CredentialFile:  env("CREDENTIAL_FILE", ""),
		RedisURL:        env("REDIS_URL", ""),
		DatabaseURL:     env("DATABASE_URL", ""),
		CallbackAddr:    env("CALLBACK_ADDR", "127.0.0.1:5173"),
	}

	var err error
	if c.RateRPS, err = strconv.ParseFloat(env("RATE_RPS", "5"), 64); err != nil {
		return nil, fmt.Errorf("RATE_RPS: %w", err)
	}
	if c.RateBurst, err = strconv.Atoi(env("RATE_BURST", "10")); err != nil {
		return nil, fmt.Errorf("RATE_BURST: %w", err)
	}
	if c.RedirectDelay, err = millis(env("REDIRECT_DELAY_MS", "1200")); err != nil {
		return nil, fmt.Errorf("REDIRECT_DELAY_MS: %w", err)
	}
	if c.HTTPTimeout, err = millis(env("HTTP_TIMEOUT_MS", "0")); err != nil {
		return nil, fmt.Errorf("HTTP_TIMEOUT_MS: %w", err)
	}

	if err := validate.Struct(c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

func millis(s string) (time.Duration, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}
