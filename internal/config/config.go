package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	AuthProviderClerk = "clerk"
	AuthProviderJWT   = "jwt"

	defaultJWTSecret = "your-jwt-secret-change-in-production"
)

type Config struct {
	Env     string
	Port    string
	LogMode string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	AuthProvider       string
	ClerkSecretKey     string
	ClerkWebhookSecret string
	JWTSecret          string

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int

	MetricsUser string
	MetricsPass string

	FCMCredentialsFile string
	FCMCredentialsJSON string
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		Env:                getEnv("ENV", "development"),
		Port:               getEnv("PORT", "3333"),
		LogMode:            getEnv("LOG_MODE", ""),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AuthProvider:       strings.ToLower(getEnv("AUTH_PROVIDER", AuthProviderClerk)),
		ClerkSecretKey:     os.Getenv("CLERK_SECRET_KEY"),
		ClerkWebhookSecret: os.Getenv("CLERK_WEBHOOK_SECRET"),
		JWTSecret:          getEnv("JWT_SECRET", defaultJWTSecret),
		CORSOrigins:        splitList(getEnv("CORS_ORIGIN", "*")),
		MetricsUser:        os.Getenv("METRICS_USER"),
		MetricsPass:        os.Getenv("METRICS_PASS"),
		FCMCredentialsFile: getEnv("FCM_CREDENTIALS_FILE", "./serviceAccountKey.json"),
		FCMCredentialsJSON: os.Getenv("FCM_SERVICE_ACCOUNT_JSON"),
	}
	if cfg.LogMode == "" {
		cfg.LogMode = cfg.Env
	}

	maxConns, err := getInt("DB_MAX_CONNS", 25)
	errs = append(errs, err)
	minConns, err := getInt("DB_MIN_CONNS", 5)
	errs = append(errs, err)
	cfg.DBMaxConns = int32(maxConns)
	cfg.DBMinConns = int32(minConns)

	cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 30)
	errs = append(errs, err)
	cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 5)
	errs = append(errs, err)

	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable is not set"))
	}

	switch cfg.AuthProvider {
	case AuthProviderClerk:
		if cfg.ClerkSecretKey == "" {
			errs = append(errs, errors.New("CLERK_SECRET_KEY environment variable is not set"))
		}
	case AuthProviderJWT:
		if cfg.IsProduction() && cfg.JWTSecret == defaultJWTSecret {
			errs = append(errs, errors.New("JWT_SECRET must be changed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_PROVIDER must be %q or %q, got %q", AuthProviderClerk, AuthProviderJWT, cfg.AuthProvider))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
