package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	defaultHTTPAddr          = ":8080"
	defaultJWTSecret         = "change-me-jwt-secret"
	defaultJWTTTL            = "24h"
	defaultLogLevel          = "info"
	defaultAutoMigrate       = "true"
	defaultServiceFeePct     = "0.10"
	defaultTaxPct            = "0.08"
	defaultQuoteTTL          = "30m"
	defaultStatusRetries     = "3"
	defaultStatusRetryDelay  = "20ms"
	maxStatusRetryAttempts   = 10
	maxPercentageConfigValue = 1
)

type Config struct {
	AppEnv             string
	HTTPAddr           string
	DatabaseURL        string
	JWTSecret          string
	JWTTTL             time.Duration
	LogLevel           string
	AutoMigrate        bool
	CORSAllowedOrigins string

	Pricing PricingConfig
	Booking BookingConfig
}

type PricingConfig struct {
	ServiceFeePercent decimal.Decimal
	TaxPercent        decimal.Decimal
	QuoteTTL          time.Duration
}

type BookingConfig struct {
	StatusRetryAttempts int
	StatusRetryDelay    time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.LogLevel = strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel))
	cfg.AutoMigrate = parseBoolEnv("AUTO_MIGRATE", defaultAutoMigrate)
	cfg.CORSAllowedOrigins = strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))

	var err error
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", defaultJWTTTL); err != nil {
		return nil, err
	}
	if cfg.Pricing.ServiceFeePercent, err = parseDecimalEnv("PRICING_SERVICE_FEE_PCT", defaultServiceFeePct); err != nil {
		return nil, err
	}
	if cfg.Pricing.TaxPercent, err = parseDecimalEnv("PRICING_TAX_PCT", defaultTaxPct); err != nil {
		return nil, err
	}
	if cfg.Pricing.QuoteTTL, err = parseDurationEnv("PRICING_QUOTE_TTL", defaultQuoteTTL); err != nil {
		return nil, err
	}
	if cfg.Booking.StatusRetryAttempts, err = parseIntEnv("BOOKING_STATUS_RETRY_ATTEMPTS", defaultStatusRetries); err != nil {
		return nil, err
	}
	if cfg.Booking.StatusRetryDelay, err = parseDurationEnv("BOOKING_STATUS_RETRY_DELAY", defaultStatusRetryDelay); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProd() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if err := validatePercent("PRICING_SERVICE_FEE_PCT", cfg.Pricing.ServiceFeePercent); err != nil {
		return err
	}
	if err := validatePercent("PRICING_TAX_PCT", cfg.Pricing.TaxPercent); err != nil {
		return err
	}
	if cfg.Pricing.QuoteTTL <= 0 {
		return fmt.Errorf("PRICING_QUOTE_TTL must be > 0")
	}
	if cfg.Booking.StatusRetryAttempts < 1 || cfg.Booking.StatusRetryAttempts > maxStatusRetryAttempts {
		return fmt.Errorf("BOOKING_STATUS_RETRY_ATTEMPTS must be between 1 and %d", maxStatusRetryAttempts)
	}
	if cfg.Booking.StatusRetryDelay < 0 {
		return fmt.Errorf("BOOKING_STATUS_RETRY_DELAY must be >= 0")
	}

	if isProdLike(cfg.AppEnv) && isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
		return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
	}
	return nil
}

func validatePercent(name string, v decimal.Decimal) error {
	if v.IsNegative() || v.GreaterThan(decimal.NewFromInt(maxPercentageConfigValue)) {
		return fmt.Errorf("%s must be a fraction between 0 and 1, got %s", name, v.String())
	}
	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseDecimalEnv(name, fallback string) (decimal.Decimal, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
