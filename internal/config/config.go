package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the report service.
type Config struct {
	DataDir     string
	BindAddress string
	Port        int
	BaseURL     string

	AnthropicAPIKey string
	VisionModels    []string // tried in order; first success wins

	StripeAPIKey        string
	StripeWebhookSecret string
	StripePriceSingle   string
	StripePriceMonthly  string
	StripePriceAnnual   string

	ResendAPIKey string // optional; emails are logged if empty
	EmailFrom    string

	LogLevel  string
	LogFormat string
}

// UploadsDir returns the directory where uploaded room photos are stored.
func (c *Config) UploadsDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// ReportsDir returns the directory where generated PDFs are stored.
func (c *Config) ReportsDir() string {
	return filepath.Join(c.DataDir, "reports")
}

// StoreDir returns the directory for the service's own data (SQLite store).
func (c *Config) StoreDir() string {
	return filepath.Join(c.DataDir, "store")
}

// BillingConfigured reports whether Stripe checkout can be offered.
func (c *Config) BillingConfigured() bool {
	return c.StripeAPIKey != "" && c.StripePriceSingle != ""
}

// Load reads configuration from environment variables.
// A .env file is loaded if present but not required.
func Load() (*Config, error) {
	// Best-effort .env loading (not required)
	_ = godotenv.Load()

	port, err := envOrDefaultInt("RR_PORT", 8000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:             envOrDefault("RR_DATA_DIR", "./data"),
		BindAddress:         envOrDefault("RR_BIND_ADDRESS", "0.0.0.0"),
		Port:                port,
		BaseURL:             envOrDefault("RR_BASE_URL", "http://localhost:8000"),
		AnthropicAPIKey:     strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		VisionModels:        splitList(envOrDefault("RR_VISION_MODELS", "claude-haiku-4-5,claude-sonnet-4-5")),
		StripeAPIKey:        strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		StripeWebhookSecret: strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		StripePriceSingle:   strings.TrimSpace(os.Getenv("STRIPE_PRICE_SINGLE")),
		StripePriceMonthly:  strings.TrimSpace(os.Getenv("STRIPE_PRICE_MONTHLY")),
		StripePriceAnnual:   strings.TrimSpace(os.Getenv("STRIPE_PRICE_ANNUAL")),
		ResendAPIKey:        strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
		EmailFrom:           envOrDefault("RR_EMAIL_FROM", "RentReady <reports@rentready.example>"),
		LogLevel:            envOrDefault("RR_LOG_LEVEL", "info"),
		LogFormat:           envOrDefault("RR_LOG_FORMAT", "auto"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("RR_PORT must be between 1 and 65535, got %d", c.Port)
	}

	parsedBaseURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("RR_BASE_URL must be a valid URL: %w", err)
	}
	if parsedBaseURL.Scheme != "http" && parsedBaseURL.Scheme != "https" {
		return fmt.Errorf("RR_BASE_URL must use http or https scheme")
	}
	if parsedBaseURL.Host == "" {
		return fmt.Errorf("RR_BASE_URL must include a host")
	}

	// Webhook crediting cannot work without the signing secret; refuse a
	// half-configured billing setup rather than dropping events silently.
	if c.StripeAPIKey != "" && c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) (int, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
		}
		return n, nil
	}
	return fallback, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
