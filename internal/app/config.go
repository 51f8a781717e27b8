package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/lotte-kokodo/order-service/internal/gateway"
)

// Config holds the complete application configuration, loadable from
// environment variables (ORDER_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (ORDER_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	AMQPURL     string `usage:"RabbitMQ connection URL (ORDER_AMQP_URL or AMQP_URL)" flag:"amqp-url"`
	Upstream    UpstreamConfig
	Pricing     PricingConfig
	Breaker     BreakerConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// UpstreamConfig holds the base URLs and call timeout for the external
// catalog, member, and promotion services.
type UpstreamConfig struct {
	CatalogURL   string        `usage:"Catalog (product) service base URL" flag:"catalog-url"`
	MemberURL    string        `usage:"Member service base URL" flag:"member-url"`
	PromotionURL string        `usage:"Promotion service base URL" flag:"promotion-url"`
	Timeout      time.Duration `default:"3s" usage:"Per-call timeout for upstream HTTP requests"`
}

// PricingConfig holds the fixed discount amounts, in the smallest currency
// unit.
type PricingConfig struct {
	FixedDiscountUnit int64 `default:"1000" usage:"Fixed discount per eligible unit" flag:"fixed-discount-unit"`
	FixedCouponAmount int64 `default:"1000" usage:"Fixed coupon amount per qualifying seller" flag:"fixed-coupon-amount"`
}

// BreakerConfig controls the circuit breakers guarding upstream calls.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `default:"5"   usage:"Consecutive failures before the breaker opens"`
	OpenTimeout         time.Duration `default:"30s" usage:"Open state duration before probing" flag:"breaker-open-timeout"`
	HalfOpenRequests    uint32        `default:"3"   usage:"Probe requests allowed while half-open" flag:"breaker-half-open-requests"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

func (c BreakerConfig) gateway() gateway.BreakerConfig {
	return gateway.BreakerConfig{
		ConsecutiveFailures: c.ConsecutiveFailures,
		OpenTimeout:         c.OpenTimeout,
		HalfOpenRequests:    c.HalfOpenRequests,
	}
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORDER",
		Files:     []string{"config.yaml", "/etc/order-service/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set ORDER_DATABASE_URL or DATABASE_URL")
	}
	if cfg.AMQPURL == "" {
		return nil, errors.New("AMQP URL is required: set ORDER_AMQP_URL or AMQP_URL")
	}
	for _, u := range []struct{ name, value string }{
		{"catalog", cfg.Upstream.CatalogURL},
		{"member", cfg.Upstream.MemberURL},
		{"promotion", cfg.Upstream.PromotionURL},
	} {
		if u.value == "" {
			return nil, errors.Errorf("%s service URL is required", u.name)
		}
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT to the application's
// ORDER_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.AMQPURL == "" {
		if v := os.Getenv("AMQP_URL"); v != "" {
			c.AMQPURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
