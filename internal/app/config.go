package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config is the api-server configuration. Values come from STORE_*
// environment variables, flags or a YAML file.
type Config struct {
	Addr              string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL       string        `usage:"PostgreSQL connection URL (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL          string        `default:"" usage:"Redis URL for idempotency keys; in-process store when empty (STORE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	APIKeyPepper      string        `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
	ImageBaseURL      string        `default:"" usage:"Base URL prefixed to relative product image references" flag:"image-base-url"`
	DeliveryRatesFile string        `default:"" usage:"YAML delivery rate table; the built-in table is used when empty" flag:"delivery-rates"`
	CatalogCacheTTL   time.Duration `default:"30s" usage:"Product catalog cache TTL; 0 disables the cache" flag:"catalog-cache-ttl"`
	IdempotencyTTL    time.Duration `default:"24h" usage:"How long an Idempotency-Key maps to its order" flag:"idempotency-ttl"`
	RateLimit         RateLimitConfig
	CouponRateLimit   CouponRateLimitConfig
	CORS              CORSConfig
	Graceful          GracefulConfig
}

// RateLimitConfig is a fixed-window limit per client IP. Max 0 disables it.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CouponRateLimitConfig is the stricter limit on coupon validation, which
// would otherwise allow guessing codes. Max 0 disables it.
type CouponRateLimitConfig struct {
	Max    int           `default:"20" usage:"Max coupon validations per window"`
	Window time.Duration `default:"1m" usage:"Coupon validation window duration"`
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

// LoadConfig loads the configuration and applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL")
	case c.APIKeyPepper == "":
		return errors.New("API key pepper is required: set STORE_API_KEY_PEPPER")
	case c.CatalogCacheTTL < 0:
		return errors.New("catalog cache TTL must not be negative")
	case c.IdempotencyTTL <= 0:
		return errors.New("idempotency TTL must be positive")
	}
	return nil
}

// applyPlatformDefaults maps the unprefixed variables hosting platforms set
// (DATABASE_URL, REDIS_URL, PORT) onto the config.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.DatabaseURL == "" {
		c.DatabaseURL = getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = getenv("REDIS_URL")
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
