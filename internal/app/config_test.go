package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestApplyPlatformDefaults(t *testing.T) {
	cfg := Config{Addr: defaultAddr}
	cfg.applyPlatformDefaults(env(map[string]string{
		"DATABASE_URL": "postgres://platform",
		"REDIS_URL":    "redis://platform:6379",
		"PORT":         "9000",
	}))

	assert.Equal(t, "postgres://platform", cfg.DatabaseURL)
	assert.Equal(t, "redis://platform:6379", cfg.RedisURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestApplyPlatformDefaults_ExplicitWins(t *testing.T) {
	cfg := Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit"}
	cfg.applyPlatformDefaults(env(map[string]string{
		"DATABASE_URL": "postgres://platform",
		"PORT":         "9000",
	}))

	assert.Equal(t, "postgres://explicit", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	assert.Empty(t, cfg.RedisURL)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{DatabaseURL: "postgres://x", APIKeyPepper: "p", IdempotencyTTL: time.Hour}
	require.NoError(t, valid.validate())

	for name, mutate := range map[string]func(*Config){
		"no database":    func(c *Config) { c.DatabaseURL = "" },
		"no pepper":      func(c *Config) { c.APIKeyPepper = "" },
		"negative cache": func(c *Config) { c.CatalogCacheTTL = -time.Second },
		"zero idem ttl":  func(c *Config) { c.IdempotencyTTL = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			assert.Error(t, cfg.validate())
		})
	}
}
