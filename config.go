package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pm-dashboard/domain"
)

// Config holds the service settings. Every key can be set from the
// environment using its upper-case name, e.g. TICK_INTERVAL=2s or
// GENERATOR_MTBF_MAX=200.
type Config struct {
	ListenAddr    string        `mapstructure:"listen_addr"`
	RedisURL      string        `mapstructure:"redis_url"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	WarmupTicks   int           `mapstructure:"warmup_ticks"`
	RandomSeed    uint64        `mapstructure:"random_seed"`
	DeduperTTL    time.Duration `mapstructure:"deduper_ttl"`
	AuthMode      string        `mapstructure:"auth_mode"`
	Auth0Domain   string        `mapstructure:"auth0_domain"`
	Auth0Audience string        `mapstructure:"auth0_audience"`
	TestJWTSecret string        `mapstructure:"test_jwt_secret"`
	SecureCookie  bool          `mapstructure:"secure_cookie"`
	Debug         bool          `mapstructure:"debug"`
	LogFormat     string        `mapstructure:"log_format"`

	Generator domain.GeneratorConfig `mapstructure:"generator"`
}

const (
	authModeNone = ""
	authModeJWKS = "jwks"
	authModeTest = "test"
)

func setDefaults(v *viper.Viper) {
	gen := domain.DefaultGeneratorConfig()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("redis_url", "")
	v.SetDefault("session_ttl", "12h")
	v.SetDefault("tick_interval", "5s")
	v.SetDefault("warmup_ticks", 0)
	v.SetDefault("random_seed", 0)
	v.SetDefault("deduper_ttl", "24h")
	v.SetDefault("auth_mode", authModeNone)
	v.SetDefault("auth0_domain", "")
	v.SetDefault("auth0_audience", "")
	v.SetDefault("test_jwt_secret", "")
	v.SetDefault("secure_cookie", false)
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "text")
	v.SetDefault("generator.mttr_min", gen.MTTRMin)
	v.SetDefault("generator.mttr_max", gen.MTTRMax)
	v.SetDefault("generator.mtbf_min", gen.MTBFMin)
	v.SetDefault("generator.mtbf_max", gen.MTBFMax)
	v.SetDefault("generator.quality_min", gen.QualityMin)
	v.SetDefault("generator.quality_max", gen.QualityMax)
	v.SetDefault("generator.performance_min", gen.PerformanceMin)
	v.SetDefault("generator.performance_max", gen.PerformanceMax)
}

// LoadConfig reads defaults, an optional config file and the environment,
// in increasing order of precedence.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr must not be empty")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", c.TickInterval)
	}
	if c.WarmupTicks < 0 {
		return fmt.Errorf("warmup_ticks must not be negative, got %d", c.WarmupTicks)
	}
	if c.SessionTTL < 0 || c.DeduperTTL < 0 {
		return errors.New("ttl values must not be negative")
	}
	switch strings.ToLower(c.AuthMode) {
	case authModeNone:
	case authModeJWKS:
		if c.Auth0Domain == "" || c.Auth0Audience == "" {
			return errors.New("auth_mode=jwks requires auth0_domain and auth0_audience")
		}
	case authModeTest:
		if c.TestJWTSecret == "" {
			return errors.New("auth_mode=test requires test_jwt_secret")
		}
	default:
		return fmt.Errorf("unknown auth_mode %q", c.AuthMode)
	}
	c.AuthMode = strings.ToLower(c.AuthMode)
	return c.Generator.Validate()
}
