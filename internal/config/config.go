// Package config loads server settings from an optional YAML file and
// LP_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/learning-profile/internal/profile"
)

const (
	EnvPrefix      = "LP"
	ConfigName     = "learning-profile"
	DefaultSecret  = "change-me-in-production"
	defaultDataDir = "./data"
)

// Redis holds the optional rate limit backend settings.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Config is the full server configuration.
type Config struct {
	Port              string        `mapstructure:"port"`
	DataDir           string        `mapstructure:"data_dir"`
	LogLevel          string        `mapstructure:"log_level"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	InvitationTTL     time.Duration `mapstructure:"invitation_ttl"`
	RequireInvitation bool          `mapstructure:"require_invitation"`
	AdminToken        string        `mapstructure:"admin_token"`
	Redis             Redis         `mapstructure:"redis"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	RateLimitPerMin   int           `mapstructure:"rate_limit_per_min"`
	IPRateLimitPerMin int           `mapstructure:"ip_rate_limit_per_min"`
	RetentionDays     int           `mapstructure:"retention_days"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	CORSOrigins       []string      `mapstructure:"cors_origins"`

	Weighting     profile.WeightPolicy `mapstructure:"weighting"`
	WeightingFile string               `mapstructure:"weighting_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("data_dir", defaultDataDir)
	v.SetDefault("log_level", "info")
	v.SetDefault("jwt_secret", DefaultSecret)
	v.SetDefault("invitation_ttl", 7*24*time.Hour)
	v.SetDefault("require_invitation", false)
	v.SetDefault("admin_token", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache_ttl", 15*time.Minute)
	v.SetDefault("rate_limit_per_min", 10)
	v.SetDefault("ip_rate_limit_per_min", 120)
	v.SetDefault("retention_days", 365)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("weighting_file", "")

	// Every weighting key gets a default so LP_WEIGHTING_* overrides resolve.
	p := profile.DefaultWeightPolicy()
	for quiz, w := range p.BaseWeights {
		v.SetDefault("weighting.base_weights."+string(quiz), w)
	}
	v.SetDefault("weighting.default_weight", p.DefaultWeight)
	v.SetDefault("weighting.repeat_factor", p.RepeatFactor)
	v.SetDefault("weighting.decay_days", p.DecayDays)
	v.SetDefault("weighting.short_decay_days", p.ShortDecayDays)
	v.SetDefault("weighting.horizon_blend", p.HorizonBlend)
}

// Load reads path when given, otherwise searches for learning-profile.yaml
// in the working directory and $HOME/.config/learning-profile. A missing
// search file is fine; a missing explicit file is not.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/" + ConfigName)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.WeightingFile != "" {
		policy, err := LoadWeightPolicy(cfg.WeightingFile)
		if err != nil {
			return nil, err
		}
		cfg.Weighting = policy
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that viper cannot express.
func (c *Config) Validate() error {
	switch {
	case c.Port == "":
		return errors.New("port is required")
	case c.DataDir == "":
		return errors.New("data_dir is required")
	case c.JWTSecret == "":
		return errors.New("jwt_secret is required")
	case c.RequireInvitation && c.AdminToken == "":
		return errors.New("admin_token is required when require_invitation is set")
	case c.InvitationTTL <= 0:
		return fmt.Errorf("invitation_ttl must be positive, got %s", c.InvitationTTL)
	case c.CacheTTL <= 0:
		return fmt.Errorf("cache_ttl must be positive, got %s", c.CacheTTL)
	case c.RateLimitPerMin <= 0:
		return fmt.Errorf("rate_limit_per_min must be positive, got %d", c.RateLimitPerMin)
	case c.IPRateLimitPerMin <= 0:
		return fmt.Errorf("ip_rate_limit_per_min must be positive, got %d", c.IPRateLimitPerMin)
	case c.RetentionDays < 0:
		return fmt.Errorf("retention_days must not be negative, got %d", c.RetentionDays)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if err := c.Weighting.Validate(); err != nil {
		return fmt.Errorf("invalid weighting policy: %w", err)
	}
	return nil
}

// UsesDefaultSecret reports whether invitations are signed with the
// placeholder secret.
func (c *Config) UsesDefaultSecret() bool { return c.JWTSecret == DefaultSecret }

// LoadWeightPolicy reads a standalone YAML weighting policy. Keys absent
// from the file keep their default values.
func LoadWeightPolicy(path string) (profile.WeightPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return profile.WeightPolicy{}, fmt.Errorf("failed to read weighting policy: %w", err)
	}

	policy := profile.DefaultWeightPolicy()
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return profile.WeightPolicy{}, fmt.Errorf("failed to parse weighting policy %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return profile.WeightPolicy{}, fmt.Errorf("invalid weighting policy %s: %w", path, err)
	}
	return policy, nil
}
