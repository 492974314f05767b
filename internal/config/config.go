package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Household HouseholdConfig `mapstructure:"household"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Chat      ChatConfig      `mapstructure:"chat"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig describes the single fixed credential.
type AuthConfig struct {
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	UserID     string `mapstructure:"user_id"`
	Email      string `mapstructure:"email"`
	Realm      string `mapstructure:"realm"`
	BcryptCost int    `mapstructure:"bcrypt_cost"`
}

// HouseholdConfig controls first-run bootstrap. An empty BootstrapName leaves
// onboarding to the operator.
type HouseholdConfig struct {
	BootstrapName        string `mapstructure:"bootstrap_name"`
	BootstrapDisplayName string `mapstructure:"bootstrap_display_name"`
}

type WebhookConfig struct {
	ChatURL     string        `mapstructure:"chat_url"`
	LogMovieURL string        `mapstructure:"log_movie_url"`
	BlockURL    string        `mapstructure:"block_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

type ChatConfig struct {
	HistoryLimit    int    `mapstructure:"history_limit"`
	FallbackMessage string `mapstructure:"fallback_message"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type StorageConfig struct {
	Type        string `mapstructure:"type"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

const envPrefix = "FAMILY_MOVIES"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.password", "movies")
	v.SetDefault("auth.user_id", "basic-auth-user")
	v.SetDefault("auth.email", "")
	v.SetDefault("auth.realm", "Family Movies")
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("household.bootstrap_name", "")
	v.SetDefault("household.bootstrap_display_name", "")

	v.SetDefault("webhook.chat_url", "")
	v.SetDefault("webhook.log_movie_url", "")
	v.SetDefault("webhook.block_url", "")
	v.SetDefault("webhook.timeout", 15*time.Second)
	v.SetDefault("webhook.breaker.max_requests", 1)
	v.SetDefault("webhook.breaker.interval", time.Minute)
	v.SetDefault("webhook.breaker.timeout", 30*time.Second)
	v.SetDefault("webhook.breaker.failure_threshold", 5)

	v.SetDefault("chat.history_limit", 40)
	v.SetDefault("chat.fallback_message", "The movie assistant is unavailable right now. Please try again shortly.")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 300)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.auto_migrate", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads configPath when it exists, then layers FAMILY_MOVIES_* env vars
// and the legacy deployment variables on top.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	applyLegacyEnv(cfg, v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyLegacyEnv fills values from the variable names the original deployment
// used, unless the config file or a prefixed variable already set them.
func applyLegacyEnv(cfg *Config, v *viper.Viper) {
	fill := func(key string, dst *string, names ...string) {
		if v.InConfig(key) || os.Getenv(envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))) != "" {
			return
		}
		for _, name := range names {
			if val := os.Getenv(name); val != "" {
				*dst = val
				return
			}
		}
	}

	fill("auth.username", &cfg.Auth.Username, "BASIC_AUTH_USER")
	fill("auth.password", &cfg.Auth.Password, "BASIC_AUTH_PASSWORD", "BASIC_AUTH_PASS")
	fill("auth.email", &cfg.Auth.Email, "BASIC_AUTH_DEFAULT_EMAIL")
	fill("auth.user_id", &cfg.Auth.UserID, "BASIC_AUTH_DEFAULT_USER_ID")
	fill("webhook.chat_url", &cfg.Webhook.ChatURL, "N8N_CHAT_WEBHOOK_URL")
	fill("webhook.log_movie_url", &cfg.Webhook.LogMovieURL, "N8N_LOG_MOVIE_WEBHOOK_URL")
	fill("webhook.block_url", &cfg.Webhook.BlockURL, "N8N_BLOCK_RECOMMENDATION_WEBHOOK_URL")
	fill("storage.dsn", &cfg.Storage.DSN, "DATABASE_URL")
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Auth.Username == "" || c.Auth.Password == "" {
		return errors.New("auth.username and auth.password are required")
	}
	switch c.Storage.Type {
	case "memory":
	case "postgres", "sqlite":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for " + c.Storage.Type + " storage")
		}
	default:
		return errors.New("unknown storage.type " + c.Storage.Type)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = 40
	}
	return nil
}
