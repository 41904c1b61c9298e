package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server. Values come from an
// optional yaml file, environment variables and defaults, in that order of
// precedence. It is passed explicitly into constructors; nothing reads the
// process environment after startup.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	// Reset-password and verify-email TTLs are configured independently.
	ResetPasswordTTLMin int `mapstructure:"RESET_PASSWORD_TTL_MIN"`
	VerifyEmailTTLMin   int `mapstructure:"VERIFY_EMAIL_TTL_MIN"`

	// CacheBackend selects the token cache tier: "memory" or "redis".
	CacheBackend string `mapstructure:"CACHE_BACKEND"`
	RedisAddr    string `mapstructure:"REDIS_ADDR"`

	// SweepInterval controls the expired-record reaper; zero disables it.
	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/accountd/")
	v.AddConfigPath("$HOME/.accountd")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "accountd_dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("JWT_SECRET", "dev_only_secret_change_me")
	v.SetDefault("ACCESS_TOKEN_TTL", "30m")
	v.SetDefault("REFRESH_TOKEN_TTL", "720h") // 30 days
	v.SetDefault("RESET_PASSWORD_TTL_MIN", 10)
	v.SetDefault("VERIFY_EMAIL_TTL_MIN", 10)
	v.SetDefault("CACHE_BACKEND", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("SWEEP_INTERVAL", "1h")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults and env vars apply.
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
