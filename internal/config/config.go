package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	Masker MaskerConfig
	Auth   AuthConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DBConfig holds postgres settings.
type DBConfig struct {
	DSN string
}

// RedisConfig holds cache and notification channel settings.
type RedisConfig struct {
	Addr          string
	NotifyChannel string `mapstructure:"notify_channel"`
}

// MaskerConfig holds the detection/masking service client settings.
type MaskerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig holds JWT validation settings.
type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	JWTAudience string `mapstructure:"jwt_audience"`
}

// Load reads configuration from env. Env var overrides use prefix PIIMASK_,
// e.g. PIIMASK_MASKER_BASE_URL.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("db.dsn", "host=postgres user=postgres password=postgres dbname=piimask port=5432 sslmode=disable")
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("redis.notify_channel", "piimask:events")
	v.SetDefault("masker.base_url", "http://masker:9090")
	v.SetDefault("masker.timeout", 60*time.Second)
	v.SetDefault("auth.jwt_secret", "dev-secret")
	v.SetDefault("auth.jwt_audience", "")

	v.SetEnvPrefix("PIIMASK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
