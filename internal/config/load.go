package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable Load reads,
// e.g. TASKSYNC_SERVER_PORT or TASKSYNC_DATABASE_URL.
const EnvPrefix = "TASKSYNC"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout_sec", 15)
	v.SetDefault("server.cors_allowed_origins", []string{})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime_min", 5)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60*24)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("realtime.write_timeout_ms", 2000)
	v.SetDefault("realtime.delivery_workers", 4)
	v.SetDefault("realtime.delivery_queue_size", 256)
	v.SetDefault("realtime.allowed_origins", []string{})

	v.SetDefault("admin.name", "Administrator")
	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
}

// Load configuration from environment variables and optionally a config.yaml
// in the working directory. Environment variables take precedence over values
// from the config file. Returns a populated Config or an error if loading or
// validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
