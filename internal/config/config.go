package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Realtime RealtimeConfig `mapstructure:"realtime" validate:"required"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// ShutdownTimeoutSec bounds graceful shutdown of the HTTP server and the dispatcher.
	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec" validate:"gte=1"`
	// CORSAllowedOrigins enables CORS for the REST API when non-empty. "*" allows any origin.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	// Driver selects the persistence backend. "memory" keeps everything in process
	// and is meant for local development and tests.
	Driver          string `mapstructure:"driver" validate:"required,oneof=postgres memory"`
	URL             string `mapstructure:"url" validate:"required_if=Driver postgres,omitempty,url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_min" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	BCryptCost           int    `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
}

// RealtimeConfig contains settings for the realtime channel and event delivery.
type RealtimeConfig struct {
	WriteTimeoutMS    int      `mapstructure:"write_timeout_ms" validate:"gt=0"`
	DeliveryWorkers   int      `mapstructure:"delivery_workers" validate:"gte=1"`
	DeliveryQueueSize int      `mapstructure:"delivery_queue_size" validate:"gte=1"`
	AllowedOrigins    []string `mapstructure:"allowed_origins"`
}

// WriteTimeout returns the per-recipient delivery deadline.
func (c RealtimeConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMS) * time.Millisecond
}

// TokenLifetime returns how long issued access tokens stay valid.
func (c AuthConfig) TokenLifetime() time.Duration {
	return time.Duration(c.TokenLifetimeMinutes) * time.Minute
}

// ShutdownTimeout returns the graceful shutdown bound.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// AdminConfig holds the credentials used by the -seed-admin command.
// All fields are optional at load time; seeding checks they are present.
type AdminConfig struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email" validate:"omitempty,email"`
	Password string `mapstructure:"password" validate:"omitempty,min=8,max=72"`
}
