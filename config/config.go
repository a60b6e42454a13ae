package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Platform  PlatformConfig  `mapstructure:"platform"`
	Rental    RentalConfig    `mapstructure:"rental"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// ProviderConfig holds the endpoint and credential for one SMS provider.
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// ProvidersConfig enumerates the closed set of SMS providers.
type ProvidersConfig struct {
	Viotp    ProviderConfig `mapstructure:"viotp"`
	Chaylua  ProviderConfig `mapstructure:"chaylua"`
	Sim24h   ProviderConfig `mapstructure:"sim24h"`
	Funotp   ProviderConfig `mapstructure:"funotp"`
	Ironsim  ProviderConfig `mapstructure:"ironsim"`
	Otpdashe ProviderConfig `mapstructure:"otpdashe"`
}

// PlatformConfig holds the e-commerce platform endpoints.
type PlatformConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	DataTimeout time.Duration `mapstructure:"data_timeout"`
	AuthTimeout time.Duration `mapstructure:"auth_timeout"`
}

// RentalConfig tunes the rental orchestrator.
type RentalConfig struct {
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	ReaperInterval  time.Duration `mapstructure:"reaper_interval"`
	OtpPollInterval time.Duration `mapstructure:"otp_poll_interval"`
	QueueCapacity   int           `mapstructure:"queue_capacity"`
	QueueUserGap    time.Duration `mapstructure:"queue_user_gap"`
}

// WebhookConfig guards the inbound bank-deposit webhook.
type WebhookConfig struct {
	Token string `mapstructure:"token"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PRG (Phone Rental Gateway).
// Nested keys use underscore: PRG_DATABASE_HOST, PRG_JWT_SECRET, PRG_WEBHOOK_TOKEN, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "phone_rental")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "phone-rental-gateway")
	v.SetDefault("platform.base_url", "https://banhang.shopee.vn")
	v.SetDefault("platform.data_timeout", "10s")
	v.SetDefault("platform.auth_timeout", "15s")
	v.SetDefault("rental.session_ttl", "6m")
	v.SetDefault("rental.reaper_interval", "30s")
	v.SetDefault("rental.otp_poll_interval", "5s")
	v.SetDefault("rental.queue_capacity", 15)
	v.SetDefault("rental.queue_user_gap", "2s")
	v.SetDefault("webhook.token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: PRG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("PRG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
