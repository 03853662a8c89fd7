// Package config loads the server configuration from an optional .env file,
// an optional config file, environment variables and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the complete runtime configuration. It is built once at startup and
// handed to constructors explicitly.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Minio    MinioConfig    `mapstructure:"minio"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Share    ShareConfig    `mapstructure:"share"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Validate ValidateConfig `mapstructure:"validate"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" validate:"required,numeric"`
	// BaseURL prefixes the public share links returned on grant creation.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// RequestTimeout bounds every store and object-store call of a request.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	// ProxyHeader names the header carrying the client IP when running behind
	// a reverse proxy, e.g. X-Forwarded-For. Empty uses the socket address.
	ProxyHeader string `mapstructure:"proxy_header"`
}

type StoreConfig struct {
	// Driver selects the persistence backend: mongo for deployments, memory for
	// local development.
	Driver string `mapstructure:"driver" validate:"required,oneof=mongo memory"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri" validate:"required"`
	Database string `mapstructure:"database" validate:"required"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint" validate:"required"`
	AccessKey string `mapstructure:"access_key" validate:"required"`
	SecretKey string `mapstructure:"secret_key" validate:"required"`
	Bucket    string `mapstructure:"bucket" validate:"required"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	// LocatorTTL is the lifetime of presigned URLs handed out by the access gateway.
	LocatorTTL time.Duration `mapstructure:"locator_ttl" validate:"gt=0"`
}

type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret" validate:"required"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl" validate:"gt=0"`
	// Admin seeds an administrator account at startup when its email is set.
	Admin AdminSeed `mapstructure:"admin"`
}

type AdminSeed struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email" validate:"omitempty,email"`
	Password string `mapstructure:"password" validate:"omitempty,min=6"`
}

type ShareConfig struct {
	// TokenSecret signs share tokens. Falls back to Auth.JWTSecret when empty.
	TokenSecret string `mapstructure:"token_secret"`
	// AuditFailClosed makes a failed activity-log write fail the access request.
	// When false the failure is logged and the caller still gets the locator.
	AuditFailClosed bool `mapstructure:"audit_fail_closed"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Production bool   `mapstructure:"production"`
}

// ValidateConfig throttles the unauthenticated share validation endpoint.
type ValidateConfig struct {
	Rate  float64 `mapstructure:"rate" validate:"gte=0"`
	Burst int     `mapstructure:"burst" validate:"gte=0"`
}

// envBindings keeps the environment variable names operators already use.
var envBindings = map[string]string{
	"server.port":             "PORT",
	"server.base_url":         "BASE_URL",
	"server.request_timeout":  "REQUEST_TIMEOUT",
	"server.proxy_header":     "PROXY_HEADER",
	"store.driver":            "STORE_DRIVER",
	"mongo.uri":               "MONGO_URI",
	"mongo.database":          "MONGO_DATABASE",
	"minio.endpoint":          "MINIO_ENDPOINT",
	"minio.access_key":        "MINIO_ACCESS_KEY",
	"minio.secret_key":        "MINIO_SECRET_KEY",
	"minio.bucket":            "MINIO_BUCKET",
	"minio.use_ssl":           "MINIO_USE_SSL",
	"minio.locator_ttl":       "LOCATOR_TTL",
	"auth.jwt_secret":         "JWT_SECRET",
	"auth.access_token_ttl":   "ACCESS_TOKEN_TTL",
	"auth.admin.name":         "ADMIN_NAME",
	"auth.admin.email":        "ADMIN_EMAIL",
	"auth.admin.password":     "ADMIN_PASSWORD",
	"share.token_secret":      "SHARE_TOKEN_SECRET",
	"share.audit_fail_closed": "AUDIT_FAIL_CLOSED",
	"logging.level":           "LOG_LEVEL",
	"logging.production":      "LOG_PRODUCTION",
	"validate.rate":           "VALIDATE_RATE",
	"validate.burst":          "VALIDATE_BURST",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("store.driver", "mongo")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017/secure_files")
	v.SetDefault("mongo.database", "secure_files")
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key", "minioadmin")
	v.SetDefault("minio.secret_key", "minioadmin")
	v.SetDefault("minio.bucket", "secure-files")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.locator_ttl", 10*time.Minute)
	v.SetDefault("auth.access_token_ttl", 4*time.Hour)
	v.SetDefault("auth.admin.name", "Administrator")
	v.SetDefault("share.audit_fail_closed", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.production", false)
	v.SetDefault("validate.rate", 5.0)
	v.SetDefault("validate.burst", 20)
}

// Load builds a Config. configPath may be empty; a missing .env file is not an error.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills derived values.
func ApplyDefaults(cfg *Config) {
	if cfg.Share.TokenSecret == "" {
		cfg.Share.TokenSecret = cfg.Auth.JWTSecret
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
}

// ShareSecret returns the key used to sign and verify share tokens.
func (c *Config) ShareSecret() []byte {
	return []byte(c.Share.TokenSecret)
}
