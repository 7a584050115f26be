// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Optional: when empty the server runs on in-memory
	// repositories, which is the development default.
	DatabaseURL string `koanf:"database_url"`

	// Redis, for shared rate limit windows. Optional.
	RedisURL string `koanf:"redis_url"`

	// JWT Authentication
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Stripe
	StripeWebhookSecret string `koanf:"stripe_webhook_secret"`

	// Media storage (Cloudflare R2). Optional as a group.
	MediaBucketName      string `koanf:"media_bucket_name"`
	MediaAccountID       string `koanf:"media_account_id"`
	MediaAccessKeyID     string `koanf:"media_access_key_id"`
	MediaSecretAccessKey string `koanf:"media_secret_access_key"`

	// CORS
	AllowedOrigins []string `koanf:"allowed_origins"`

	// Behavior knobs
	BulkBatchLimit      int  `koanf:"bulk_batch_limit"`
	AutoRegisterContent bool `koanf:"auto_register_content"`
	PresignExpiryMins   int  `koanf:"presign_expiry_minutes"`

	// Tracing
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

// Configuration validation errors.
var (
	ErrMissingJWTSecret           = errors.New("JWT_SECRET is required")
	ErrMissingStripeWebhookSecret = errors.New("STRIPE_WEBHOOK_SECRET is required")
	ErrMissingMediaBucketName     = errors.New("MEDIA_BUCKET_NAME is required")
	ErrMissingMediaAccountID      = errors.New("MEDIA_ACCOUNT_ID is required")
	ErrMissingMediaAccessKeyID    = errors.New("MEDIA_ACCESS_KEY_ID is required")
	ErrMissingMediaSecretKey      = errors.New("MEDIA_SECRET_ACCESS_KEY is required")
	ErrInvalidPort                = errors.New("PORT must be a valid integer")
	ErrInvalidBulkBatchLimit      = errors.New("BULK_BATCH_LIMIT must be > 0")
)

// Default values for non-secret configuration.
const (
	DefaultPort                = 8080
	DefaultEnv                 = "development"
	DefaultBulkBatchLimit      = 200
	DefaultAutoRegisterContent = true
	DefaultPresignExpiryMins   = 5
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	bulkLimit, bulkErr := getEnvIntOrDefault("BULK_BATCH_LIMIT", k.Int("bulk_batch_limit"), DefaultBulkBatchLimit)
	if bulkErr != nil {
		loadErrs = append(loadErrs, bulkErr)
	}

	presignMins, presignErr := getEnvIntOrDefault("PRESIGN_EXPIRY_MINUTES", k.Int("presign_expiry_minutes"), DefaultPresignExpiryMins)
	if presignErr != nil {
		loadErrs = append(loadErrs, presignErr)
	}

	autoRegister := DefaultAutoRegisterContent
	if k.Exists("auto_register_content") {
		autoRegister = k.Bool("auto_register_content")
	}
	if val := os.Getenv("AUTO_REGISTER_CONTENT"); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			autoRegister = true
		case "false", "0", "no", "off":
			autoRegister = false
		}
	}

	origins := k.Strings("allowed_origins")
	if val := os.Getenv("ALLOWED_ORIGINS"); val != "" {
		origins = strings.Split(val, ",")
	}

	cfg := &Config{
		Port:                 port,
		Env:                  getEnvOrDefaultMulti([]string{"GALLERIA_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:          getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:             getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:            getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:    getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		StripeWebhookSecret:  getEnvOrKoanf("STRIPE_WEBHOOK_SECRET", k, "stripe_webhook_secret"),
		MediaBucketName:      getEnvOrKoanf("MEDIA_BUCKET_NAME", k, "media_bucket_name"),
		MediaAccountID:       getEnvOrKoanf("MEDIA_ACCOUNT_ID", k, "media_account_id"),
		MediaAccessKeyID:     getEnvOrKoanf("MEDIA_ACCESS_KEY_ID", k, "media_access_key_id"),
		MediaSecretAccessKey: getEnvOrKoanf("MEDIA_SECRET_ACCESS_KEY", k, "media_secret_access_key"),
		AllowedOrigins:       origins,
		BulkBatchLimit:       bulkLimit,
		AutoRegisterContent:  autoRegister,
		PresignExpiryMins:    presignMins,
		OTLPEndpoint:         getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise
// the koanf value, or default. Returns an error if the environment variable is
// set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.StripeWebhookSecret == "" {
		errs = append(errs, ErrMissingStripeWebhookSecret)
	}
	if c.BulkBatchLimit <= 0 {
		errs = append(errs, ErrInvalidBulkBatchLimit)
	}

	// Media storage is optional. Only validate fields if any value is set.
	if c.MediaBucketName != "" || c.MediaAccountID != "" || c.MediaAccessKeyID != "" || c.MediaSecretAccessKey != "" {
		if c.MediaBucketName == "" {
			errs = append(errs, ErrMissingMediaBucketName)
		}
		if c.MediaAccountID == "" {
			errs = append(errs, ErrMissingMediaAccountID)
		}
		if c.MediaAccessKeyID == "" {
			errs = append(errs, ErrMissingMediaAccessKeyID)
		}
		if c.MediaSecretAccessKey == "" {
			errs = append(errs, ErrMissingMediaSecretKey)
		}
	}

	return errs
}

// MediaConfigured reports whether the full media storage group is present.
func (c *Config) MediaConfigured() bool {
	return c.MediaBucketName != "" && c.MediaAccountID != "" &&
		c.MediaAccessKeyID != "" && c.MediaSecretAccessKey != ""
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  fmt.Sprintf("%d", c.Port),
		"env":                   c.Env,
		"database_url":          maskDatabaseURL(c.DatabaseURL),
		"redis_url":             maskDatabaseURL(c.RedisURL),
		"jwt_secret":            maskSecret(c.JWTSecret),
		"stripe_webhook_secret": maskSecret(c.StripeWebhookSecret),
		"media_bucket_name":     c.MediaBucketName,
		"media_account_id":      maskSecret(c.MediaAccountID),
		"media_access_key_id":   maskSecret(c.MediaAccessKeyID),
		"allowed_origins":       strings.Join(c.AllowedOrigins, ","),
		"bulk_batch_limit":      fmt.Sprintf("%d", c.BulkBatchLimit),
		"auto_register_content": fmt.Sprintf("%t", c.AutoRegisterContent),
		"otlp_endpoint":         c.OTLPEndpoint,
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
