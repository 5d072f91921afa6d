package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is loaded once at startup and treated as read-only afterwards.
type Config struct {
	Port               string   `mapstructure:"PORT"`
	Env                string   `mapstructure:"ENV"`
	DatabaseURL        string   `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32    `mapstructure:"DB_MIN_CONNS"`
	SecretKey          string   `mapstructure:"SECRET_KEY"`
	AccessTokenMinutes int      `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	AuthIssuer         string   `mapstructure:"AUTH_ISSUER"`
	BcryptCost         int      `mapstructure:"BCRYPT_COST"`
	CORSOrigins        []string `mapstructure:"CORS_ORIGINS"`
	HIPAAEncryptionKey string   `mapstructure:"HIPAA_ENCRYPTION_KEY"`
	ChatMode           string   `mapstructure:"CHAT_MODE"`
	TLSEnabled         bool     `mapstructure:"TLS_ENABLED"`
	TLSCertFile        string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile         string   `mapstructure:"TLS_KEY_FILE"`
}

// minProductionSecretLen is the shortest HS256 key accepted outside development.
const minProductionSecretLen = 32

// MemoryDatabaseURL selects the in-process stores instead of PostgreSQL.
// Data does not survive a restart.
const MemoryDatabaseURL = "memory://"

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 60)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("CHAT_MODE", "canned")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"SECRET_KEY", "ACCESS_TOKEN_EXPIRE_MINUTES", "AUTH_ISSUER", "BCRYPT_COST",
		"CORS_ORIGINS", "HIPAA_ENCRYPTION_KEY", "CHAT_MODE",
		"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is required: refusing to sign tokens with an empty key")
	}

	return cfg, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesMemoryStore reports whether DATABASE_URL selects the in-process stores.
func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == MemoryDatabaseURL
}

// AccessTokenTTL returns the lifetime of issued bearer tokens.
func (c *Config) AccessTokenTTL() time.Duration {
	if c.AccessTokenMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

// Validate checks that the configuration is safe to run. The signing secret
// is always required; in production it must also be at least 32 bytes and
// HIPAA_ENCRYPTION_KEY must be a valid 64-character hex string.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if c.IsProduction() && len(c.SecretKey) < minProductionSecretLen {
		return fmt.Errorf("SECRET_KEY must be at least %d bytes in production, got %d", minProductionSecretLen, len(c.SecretKey))
	}
	if c.IsProduction() && c.UsesMemoryStore() {
		return fmt.Errorf("DATABASE_URL %q is not allowed in production", MemoryDatabaseURL)
	}
	if c.AccessTokenMinutes < 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must not be negative, got %d", c.AccessTokenMinutes)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.ChatMode != "canned" && c.ChatMode != "keyword" {
		return fmt.Errorf("CHAT_MODE must be \"canned\" or \"keyword\", got %q", c.ChatMode)
	}

	// HIPAA encryption key validation
	if c.IsProduction() && c.HIPAAEncryptionKey == "" {
		return fmt.Errorf("HIPAA_ENCRYPTION_KEY is required in production")
	}
	if c.HIPAAEncryptionKey != "" {
		keyBytes, err := hex.DecodeString(c.HIPAAEncryptionKey)
		if err != nil {
			return fmt.Errorf("HIPAA_ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("HIPAA_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
