package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	// Tokens
	JWTSecret   string `env:"JWT_SECRET" env-required:"true"`
	JWTIssuer   string `env:"JWT_ISSUER" env-default:"schoolportal"`
	JWTAudience string `env:"JWT_AUDIENCE" env-default:"schoolportal-web"`

	// Data protection; falls back to JWT_SECRET when unset
	DataProtectionKey string `env:"DATA_PROTECTION_KEY"`

	// Application
	AppBaseURL      string `env:"APP_BASE_URL" env-required:"true"`
	SystemUserEmail string `env:"SYSTEM_USER_EMAIL"`
	HTTPAddr        string `env:"HTTP_ADDR" env-default:":8080"`
	CookieDomain    string `env:"COOKIE_DOMAIN"`
	CookieSecure    bool   `env:"COOKIE_SECURE" env-default:"true"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"json"`

	// Database
	DatabaseURL   string `env:"DATABASE_URL"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" env-default:"true"`

	// Email
	ResendAPIKey string `env:"RESEND_API_KEY"`
	MailFrom     string `env:"MAIL_FROM" env-default:"School Portal <no-reply@schoolportal.local>"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" env-default:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
}

// LoadConfig reads .env when present, then the process environment.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg AppConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if strings.TrimSpace(cfg.AppBaseURL) == "" {
		return nil, errors.New("APP_BASE_URL is required")
	}
	if cfg.DataProtectionKey == "" {
		cfg.DataProtectionKey = cfg.JWTSecret
	}
	return &cfg, nil
}
