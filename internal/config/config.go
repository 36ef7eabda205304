package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/taskhive/backend/pkg/logger"
)

const defaultJWTSecret = "taskhive-secret-key-change-in-production"

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Database     DatabaseConfig     `yaml:"database"`
	JWT          JWTConfig          `yaml:"jwt"`
	SMTP         SMTPConfig         `yaml:"smtp"`
	Payment      PaymentConfig      `yaml:"payment"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Redis        RedisConfig        `yaml:"redis"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Admin        AdminConfig        `yaml:"admin"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	Mode        string `yaml:"mode"` // debug, release, test
	FrontendURL string `yaml:"frontend_url"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
	Debug  bool   `yaml:"debug"`
}

type JWTConfig struct {
	Secret            string `yaml:"secret"`
	ExpireHour        int    `yaml:"expire_hour"`
	RefreshExpireHour int    `yaml:"refresh_expire_hour"`
	ResetExpireHour   int    `yaml:"reset_expire_hour"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseTLS   bool   `yaml:"use_tls"`
}

// Enabled reports whether outgoing mail is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// PlanConfig prices a paid subscription plan in the smallest currency unit.
type PlanConfig struct {
	Amount     int64 `yaml:"amount"`
	MaxMembers int   `yaml:"max_members"`
}

type PaymentConfig struct {
	KeyID     string                `yaml:"key_id"`
	KeySecret string                `yaml:"key_secret"`
	BaseURL   string                `yaml:"base_url"`
	Currency  string                `yaml:"currency"`
	Plans     map[string]PlanConfig `yaml:"plans"`
}

// Enabled reports whether gateway credentials are present.
func (c PaymentConfig) Enabled() bool {
	return c.KeyID != "" && c.KeySecret != ""
}

type SubscriptionConfig struct {
	TrialDays         int `yaml:"trial_days"`
	DefaultMaxMembers int `yaml:"default_max_members"`
	PeriodDays        int `yaml:"period_days"` // length of one paid billing period
	ActivityRetention int `yaml:"activity_retention_days"`
}

// RedisConfig for the optional mail queue and shared rate limiter
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateLimitConfig struct {
	AuthRPS   float64 `yaml:"auth_rps"`
	AuthBurst int     `yaml:"auth_burst"`
}

// AdminConfig seeds the platform super admin on first start.
type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	// .env is optional; real environment variables win over it.
	if err := loadDotEnv(".env"); err != nil {
		logger.Warn().Err(err).Msg("Ignoring unreadable .env file")
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		cfg = DefaultConfig()
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	cfg.overrideFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        "5000",
			Mode:        "debug",
			FrontendURL: "http://localhost:5173",
		},
		Log: LogConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "database.sqlite",
		},
		JWT: JWTConfig{
			Secret:            defaultJWTSecret,
			ExpireHour:        24,
			RefreshExpireHour: 720,
			ResetExpireHour:   24,
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Payment: PaymentConfig{
			BaseURL:  "https://api.razorpay.com",
			Currency: "INR",
			Plans: map[string]PlanConfig{
				"PRO":      {Amount: 49900, MaxMembers: 25},
				"BUSINESS": {Amount: 149900, MaxMembers: 100},
			},
		},
		Subscription: SubscriptionConfig{
			TrialDays:         30,
			DefaultMaxMembers: 5,
			PeriodDays:        30,
			ActivityRetention: 180,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		RateLimit: RateLimitConfig{
			AuthRPS:   1,
			AuthBurst: 10,
		},
		Admin: AdminConfig{
			Name: "Platform Admin",
		},
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret must not be empty")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Subscription.TrialDays <= 0 {
		return errors.New("subscription.trial_days must be positive")
	}
	if c.Subscription.DefaultMaxMembers <= 0 {
		return errors.New("subscription.default_max_members must be positive")
	}
	if c.Subscription.PeriodDays <= 0 {
		return errors.New("subscription.period_days must be positive")
	}
	for name, plan := range c.Payment.Plans {
		if plan.Amount <= 0 || plan.MaxMembers <= 0 {
			return fmt.Errorf("payment plan %s needs a positive amount and max_members", name)
		}
	}
	return nil
}

// UsesDefaultSecret reports whether the signing secret was never changed.
func (c *Config) UsesDefaultSecret() bool {
	return c.JWT.Secret == defaultJWTSecret
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	} else if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if url := os.Getenv("FRONTEND_URL"); url != "" {
		c.Server.FrontendURL = strings.TrimSuffix(url, "/")
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		c.SMTP.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.SMTP.Port = p
			c.SMTP.UseTLS = p == 465
		}
	}
	if user := os.Getenv("SMTP_USER"); user != "" {
		c.SMTP.Username = user
	}
	if pass := os.Getenv("SMTP_PASS"); pass != "" {
		c.SMTP.Password = pass
	}
	if from := os.Getenv("SMTP_FROM"); from != "" {
		c.SMTP.From = from
	}
	if keyID := os.Getenv("RAZORPAY_KEY_ID"); keyID != "" {
		c.Payment.KeyID = keyID
	}
	if keySecret := os.Getenv("RAZORPAY_KEY_SECRET"); keySecret != "" {
		c.Payment.KeySecret = keySecret
	}
	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		c.Admin.Email = email
	}
	if password := os.Getenv("ADMIN_PASSWORD"); password != "" {
		c.Admin.Password = password
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}
