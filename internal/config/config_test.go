package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Subscription.TrialDays != 30 {
		t.Errorf("TrialDays = %d, expected 30", cfg.Subscription.TrialDays)
	}
	if cfg.Subscription.DefaultMaxMembers != 5 {
		t.Errorf("DefaultMaxMembers = %d, expected 5", cfg.Subscription.DefaultMaxMembers)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q, expected sqlite", cfg.Database.Driver)
	}
	if cfg.Payment.Enabled() {
		t.Error("payment gateway should be disabled without keys")
	}
	if cfg.SMTP.Enabled() {
		t.Error("smtp should be disabled without a host")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty secret", func(c *Config) { c.JWT.Secret = "" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"zero trial", func(c *Config) { c.Subscription.TrialDays = 0 }},
		{"zero members", func(c *Config) { c.Subscription.DefaultMaxMembers = 0 }},
		{"free plan", func(c *Config) { c.Payment.Plans["FREE"] = PlanConfig{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: "9000"
database:
  driver: sqlite
  dsn: test.db
subscription:
  trial_days: 14
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("RAZORPAY_KEY_ID", "rzp_test")
	t.Setenv("RAZORPAY_KEY_SECRET", "shh")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("Port = %q, expected 9000", cfg.Server.Port)
	}
	if cfg.Subscription.TrialDays != 14 {
		t.Errorf("TrialDays = %d, expected 14", cfg.Subscription.TrialDays)
	}
	// Untouched sections keep their defaults.
	if cfg.Subscription.DefaultMaxMembers != 5 {
		t.Errorf("DefaultMaxMembers = %d, expected 5", cfg.Subscription.DefaultMaxMembers)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Errorf("Secret = %q, expected from-env", cfg.JWT.Secret)
	}
	if !cfg.Payment.Enabled() {
		t.Error("payment gateway should be enabled by env keys")
	}
	if cfg.UsesDefaultSecret() {
		t.Error("secret was overridden")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %q, expected default", cfg.Server.Host)
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		url      string
		addr     string
		password string
		db       int
	}{
		{"redis://localhost:6379", "localhost:6379", "", 0},
		{"redis://:secret@cache:6380/2", "cache:6380", "secret", 2},
		{"redis://user:pw@host:6379/5", "host:6379", "pw", 5},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.parseRedisURL(tt.url)
		if cfg.Redis.Addr != tt.addr {
			t.Errorf("%s: Addr = %q, expected %q", tt.url, cfg.Redis.Addr, tt.addr)
		}
		if cfg.Redis.Password != tt.password {
			t.Errorf("%s: Password = %q, expected %q", tt.url, cfg.Redis.Password, tt.password)
		}
		if cfg.Redis.DB != tt.db {
			t.Errorf("%s: DB = %d, expected %d", tt.url, cfg.Redis.DB, tt.db)
		}
	}
}

func TestSMTPPortEnablesTLS(t *testing.T) {
	t.Setenv("SMTP_PORT", "465")
	cfg := DefaultConfig()
	cfg.overrideFromEnv()
	if !cfg.SMTP.UseTLS {
		t.Error("port 465 should switch on implicit TLS")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	if err := loadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}

	good := filepath.Join(dir, "good.env")
	if err := os.WriteFile(good, []byte("TASKHIVE_DOTENV_TEST=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TASKHIVE_DOTENV_TEST") })
	if err := loadDotEnv(good); err != nil {
		t.Fatalf("expected valid .env to load, got %v", err)
	}
	if got := os.Getenv("TASKHIVE_DOTENV_TEST"); got != "loaded" {
		t.Errorf("expected TASKHIVE_DOTENV_TEST=loaded, got %q", got)
	}

	bad := filepath.Join(dir, "bad.env")
	if err := os.WriteFile(bad, []byte("BROKEN!KEY=value\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := loadDotEnv(bad); err == nil {
		t.Error("expected a parse error for a malformed .env")
	}
}
