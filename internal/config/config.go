package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is resolved in three layers: defaults, then the optional YAML file
// named by CONFIG_FILE, then environment variables.
type Config struct {
	Port        string `yaml:"port"`
	Store       string `yaml:"store"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	ClerkSecretKey string `yaml:"clerk_secret_key"`
	// ClerkWebhookSecret enables /webhooks/clerk when set.
	ClerkWebhookSecret string `yaml:"clerk_webhook_secret"`
	// DevAuthSecret enables HS256 bearer tokens for local development.
	DevAuthSecret string `yaml:"dev_auth_secret"`
	// DevMode allows DevAuthSecret next to Clerk.
	DevMode bool `yaml:"dev_mode"`

	// Timezone is the IANA zone used for day and hour cells.
	Timezone  string `yaml:"timezone"`
	WeekStart string `yaml:"week_start"`

	GridFromHour      int `yaml:"grid_from_hour"`
	GridToHour        int `yaml:"grid_to_hour"`
	ImportHorizonDays int `yaml:"import_horizon_days"`

	TargetSweepCron  string `yaml:"target_sweep_cron"`
	RecheckSweepCron string `yaml:"recheck_sweep_cron"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	MetricsUser string `yaml:"metrics_user"`
	MetricsPass string `yaml:"metrics_pass"`

	FCMCredentialsFile string `yaml:"fcm_credentials_file"`
}

func Default() *Config {
	return &Config{
		Port:               "3333",
		Store:              StorePostgres,
		Timezone:           "UTC",
		WeekStart:          "sunday",
		GridFromHour:       8,
		GridToHour:         19,
		ImportHorizonDays:  90,
		TargetSweepCron:    "0 * * * *",
		RecheckSweepCron:   "*/5 * * * *",
		RateLimitRPS:       5,
		RateLimitBurst:     30,
		FCMCredentialsFile: "./serviceAccountKey.json",
	}
}

// Load reads .env (if present), the YAML file at path (if present) and the
// environment. An empty path falls back to CONFIG_FILE.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("Config file %s not found, using defaults", path)
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("PORT", &c.Port)
	str("STORE", &c.Store)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("CLERK_SECRET_KEY", &c.ClerkSecretKey)
	str("CLERK_WEBHOOK_SECRET", &c.ClerkWebhookSecret)
	str("DEV_AUTH_SECRET", &c.DevAuthSecret)
	str("TIMEZONE", &c.Timezone)
	str("WEEK_START", &c.WeekStart)
	str("TARGET_SWEEP_CRON", &c.TargetSweepCron)
	str("RECHECK_SWEEP_CRON", &c.RecheckSweepCron)
	str("METRICS_USER", &c.MetricsUser)
	str("METRICS_PASS", &c.MetricsPass)
	str("FCM_CREDENTIALS_FILE", &c.FCMCredentialsFile)

	for key, dst := range map[string]*int{
		"GRID_FROM_HOUR":      &c.GridFromHour,
		"GRID_TO_HOUR":        &c.GridToHour,
		"IMPORT_HORIZON_DAYS": &c.ImportHorizonDays,
		"RATE_LIMIT_BURST":    &c.RateLimitBurst,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v := strings.TrimSpace(os.Getenv("DEV_MODE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: DEV_MODE must be a boolean: %w", err)
		}
		c.DevMode = b
	}

	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: RATE_LIMIT_RPS must be a number: %w", err)
		}
		c.RateLimitRPS = f
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL environment variable is not set")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	if c.ClerkSecretKey == "" && c.DevAuthSecret == "" {
		return errors.New("config: CLERK_SECRET_KEY or DEV_AUTH_SECRET must be set")
	}
	if c.ClerkSecretKey != "" && c.DevAuthSecret != "" && !c.DevMode {
		return errors.New("config: DEV_AUTH_SECRET cannot be combined with CLERK_SECRET_KEY unless DEV_MODE is set")
	}
	if c.GridFromHour < 0 || c.GridToHour > 23 || c.GridFromHour > c.GridToHour {
		return fmt.Errorf("config: invalid grid hours %d-%d", c.GridFromHour, c.GridToHour)
	}
	if c.ImportHorizonDays <= 0 {
		return errors.New("config: import_horizon_days must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.FirstWeekday(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) FirstWeekday() (time.Weekday, error) {
	switch strings.ToLower(c.WeekStart) {
	case "", "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	default:
		return 0, fmt.Errorf("config: week_start must be sunday or monday, got %q", c.WeekStart)
	}
}
