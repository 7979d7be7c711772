package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/paincake00/geoclock/internal/schedule"
)

// Хранилища геозон и записей посещаемости.
const (
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// EnvDevelopment окружение, в котором приём образцов допускается без API_KEY.
const EnvDevelopment = "development"

type Config struct {
	HTTPPort    string `envconfig:"HTTP_PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	StoreBackend         string `envconfig:"STORE_BACKEND" default:"postgres"`
	DatabaseURL          string `envconfig:"DATABASE_URL"`
	FirestoreProjectID   string `envconfig:"FIRESTORE_PROJECT_ID"`
	FirestoreCredentials string `envconfig:"FIRESTORE_CREDENTIALS"`

	RedisAddr     string `envconfig:"REDIS_ADDR" required:"true"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	APIKey    string `envconfig:"API_KEY"`
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	WebhookURL      string `envconfig:"WEBHOOK_URL" default:"http://localhost:9090"`
	SlackWebhookURL string `envconfig:"SLACK_WEBHOOK_URL"`
	RollbarToken    string `envconfig:"ROLLBAR_TOKEN"`

	Timezone          string `envconfig:"TIMEZONE" default:"Local"`
	MorningShiftStart string `envconfig:"SHIFT_MORNING_START" default:"08:00"`
	MorningShiftEnd   string `envconfig:"SHIFT_MORNING_END" default:"12:00"`
	EveningShiftStart string `envconfig:"SHIFT_EVENING_START" default:"13:00"`
	EveningShiftEnd   string `envconfig:"SHIFT_EVENING_END" default:"17:00"`

	LocationTimeout  time.Duration `envconfig:"LOCATION_TIMEOUT" default:"10s"`
	LocationMaxAge   time.Duration `envconfig:"LOCATION_MAX_AGE" default:"60s"`
	GeofenceCacheTTL time.Duration `envconfig:"GEOFENCE_CACHE_TTL" default:"60s"`
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for %s backend", BackendPostgres)
		}
	case BackendFirestore:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required for %s backend", BackendFirestore)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.APIKey == "" && c.Environment != EnvDevelopment {
		return fmt.Errorf("API_KEY is required outside %s environment", EnvDevelopment)
	}
	if c.LocationMaxAge < 0 {
		return fmt.Errorf("LOCATION_MAX_AGE must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return c.Schedule().Validate()
}

// Location часовой пояс календарных дат смен.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Schedule расписание смен из конфигурации.
func (c *Config) Schedule() schedule.Schedule {
	return schedule.Schedule{
		Morning: schedule.Window{Start: c.MorningShiftStart, End: c.MorningShiftEnd},
		Evening: schedule.Window{Start: c.EveningShiftStart, End: c.EveningShiftEnd},
	}
}
