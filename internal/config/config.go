package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds process configuration read from the environment.
type Config struct {
	Port      string `validate:"required,numeric"`
	DBPath    string `validate:"required"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`

	// RunnerEnabled starts the in-process runner. Serverless deployments
	// disable it and drive /tick and /cleanup from the platform scheduler.
	RunnerEnabled bool
	TickSpec      string `validate:"required"`
	CleanupSpec   string `validate:"required"`
	BatchLimit    int    `validate:"min=1,max=500"`

	LeaseEnabled bool
	LeaseTTL     time.Duration `validate:"min=1s"`

	// CronSecret is either a plaintext secret or a bcrypt hash of one.
	// Empty leaves /tick and /cleanup open.
	CronSecret string
	CronHeader string `validate:"required"`

	CronRateLimit int `validate:"min=1"`
}

// Load reads configuration from the environment, after loading a .env file
// if one exists. Existing environment variables win over .env entries.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getenv("MEALPLAN_PORT", "8080"),
		DBPath:      getenv("MEALPLAN_DB_PATH", "mealplan.db"),
		LogLevel:    strings.ToLower(getenv("MEALPLAN_LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(getenv("MEALPLAN_LOG_FORMAT", "text")),
		TickSpec:    getenv("MEALPLAN_TICK_SPEC", "0 * * * *"),
		CleanupSpec: getenv("MEALPLAN_CLEANUP_SPEC", "0 3 * * *"),
		CronSecret:  os.Getenv("MEALPLAN_CRON_SECRET"),
		CronHeader:  getenv("MEALPLAN_CRON_HEADER", "X-Vercel-Cron"),
	}

	var err error
	if cfg.RunnerEnabled, err = getbool("MEALPLAN_RUNNER_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.LeaseEnabled, err = getbool("MEALPLAN_LEASE_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.BatchLimit, err = getint("MEALPLAN_BATCH_LIMIT", 200); err != nil {
		return nil, err
	}
	if cfg.CronRateLimit, err = getint("MEALPLAN_CRON_RATE_LIMIT", 30); err != nil {
		return nil, err
	}
	if cfg.LeaseTTL, err = getduration("MEALPLAN_LEASE_TTL", 55*time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getint(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getduration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
