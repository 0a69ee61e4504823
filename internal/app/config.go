package app

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the console and its worker.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development" validate:"oneof=development staging production test"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080" validate:"required"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s" validate:"gt=0"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s" validate:"gt=0"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty" validate:"oneof=pretty json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379" validate:"required,hostname_port"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0" validate:"gte=0,lte=15"`

	SessionCookie string        `envconfig:"SESSION_COOKIE" default:"console_session" validate:"required,printascii"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"12h" validate:"gte=1m"`

	BillingAPIURL          string        `envconfig:"BILLING_API_URL" required:"true" validate:"required,url"`
	BillingAPITimeout      time.Duration `envconfig:"BILLING_API_TIMEOUT" default:"10s" validate:"gt=0"`
	BillingAPIServiceToken string        `envconfig:"BILLING_API_SERVICE_TOKEN"`

	BillingJWTKey      string `envconfig:"BILLING_JWT_KEY" required:"true" validate:"required,min=16"`
	BillingJWTIssuer   string `envconfig:"BILLING_JWT_ISSUER"`
	BillingJWTAudience string `envconfig:"BILLING_JWT_AUDIENCE"`

	DashboardRefreshInterval time.Duration `envconfig:"DASHBOARD_REFRESH_INTERVAL" default:"30s" validate:"gte=1s"`
	DashboardIdleTimeout     time.Duration `envconfig:"DASHBOARD_IDLE_TIMEOUT" default:"15m" validate:"gte=1m"`

	ReferenceCacheTTL   time.Duration `envconfig:"REFERENCE_CACHE_TTL" default:"10m" validate:"gte=1s"`
	ReferenceWarmupCron string        `envconfig:"REFERENCE_WARMUP_CRON" default:"@every 10m" validate:"required"`
	WorkerConcurrency   int           `envconfig:"WORKER_CONCURRENCY" default:"5" validate:"gte=1,lte=100"`
	WorkerMetricsAddr   string        `envconfig:"WORKER_METRICS_ADDR" default:":9091" validate:"omitempty,hostname_port"`
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
