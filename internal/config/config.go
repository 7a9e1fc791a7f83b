package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// required: values that differ between environments (backend URL)
// default:  values shared by every environment; empty credentials disable a provider
// -----------------------------------------------------------------------------

type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	DB      DBConfig
	Booking BookingConfig
	Map     MapConfig
	Jobs    JobsConfig
	CORS    CORSConfig
	Stripe  StripeConfig
	Notify  NotifyConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// PublicURL is how payment providers reach the gateway on return.
	PublicURL   string `envconfig:"PUBLIC_URL" default:"http://localhost:8080"`
	FrontendURL string `envconfig:"FRONTEND_URL" default:""`
}

type BackendConfig struct {
	URL     string        `envconfig:"BACKEND_URL" required:"true"`
	Timeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"15s"`
}

// DBConfig is optional: without DATABASE_URL session slots live in memory.
type DBConfig struct {
	URL string `envconfig:"DATABASE_URL" default:""`
}

type BookingConfig struct {
	MinDuration time.Duration `envconfig:"BOOKING_MIN_DURATION" default:"1h"`
	IdleAfter   time.Duration `envconfig:"BOOKING_IDLE_AFTER" default:"2h"`
}

type MapConfig struct {
	AnchorX    float64 `envconfig:"MAP_ANCHOR_X" default:"400"`
	AnchorY    float64 `envconfig:"MAP_ANCHOR_Y" default:"300"`
	SpotPrefix string  `envconfig:"MAP_SPOT_PREFIX" default:"spot-"`
}

type JobsConfig struct {
	SweepSpec string `envconfig:"JOB_SWEEP_SPEC" default:"@every 10m"`
	PollSpec  string `envconfig:"JOB_POLL_SPEC" default:"@every 1m"`
}

type CORSConfig struct {
	AllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000"`
	AllowMethods []string `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowHeaders []string `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,Authorization"`
}

type StripeConfig struct {
	SecretKey     string `envconfig:"STRIPE_SECRET_KEY" default:""`
	WebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET" default:""`
	Currency      string `envconfig:"STRIPE_CURRENCY" default:"eur"`
}

type NotifyConfig struct {
	SendGridAPIKey   string `envconfig:"SENDGRID_API_KEY" default:""`
	FromEmail        string `envconfig:"SENDGRID_FROM_EMAIL" default:""`
	FromName         string `envconfig:"SENDGRID_FROM_NAME" default:"ParkFlow"`
	TwilioAccountSID string `envconfig:"TWILIO_ACCOUNT_SID" default:""`
	TwilioAuthToken  string `envconfig:"TWILIO_AUTH_TOKEN" default:""`
	TwilioFromNumber string `envconfig:"TWILIO_FROM_NUMBER" default:""`
	TimeZone         string `envconfig:"VOUCHER_TIMEZONE" default:"Africa/Tunis"`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadConfig()
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	if strings.TrimSpace(cfg.Backend.URL) == "" {
		return Config{}, fmt.Errorf("BACKEND_URL is empty")
	}
	if cfg.Booking.MinDuration <= 0 {
		return Config{}, fmt.Errorf("BOOKING_MIN_DURATION must be positive, got %s", cfg.Booking.MinDuration)
	}
	return cfg, nil
}

func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func NewLogger(c LogConfig) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.SlogLevel()}))
}
