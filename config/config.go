package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. DOMESTIQ_DATABASE_PASSWORD
// or DOMESTIQ_FEES_PLATFORM_FEE_PERCENT.
const EnvPrefix = "DOMESTIQ"

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Fees     FeesConfig     `yaml:"fees"`
	Payments PaymentsConfig `yaml:"payments"`
	Auth     AuthConfig     `yaml:"auth"`
	Worker   WorkerConfig   `yaml:"worker"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address" split_words:"true"`
	AllowedOrigins []string `yaml:"allowed_origins" split_words:"true"`
	PublicURL      string   `yaml:"public_url" split_words:"true"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" split_words:"true"`
	Port     int    `yaml:"port" split_words:"true"`
	User     string `yaml:"user" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	Name     string `yaml:"name" split_words:"true"`
	SSLMode  string `yaml:"ssl_mode" split_words:"true"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	DB       int    `yaml:"db" split_words:"true"`
	// How long a cached unread-notification count lives.
	UnreadTTLSeconds int `yaml:"unread_ttl_seconds" split_words:"true"`
}

func (r RedisConfig) UnreadTTL() time.Duration {
	return time.Duration(r.UnreadTTLSeconds) * time.Second
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers" split_words:"true"`
	BookingEventsTopic string   `yaml:"booking_events_topic" split_words:"true"`
	NotificationsTopic string   `yaml:"notifications_topic" split_words:"true"`
	GroupID            string   `yaml:"group_id" split_words:"true"`
}

type FeesConfig struct {
	PlatformFeePercent float64 `yaml:"platform_fee_percent" split_words:"true"`
	MinFeeCents        int64   `yaml:"min_fee_cents" split_words:"true"`
	MaxFeeCents        int64   `yaml:"max_fee_cents" split_words:"true"`
}

type PaymentsConfig struct {
	PaystackBaseURL   string `yaml:"paystack_base_url" split_words:"true"`
	PaystackSecretKey string `yaml:"paystack_secret_key" split_words:"true"`
	CallbackURL       string `yaml:"callback_url" split_words:"true"`
	TimeoutSeconds    int    `yaml:"timeout_seconds" split_words:"true"`
	WebhookDedupHours int    `yaml:"webhook_dedup_hours" split_words:"true"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" split_words:"true"`
	Issuer    string `yaml:"issuer" split_words:"true"`
}

type WorkerConfig struct {
	OutboxSweepSeconds int `yaml:"outbox_sweep_seconds" split_words:"true"`
	RefundSweepMinutes int `yaml:"refund_sweep_minutes" split_words:"true"`
	OutboxBatchSize    int `yaml:"outbox_batch_size" split_words:"true"`
	// Serves /metrics for the worker process when set.
	MetricsAddress string `yaml:"metrics_address" split_words:"true"`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint" split_words:"true"`
	ServiceName string `yaml:"service_name" split_words:"true"`
	Environment string `yaml:"environment" split_words:"true"`
}

func (p PaymentsConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func (p PaymentsConfig) WebhookDedupTTL() time.Duration {
	return time.Duration(p.WebhookDedupHours) * time.Hour
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{Address: ":8080", AllowedOrigins: []string{"*"}},
		Database: DatabaseConfig{
			Host: "localhost", Port: 5432, User: "postgres", Name: "domestiq", SSLMode: "disable",
		},
		Redis: RedisConfig{Addr: "localhost:6379", UnreadTTLSeconds: 300},
		Kafka: KafkaConfig{
			Brokers:            []string{"localhost:9092"},
			BookingEventsTopic: "booking-events",
			NotificationsTopic: "notifications",
			GroupID:            "domestiq-worker",
		},
		Fees: FeesConfig{PlatformFeePercent: 12, MinFeeCents: 1500, MaxFeeCents: 50000},
		Payments: PaymentsConfig{
			PaystackBaseURL:   "https://api.paystack.co",
			TimeoutSeconds:    15,
			WebhookDedupHours: 72,
		},
		Auth:    AuthConfig{Issuer: "domestiq"},
		Worker:  WorkerConfig{OutboxSweepSeconds: 5, RefundSweepMinutes: 10, OutboxBatchSize: 100, MetricsAddress: ":9091"},
		Tracing: TracingConfig{ServiceName: "domestiq-bookingcore", Environment: "dev"},
	}
}

// LoadConfig reads .env (if present), the YAML file at path, then applies DOMESTIQ_* overrides.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployments
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Fees.PlatformFeePercent < 0 || c.Fees.PlatformFeePercent > 100 {
		errs = append(errs, fmt.Errorf("fees.platform_fee_percent must be within [0, 100]"))
	}
	if c.Fees.MinFeeCents < 0 || c.Fees.MaxFeeCents < c.Fees.MinFeeCents {
		errs = append(errs, fmt.Errorf("fees.min_fee_cents must be >= 0 and <= fees.max_fee_cents"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("auth.jwt_secret is required"))
	}
	if c.Worker.OutboxSweepSeconds <= 0 || c.Worker.RefundSweepMinutes <= 0 {
		errs = append(errs, fmt.Errorf("worker sweep intervals must be positive"))
	}
	return errors.Join(errs...)
}
