package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	Commission CommissionConfig
	MPesa      MPesaConfig
	Paystack   PaystackConfig
	Kafka      KafkaConfig
}

// Load reads the process environment. Call godotenv.Load first if a .env file is used.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Name         string `envconfig:"APP_NAME" default:"Marketplace POS v1.0"`
	Env          string `envconfig:"APP_ENV" default:"dev"`
	Port         string `envconfig:"PORT" default:"3000"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOG_WARN_STACK" default:"false"`
	AdminEmail   string `envconfig:"ADMIN_EMAIL" default:"admin@example.com"`
	AdminPass    string `envconfig:"ADMIN_PASSWORD" default:"admin123"`
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, "prod") || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN string `envconfig:"DATABASE_URL"`

	Host     string `envconfig:"DB_HOST"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	TimeZone string `envconfig:"DB_TIMEZONE" default:"Africa/Nairobi"`

	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"100"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
	SlowThreshold   time.Duration `envconfig:"DB_SLOW_THRESHOLD" default:"1s"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("DATABASE_URL or DB_HOST/DB_USER/DB_NAME must be set")
	}
	d.DSN = fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone,
	)
	return nil
}

// RedisConfig is optional; an empty URL disables Redis-backed features.
type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type JWTConfig struct {
	Secret          string `envconfig:"JWT_SECRET" default:"your-super-secret-key-change-in-production"`
	Issuer          string `envconfig:"JWT_ISSUER" default:"go-marketplace-pos"`
	ExpirationHours int    `envconfig:"JWT_EXPIRATION_HOURS" default:"24"`
}

type RateLimitConfig struct {
	PaymentWindow time.Duration `envconfig:"RATE_LIMIT_PAYMENT_WINDOW" default:"1m"`
	PaymentLimit  int           `envconfig:"RATE_LIMIT_PAYMENT_LIMIT" default:"10"`
}

type CommissionConfig struct {
	RatePercent string `envconfig:"COMMISSION_RATE_PERCENT" default:"5"`
}

type MPesaConfig struct {
	BaseURL        string        `envconfig:"MPESA_BASE_URL" default:"https://sandbox.safaricom.co.ke"`
	ConsumerKey    string        `envconfig:"MPESA_CONSUMER_KEY"`
	ConsumerSecret string        `envconfig:"MPESA_CONSUMER_SECRET"`
	ShortCode      string        `envconfig:"MPESA_SHORTCODE"`
	PassKey        string        `envconfig:"MPESA_PASSKEY"`
	CallbackURL    string        `envconfig:"MPESA_CALLBACK_URL"`
	Timeout        time.Duration `envconfig:"MPESA_TIMEOUT" default:"15s"`
}

type PaystackConfig struct {
	BaseURL     string        `envconfig:"PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	SecretKey   string        `envconfig:"PAYSTACK_SECRET_KEY"`
	CallbackURL string        `envconfig:"PAYSTACK_CALLBACK_URL"`
	Currency    string        `envconfig:"PAYSTACK_CURRENCY" default:"KES"`
	Timeout     time.Duration `envconfig:"PAYSTACK_TIMEOUT" default:"15s"`
	// WebhookIdempotencyTTL bounds how long a processed webhook is remembered.
	WebhookIdempotencyTTL time.Duration `envconfig:"PAYSTACK_WEBHOOK_IDEMPOTENCY_TTL" default:"48h"`
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_ORDER_TOPIC" default:"orders.events"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}
