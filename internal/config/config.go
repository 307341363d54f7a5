package config

import (
	"errors"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsing = errors.New("failed to parse environment variables into config")

	dotenvOnce sync.Once
)

// Config aggregates all process configuration. It is built once in main and
// passed explicitly to collaborators; nothing reads the environment after
// startup.
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Stripe   StripeConfig
	Polar    PolarConfig
	Paystack PaystackConfig
	Edge     EdgeConfig
	Storage  StorageConfig
	Email    EmailConfig
}

type AppConfig struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Name    string `env:"APP_NAME" envDefault:"fxforge"`
	BaseURL string `env:"APP_URL" envDefault:"http://localhost:5173"`
}

type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins     []string      `env:"HTTP_CORS_ORIGINS" envDefault:"*"`
}

type PostgresConfig struct {
	ConnectionString string        `env:"DATABASE_URL,required"`
	MaxOpenConns     int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns     int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	RetryAttempts    int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval    time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`
	MigrationsPath   string        `env:"PG_MIGRATIONS_PATH" envDefault:"migrations"`
}

type RedisConfig struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

type AuthConfig struct {
	SigningKey string        `env:"AUTH_SIGNING_KEY,required"`
	Issuer     string        `env:"AUTH_ISSUER" envDefault:"fxforge"`
	TokenTTL   time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`
}

type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

type PolarConfig struct {
	AccessToken   string `env:"POLAR_OAT"`
	WebhookSecret string `env:"POLAR_WEBHOOK_SECRET"`
	BaseURL       string `env:"POLAR_API_URL" envDefault:"https://api.polar.sh"`
}

type PaystackConfig struct {
	SecretKey     string  `env:"PAYSTACK_SECRET_KEY"`
	WebhookSecret string  `env:"PAYSTACK_WEBHOOK_SECRET"`
	BaseURL       string  `env:"PAYSTACK_API_URL" envDefault:"https://api.paystack.co"`
	USDToNGNRate  float64 `env:"PAYSTACK_USD_NGN_RATE" envDefault:"1600"`
}

type EdgeConfig struct {
	AccountID   string `env:"CLOUDFLARE_ACCOUNT_ID"`
	NamespaceID string `env:"CLOUDFLARE_KV_NAMESPACE_ID"`
	APIToken    string `env:"CLOUDFLARE_API_TOKEN"`
	BaseURL     string `env:"CLOUDFLARE_API_URL" envDefault:"https://api.cloudflare.com/client/v4"`
}

type StorageConfig struct {
	Bucket          string        `env:"ARTIFACT_BUCKET"`
	Region          string        `env:"ARTIFACT_REGION" envDefault:"us-east-1"`
	Endpoint        string        `env:"ARTIFACT_ENDPOINT"`
	AccessKeyID     string        `env:"ARTIFACT_ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"ARTIFACT_SECRET_ACCESS_KEY"`
	PresignTTL      time.Duration `env:"ARTIFACT_PRESIGN_TTL" envDefault:"15m"`
}

type EmailConfig struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	FromAddress          string `env:"EMAIL_FROM" envDefault:"noreply@fxforge.app"`
	SupportAddress       string `env:"EMAIL_SUPPORT" envDefault:"support@fxforge.app"`
}

// Load populates a config struct from the environment. The default .env file
// is read once per process; a missing file is not an error.
func Load[T any](v *T) error {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsing, err)
	}
	return nil
}

// MustLoad is Load that panics on failure, for configuration the process
// cannot start without.
func MustLoad[T any](v *T) T {
	if err := Load(v); err != nil {
		panic(err)
	}
	return *v
}

// New loads the full application configuration.
func New() (*Config, error) {
	var cfg Config
	if err := Load(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether the app runs with production settings.
func (c AppConfig) IsProduction() bool { return c.Env == "production" || c.Env == "prod" }
