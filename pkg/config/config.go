package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Booking      BookingConfig
	Payments     PaymentsConfig
	Square       SquareConfig
	Webhooks     WebhooksConfig
	Outbox       OutboxConfig
	PubSub       PubSubConfig
	GCP          GCPConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field rules envconfig tags cannot express and
// reports every violation at once.
func (c *Config) Validate() error {
	var err error
	if c.Booking.NumberMaxAttempts < 1 {
		err = multierr.Append(err, fmt.Errorf("%s must be at least 1", EnvBookingNumberMaxAttempts))
	}
	if c.Booking.CancelReasonMaxLength < 1 {
		err = multierr.Append(err, fmt.Errorf("%s must be at least 1", EnvBookingCancelReasonMaxLen))
	}
	if c.Booking.CustomerCancelWindow < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvBookingCustomerCancelWindow))
	}
	if c.Payments.GatewayTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvPaymentsGatewayTimeout))
	}
	if len(strings.TrimSpace(c.Payments.Currency)) != 3 {
		err = multierr.Append(err, fmt.Errorf("%s must be a 3-letter currency code", EnvPaymentsCurrency))
	}
	if c.Payments.GatewayEnabled && strings.TrimSpace(c.Square.AccessToken) == "" {
		err = multierr.Append(err, fmt.Errorf("%s is required when %s is set", EnvSquareAccessToken, EnvPaymentsGatewayEnabled))
	}
	if driver := strings.ToLower(c.DB.Driver); driver != DriverPostgres && driver != DriverSQLite {
		err = multierr.Append(err, fmt.Errorf("%s must be %q or %q", EnvDBDriver, DriverPostgres, DriverSQLite))
	}
	return err
}

type AppConfig struct {
	Env          string `envconfig:"CHALETS_APP_ENV" required:"true"`
	Port         string `envconfig:"CHALETS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CHALETS_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CHALETS_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"CHALETS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DBConfig struct {
	DSN    string `envconfig:"CHALETS_DB_DSN"`
	Driver string `envconfig:"CHALETS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CHALETS_DB_HOST"`
	Port     int    `envconfig:"CHALETS_DB_PORT" default:"5432"`
	User     string `envconfig:"CHALETS_DB_USER"`
	Password string `envconfig:"CHALETS_DB_PASSWORD"`
	Name     string `envconfig:"CHALETS_DB_NAME"`
	SSLMode  string `envconfig:"CHALETS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CHALETS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CHALETS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CHALETS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHALETS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CHALETS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CHALETS_REDIS_ADDR"`
	Password     string        `envconfig:"CHALETS_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHALETS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHALETS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHALETS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHALETS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHALETS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHALETS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CHALETS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CHALETS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CHALETS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CHALETS_AUTO_MIGRATE" default:"false"`
}

// BookingConfig holds the booking lifecycle knobs. CreateAsConfirmed is the
// explicit opt-in for creating bookings directly in the confirmed state.
type BookingConfig struct {
	CreateAsConfirmed     bool          `envconfig:"CHALETS_BOOKING_CREATE_AS_CONFIRMED" default:"false"`
	NumberMaxAttempts     int           `envconfig:"CHALETS_BOOKING_NUMBER_MAX_ATTEMPTS" default:"10"`
	CancelReasonMaxLength int           `envconfig:"CHALETS_BOOKING_CANCEL_REASON_MAX_LENGTH" default:"500"`
	CustomerCancelWindow  time.Duration `envconfig:"CHALETS_BOOKING_CUSTOMER_CANCEL_WINDOW" default:"24h"`
}

type PaymentsConfig struct {
	Currency       string        `envconfig:"CHALETS_PAYMENTS_CURRENCY" default:"SAR"`
	GatewayTimeout time.Duration `envconfig:"CHALETS_PAYMENTS_GATEWAY_TIMEOUT" default:"15s"`
	GatewayEnabled bool          `envconfig:"CHALETS_PAYMENTS_GATEWAY_ENABLED" default:"false"`
	PendingSyncAge time.Duration `envconfig:"CHALETS_PAYMENTS_PENDING_SYNC_AGE" default:"15m"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"CHALETS_SQUARE_ACCESS_TOKEN"`
	Env           string `envconfig:"CHALETS_SQUARE_ENV" default:"sandbox"`
	LocationID    string `envconfig:"CHALETS_SQUARE_LOCATION_ID"`
	WebhookSecret string `envconfig:"CHALETS_SQUARE_WEBHOOK_SECRET"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type WebhooksConfig struct {
	SignatureHeader string        `envconfig:"CHALETS_WEBHOOK_SIGNATURE_HEADER" default:"X-Signature"`
	IdempotencyTTL  time.Duration `envconfig:"CHALETS_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CHALETS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CHALETS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CHALETS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"CHALETS_OUTBOX_RETENTION_DAYS" default:"30"`
}

type PubSubConfig struct {
	BookingTopic string `envconfig:"CHALETS_PUBSUB_BOOKING_TOPIC" default:"chalets-booking-events"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"CHALETS_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"CHALETS_GCP_CREDENTIALS_JSON"`
}

type CronConfig struct {
	Interval         time.Duration `envconfig:"CHALETS_CRON_INTERVAL" default:"5m"`
	LockTTL          time.Duration `envconfig:"CHALETS_CRON_LOCK_TTL" default:"10m"`
	CompletionBatch  int           `envconfig:"CHALETS_CRON_COMPLETION_BATCH" default:"100"`
	PaymentSyncBatch int           `envconfig:"CHALETS_CRON_PAYMENT_SYNC_BATCH" default:"50"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	var missing []string
	for _, env := range legacyDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}
	db.DSN = u.String()
	return nil
}
