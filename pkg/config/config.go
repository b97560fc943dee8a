package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Billing  BillingConfig
	Square   SquareConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
	Cron     CronConfig
	Features FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Billing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FRESHFOLD_APP_ENV" required:"true"`
	Port         string `envconfig:"FRESHFOLD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FRESHFOLD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FRESHFOLD_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FRESHFOLD_DB_DSN"`
	Driver string `envconfig:"FRESHFOLD_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"FRESHFOLD_DB_HOST"`
	Port     int    `envconfig:"FRESHFOLD_DB_PORT" default:"5432"`
	User     string `envconfig:"FRESHFOLD_DB_USER"`
	Password string `envconfig:"FRESHFOLD_DB_PASSWORD"`
	Name     string `envconfig:"FRESHFOLD_DB_NAME"`
	SSLMode  string `envconfig:"FRESHFOLD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FRESHFOLD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FRESHFOLD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FRESHFOLD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FRESHFOLD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FRESHFOLD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FRESHFOLD_REDIS_ADDR"`
	Password     string        `envconfig:"FRESHFOLD_REDIS_PASSWORD"`
	DB           int           `envconfig:"FRESHFOLD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FRESHFOLD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FRESHFOLD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FRESHFOLD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FRESHFOLD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FRESHFOLD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FRESHFOLD_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FRESHFOLD_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FRESHFOLD_JWT_EXPIRATION_MINUTES" default:"60"`
}

// BillingConfig carries the pricing knobs shared by the cost calculator
// and the proration engine. The tax rate is a flat basis-point value; a
// per-jurisdiction lookup was considered and deferred (the observed
// behavior is a single statewide rate).
type BillingConfig struct {
	TaxRateBasisPoints int64  `envconfig:"FRESHFOLD_BILLING_TAX_BPS" default:"600"`
	CurrencyCode       string `envconfig:"FRESHFOLD_BILLING_CURRENCY" default:"USD"`
}

func (b BillingConfig) validate() error {
	if b.TaxRateBasisPoints < 0 || b.TaxRateBasisPoints > 10000 {
		return fmt.Errorf("tax rate basis points out of range: %d", b.TaxRateBasisPoints)
	}
	if strings.TrimSpace(b.CurrencyCode) == "" {
		return fmt.Errorf("billing currency code is required")
	}
	return nil
}

type SquareConfig struct {
	AccessToken string `envconfig:"FRESHFOLD_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"FRESHFOLD_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"FRESHFOLD_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID string `envconfig:"FRESHFOLD_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic         string `envconfig:"FRESHFOLD_PUBSUB_ORDERS_TOPIC" default:"ff-order-events"`
	BillingTopic        string `envconfig:"FRESHFOLD_PUBSUB_BILLING_TOPIC" default:"ff-billing-events"`
	OrdersSubscription  string `envconfig:"FRESHFOLD_PUBSUB_ORDERS_SUBSCRIPTION"`
	BillingSubscription string `envconfig:"FRESHFOLD_PUBSUB_BILLING_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"FRESHFOLD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"FRESHFOLD_OUTBOX_PUBLISH_POLL_INTERVAL" default:"500ms"`
	MaxAttempts    int           `envconfig:"FRESHFOLD_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionAge   time.Duration `envconfig:"FRESHFOLD_OUTBOX_RETENTION_AGE" default:"720h"`
	RetentionBatch int           `envconfig:"FRESHFOLD_OUTBOX_RETENTION_BATCH" default:"500"`
}

type CronConfig struct {
	LockTTL       time.Duration `envconfig:"FRESHFOLD_CRON_LOCK_TTL" default:"1h"`
	PeriodRollLag time.Duration `envconfig:"FRESHFOLD_CRON_PERIOD_ROLL_LAG" default:"0s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FRESHFOLD_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FRESHFOLD_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
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
