package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	PayPal       PayPalConfig
	Payout       PayoutConfig
	Audit        AuditConfig
	Sweep        SweepConfig
	HTTP         HTTPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PAYOUTCORE_APP_ENV" required:"true"`
	Port         string `envconfig:"PAYOUTCORE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PAYOUTCORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PAYOUTCORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"PAYOUTCORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PAYOUTCORE_DB_DSN"`
	Driver string `envconfig:"PAYOUTCORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PAYOUTCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"PAYOUTCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PAYOUTCORE_DB_USER"`
	LegacyPassword string `envconfig:"PAYOUTCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"PAYOUTCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"PAYOUTCORE_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"PAYOUTCORE_SQLITE_PATH" default:"payoutcore.db"`

	MaxOpenConns    int           `envconfig:"PAYOUTCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAYOUTCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAYOUTCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAYOUTCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional; an empty URL and address disables the idempotency
// replay and the distributed sweep lock.
type RedisConfig struct {
	URL            string        `envconfig:"PAYOUTCORE_REDIS_URL"`
	Address        string        `envconfig:"PAYOUTCORE_REDIS_ADDR"`
	Password       string        `envconfig:"PAYOUTCORE_REDIS_PASSWORD"`
	DB             int           `envconfig:"PAYOUTCORE_REDIS_DB" default:"0"`
	PoolSize       int           `envconfig:"PAYOUTCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"PAYOUTCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"PAYOUTCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"PAYOUTCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout   time.Duration `envconfig:"PAYOUTCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
	IdempotencyTTL time.Duration `envconfig:"PAYOUTCORE_IDEMPOTENCY_TTL" default:"24h"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// JWTConfig guards the operator routes. An empty secret leaves them open.
type JWTConfig struct {
	Secret            string `envconfig:"PAYOUTCORE_JWT_SECRET"`
	Issuer            string `envconfig:"PAYOUTCORE_JWT_ISSUER" default:"payoutcore"`
	ExpirationMinutes int    `envconfig:"PAYOUTCORE_JWT_EXPIRATION_MINUTES" default:"60"`
}

func (j JWTConfig) Enabled() bool {
	return strings.TrimSpace(j.Secret) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PAYOUTCORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PAYOUTCORE_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey             string `envconfig:"PAYOUTCORE_STRIPE_API_KEY"`
	Env                string `envconfig:"PAYOUTCORE_STRIPE_ENV" default:"test"`
	DestinationAccount string `envconfig:"PAYOUTCORE_STRIPE_DESTINATION_ACCOUNT"`
	Currency           string `envconfig:"PAYOUTCORE_STRIPE_CURRENCY" default:"usd"`
	HoldPaymentMethod  string `envconfig:"PAYOUTCORE_STRIPE_HOLD_PAYMENT_METHOD"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (s StripeConfig) Configured() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

type PayPalConfig struct {
	ClientID     string `envconfig:"PAYOUTCORE_PAYPAL_CLIENT_ID"`
	ClientSecret string `envconfig:"PAYOUTCORE_PAYPAL_CLIENT_SECRET"`
	Env          string `envconfig:"PAYOUTCORE_PAYPAL_ENV" default:"sandbox"`
	EmailSubject string `envconfig:"PAYOUTCORE_PAYPAL_EMAIL_SUBJECT" default:"You have a payout"`
}

func (p PayPalConfig) Configured() bool {
	return strings.TrimSpace(p.ClientID) != "" && strings.TrimSpace(p.ClientSecret) != ""
}

// IsLive reports whether payouts should hit the live PayPal API.
func (p PayPalConfig) IsLive() bool {
	return strings.EqualFold(strings.TrimSpace(p.Env), "live")
}

type PayoutConfig struct {
	MinUnits       int64         `envconfig:"PAYOUTCORE_PAYOUT_MIN_UNITS" default:"100"`
	ConversionRate int64         `envconfig:"PAYOUTCORE_PAYOUT_CONVERSION_RATE" default:"100"`
	MaxRetries     int           `envconfig:"PAYOUTCORE_PAYOUT_MAX_RETRIES" default:"3"`
	BaseDelay      time.Duration `envconfig:"PAYOUTCORE_PAYOUT_BASE_DELAY" default:"1s"`
	RequestTimeout time.Duration `envconfig:"PAYOUTCORE_PAYOUT_REQUEST_TIMEOUT" default:"30s"`
	HintOnly       bool          `envconfig:"PAYOUTCORE_PAYOUT_HINT_ONLY" default:"false"`
	PolicyFile     string        `envconfig:"PAYOUTCORE_PAYOUT_POLICY_FILE"`
}

type AuditConfig struct {
	MaxEntries int `envconfig:"PAYOUTCORE_AUDIT_MAX_ENTRIES" default:"1000"`
}

type SweepConfig struct {
	Interval           time.Duration `envconfig:"PAYOUTCORE_SWEEP_INTERVAL" default:"1h"`
	MisroutedAccountID string        `envconfig:"PAYOUTCORE_SWEEP_MISROUTED_ACCOUNT_ID"`
	MisroutedMinCents  int64         `envconfig:"PAYOUTCORE_SWEEP_MISROUTED_MIN_CENTS" default:"100"`
	MinTransferCents   int64         `envconfig:"PAYOUTCORE_SWEEP_MIN_TRANSFER_CENTS" default:"100"`
	PendingBatch       int           `envconfig:"PAYOUTCORE_SWEEP_PENDING_BATCH" default:"100"`
	RetryBatch         int           `envconfig:"PAYOUTCORE_SWEEP_RETRY_BATCH" default:"10"`
	HoldBatch          int           `envconfig:"PAYOUTCORE_SWEEP_HOLD_BATCH" default:"20"`
	MaxRetryCount      int           `envconfig:"PAYOUTCORE_SWEEP_MAX_RETRY_COUNT" default:"5"`
	ProcessorRPS       float64       `envconfig:"PAYOUTCORE_SWEEP_PROCESSOR_RPS" default:"5"`
	LockTTL            time.Duration `envconfig:"PAYOUTCORE_SWEEP_LOCK_TTL" default:"15m"`
}

type HTTPConfig struct {
	CashoutRatePerMinute int           `envconfig:"PAYOUTCORE_CASHOUT_RATE_PER_MINUTE" default:"30"`
	CashoutBurst         int           `envconfig:"PAYOUTCORE_CASHOUT_BURST" default:"5"`
	ReadTimeout          time.Duration `envconfig:"PAYOUTCORE_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout         time.Duration `envconfig:"PAYOUTCORE_HTTP_WRITE_TIMEOUT" default:"60s"`
	AllowedOrigins       []string      `envconfig:"PAYOUTCORE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	TrustedProxies       []string      `envconfig:"PAYOUTCORE_HTTP_TRUSTED_PROXIES"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
