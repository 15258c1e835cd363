package config

const (
	EnvPrefix = "PAYOUTCORE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "PAYOUTCORE_APP_ENV"
	EnvPort     = "PAYOUTCORE_APP_PORT"
	EnvLogLevel = "PAYOUTCORE_LOG_LEVEL"

	EnvDBDSN  = "PAYOUTCORE_DB_DSN"
	EnvDBHost = "PAYOUTCORE_DB_HOST"
	EnvDBUser = "PAYOUTCORE_DB_USER"
	EnvDBName = "PAYOUTCORE_DB_NAME"

	EnvUseSQLite = "PAYOUTCORE_USE_SQLITE"
	EnvRedisURL  = "PAYOUTCORE_REDIS_URL"
	EnvJWTSecret = "PAYOUTCORE_JWT_SECRET"

	EnvStripeAPIKey      = "PAYOUTCORE_STRIPE_API_KEY"
	EnvStripeDestination = "PAYOUTCORE_STRIPE_DESTINATION_ACCOUNT"
	EnvPayPalClientID    = "PAYOUTCORE_PAYPAL_CLIENT_ID"
	EnvPayPalSecret      = "PAYOUTCORE_PAYPAL_CLIENT_SECRET"

	EnvPayoutConversionRate = "PAYOUTCORE_PAYOUT_CONVERSION_RATE"
	EnvPayoutHintOnly       = "PAYOUTCORE_PAYOUT_HINT_ONLY"
	EnvSweepMaxRetryCount   = "PAYOUTCORE_SWEEP_MAX_RETRY_COUNT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
