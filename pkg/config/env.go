package config

const (
	EnvPrefix = "CHALETS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "CHALETS_APP_ENV"
	EnvPort         = "CHALETS_APP_PORT"
	EnvLogLevel     = "CHALETS_LOG_LEVEL"
	EnvLogFormat    = "CHALETS_LOG_FORMAT"
	EnvLogWarnStack = "CHALETS_LOG_WARN_STACK"

	EnvDBDSN      = "CHALETS_DB_DSN"
	EnvDBDriver   = "CHALETS_DB_DRIVER"
	EnvDBHost     = "CHALETS_DB_HOST"
	EnvDBPort     = "CHALETS_DB_PORT"
	EnvDBUser     = "CHALETS_DB_USER"
	EnvDBPassword = "CHALETS_DB_PASSWORD"
	EnvDBName     = "CHALETS_DB_NAME"
	EnvDBSSLMode  = "CHALETS_DB_SSLMODE"

	EnvRedisURL = "CHALETS_REDIS_URL"

	EnvJWTSecret  = "CHALETS_JWT_SECRET"
	EnvJWTIssuer  = "CHALETS_JWT_ISSUER"
	EnvJWTExpMins = "CHALETS_JWT_EXPIRATION_MINUTES"

	EnvAutoMigrate = "CHALETS_AUTO_MIGRATE"

	EnvBookingCreateAsConfirmed    = "CHALETS_BOOKING_CREATE_AS_CONFIRMED"
	EnvBookingNumberMaxAttempts    = "CHALETS_BOOKING_NUMBER_MAX_ATTEMPTS"
	EnvBookingCancelReasonMaxLen   = "CHALETS_BOOKING_CANCEL_REASON_MAX_LENGTH"
	EnvBookingCustomerCancelWindow = "CHALETS_BOOKING_CUSTOMER_CANCEL_WINDOW"

	EnvPaymentsCurrency       = "CHALETS_PAYMENTS_CURRENCY"
	EnvPaymentsGatewayTimeout = "CHALETS_PAYMENTS_GATEWAY_TIMEOUT"
	EnvPaymentsGatewayEnabled = "CHALETS_PAYMENTS_GATEWAY_ENABLED"
	EnvPaymentsPendingSyncAge = "CHALETS_PAYMENTS_PENDING_SYNC_AGE"

	EnvSquareAccessToken   = "CHALETS_SQUARE_ACCESS_TOKEN"
	EnvSquareEnv           = "CHALETS_SQUARE_ENV"
	EnvSquareLocationID    = "CHALETS_SQUARE_LOCATION_ID"
	EnvSquareWebhookSecret = "CHALETS_SQUARE_WEBHOOK_SECRET"

	EnvWebhookSignatureHeader = "CHALETS_WEBHOOK_SIGNATURE_HEADER"
	EnvWebhookIdempotencyTTL  = "CHALETS_WEBHOOK_IDEMPOTENCY_TTL"

	EnvOutboxBatchSize   = "CHALETS_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxPollMS      = "CHALETS_OUTBOX_PUBLISH_POLL_MS"
	EnvOutboxMaxAttempts = "CHALETS_OUTBOX_MAX_ATTEMPTS"

	EnvPubSubBookingTopic = "CHALETS_PUBSUB_BOOKING_TOPIC"

	EnvGCPProjectID       = "CHALETS_GCP_PROJECT_ID"
	EnvGCPCredentialsJSON = "CHALETS_GCP_CREDENTIALS_JSON"

	EnvCronInterval = "CHALETS_CRON_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
