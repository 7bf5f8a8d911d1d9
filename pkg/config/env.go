package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "HELPDESK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	QuotaPolicyRecordThenReject  = "record_then_reject"
	QuotaPolicyReserveThenCommit = "reserve_then_commit"

	SinkRedis  = "redis"
	SinkStore  = "store"
	SinkPubSub = "pubsub"
)

const (
	EnvAppEnv    = "HELPDESK_APP_ENV"
	EnvPort      = "HELPDESK_APP_PORT"
	EnvLogLevel  = "HELPDESK_LOG_LEVEL"
	EnvLogFormat = "HELPDESK_LOG_FORMAT"

	EnvDBDSN    = "HELPDESK_DB_DSN"
	EnvDBDriver = "HELPDESK_DB_DRIVER"
	EnvDBHost   = "HELPDESK_DB_HOST"
	EnvDBUser   = "HELPDESK_DB_USER"
	EnvDBName   = "HELPDESK_DB_NAME"

	EnvRedisURL = "HELPDESK_REDIS_URL"

	EnvJWTSecret = "HELPDESK_JWT_SECRET"
	EnvJWTIssuer = "HELPDESK_JWT_ISSUER"

	EnvGCPProjectID          = "HELPDESK_GCP_PROJECT_ID"
	EnvPubSubQuotaAlertTopic = "HELPDESK_PUBSUB_QUOTA_ALERT_TOPIC"

	EnvStripeAPIKey = "HELPDESK_STRIPE_API_KEY"

	EnvBillingAnchorDay   = "HELPDESK_BILLING_DEFAULT_ANCHOR_DAY"
	EnvBillingQuotaPolicy = "HELPDESK_BILLING_QUOTA_POLICY"
	EnvFreeMaxMessages    = "HELPDESK_FREE_MAX_MESSAGES_MONTHLY"

	EnvEntitlementsCacheTTL = "HELPDESK_ENTITLEMENTS_CACHE_TTL"
	EnvNotificationSinks    = "HELPDESK_NOTIFICATIONS_SINKS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
