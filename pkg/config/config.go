package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Stripe        StripeConfig
	Checkout      CheckoutConfig
	Billing       BillingConfig
	Entitlements  EntitlementsConfig
	Cron          CronConfig
	Notifications NotificationsConfig
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
	Env          string `envconfig:"HELPDESK_APP_ENV" required:"true"`
	Port         string `envconfig:"HELPDESK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HELPDESK_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"HELPDESK_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"HELPDESK_LOG_WARN_STACK" default:"false"`
	// CORSOrigins lists browser origins allowed to call the API; empty disables CORS.
	CORSOrigins []string `envconfig:"HELPDESK_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"HELPDESK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"HELPDESK_DB_DSN"`
	Driver string `envconfig:"HELPDESK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HELPDESK_DB_HOST"`
	LegacyPort     int    `envconfig:"HELPDESK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HELPDESK_DB_USER"`
	LegacyPassword string `envconfig:"HELPDESK_DB_PASSWORD"`
	LegacyName     string `envconfig:"HELPDESK_DB_NAME"`
	LegacySSLMode  string `envconfig:"HELPDESK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HELPDESK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HELPDESK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HELPDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HELPDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver targets an embedded SQLite database.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"HELPDESK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HELPDESK_REDIS_ADDR"`
	Password     string        `envconfig:"HELPDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"HELPDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HELPDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HELPDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HELPDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HELPDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HELPDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"HELPDESK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"HELPDESK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"HELPDESK_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HELPDESK_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"HELPDESK_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	QuotaAlertTopic string `envconfig:"HELPDESK_PUBSUB_QUOTA_ALERT_TOPIC" default:"hd-quota-alerts"`
}

type StripeConfig struct {
	APIKey string `envconfig:"HELPDESK_STRIPE_API_KEY"`
	Env    string `envconfig:"HELPDESK_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Enabled reports whether checkout sessions should be delegated to Stripe.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

type CheckoutConfig struct {
	MockBaseURL       string `envconfig:"HELPDESK_CHECKOUT_MOCK_BASE_URL" default:"http://localhost:3000/billing/mock-checkout"`
	DefaultSuccessURL string `envconfig:"HELPDESK_CHECKOUT_SUCCESS_URL" default:"http://localhost:3000/billing/success"`
	DefaultCancelURL  string `envconfig:"HELPDESK_CHECKOUT_CANCEL_URL" default:"http://localhost:3000/billing"`
}

// BillingConfig holds the period and quota defaults used when a tenant has no subscription.
type BillingConfig struct {
	DefaultAnchorDay int    `envconfig:"HELPDESK_BILLING_DEFAULT_ANCHOR_DAY" default:"1"`
	QuotaPolicy      string `envconfig:"HELPDESK_BILLING_QUOTA_POLICY" default:"record_then_reject"`
	FreeDefaults     FreeDefaultsConfig
}

// FreeDefaultsConfig is the entitlement set granted to tenants without a subscription.
type FreeDefaultsConfig struct {
	MaxUsers            int64  `envconfig:"HELPDESK_FREE_MAX_USERS" default:"2"`
	MaxChannels         int64  `envconfig:"HELPDESK_FREE_MAX_CHANNELS" default:"1"`
	MaxMessagesMonthly  int64  `envconfig:"HELPDESK_FREE_MAX_MESSAGES_MONTHLY" default:"5000"`
	MaxCampaignsDaily   int64  `envconfig:"HELPDESK_FREE_MAX_CAMPAIGNS_DAILY" default:"1"`
	RetentionDays       int64  `envconfig:"HELPDESK_FREE_RETENTION_DAYS" default:"30"`
	FeatureCampaigns    bool   `envconfig:"HELPDESK_FREE_FEATURE_CAMPAIGNS" default:"false"`
	FeatureAutomations  bool   `envconfig:"HELPDESK_FREE_FEATURE_AUTOMATIONS" default:"false"`
	FeatureReportsLevel string `envconfig:"HELPDESK_FREE_FEATURE_REPORTS" default:"basic"`
}

func (b BillingConfig) validate() error {
	if b.DefaultAnchorDay < 1 || b.DefaultAnchorDay > 28 {
		return fmt.Errorf("%s must be between 1 and 28, got %d", EnvBillingAnchorDay, b.DefaultAnchorDay)
	}
	switch b.QuotaPolicy {
	case QuotaPolicyRecordThenReject, QuotaPolicyReserveThenCommit:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvBillingQuotaPolicy, QuotaPolicyRecordThenReject, QuotaPolicyReserveThenCommit)
	}
	return nil
}

type EntitlementsConfig struct {
	// CacheTTL of 0 disables the Redis entitlement cache.
	CacheTTL time.Duration `envconfig:"HELPDESK_ENTITLEMENTS_CACHE_TTL" default:"0s"`
}

type CronConfig struct {
	RolloverInterval time.Duration `envconfig:"HELPDESK_CRON_ROLLOVER_INTERVAL" default:"1h"`
	SweepInterval    time.Duration `envconfig:"HELPDESK_CRON_SWEEP_INTERVAL" default:"6h"`
	BatchSize        int           `envconfig:"HELPDESK_CRON_BATCH_SIZE" default:"500"`
	UsageRetention   int           `envconfig:"HELPDESK_USAGE_RETENTION_DAYS" default:"90"`
}

type NotificationsConfig struct {
	Sinks         []string `envconfig:"HELPDESK_NOTIFICATIONS_SINKS" default:"redis,store"`
	RetentionDays int      `envconfig:"HELPDESK_NOTIFICATIONS_RETENTION_DAYS" default:"30"`
}

// SinkEnabled reports whether the named sink appears in the configured list.
func (n NotificationsConfig) SinkEnabled(name string) bool {
	for _, sink := range n.Sinks {
		if strings.EqualFold(strings.TrimSpace(sink), name) {
			return true
		}
	}
	return false
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
