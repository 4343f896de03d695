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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Routing      RoutingConfig
	Realtime     RealtimeConfig
	Anomaly      AnomalyConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KITCHENLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"KITCHENLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KITCHENLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KITCHENLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"KITCHENLINE_DB_DSN"`
	Driver string `envconfig:"KITCHENLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KITCHENLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"KITCHENLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KITCHENLINE_DB_USER"`
	LegacyPassword string `envconfig:"KITCHENLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"KITCHENLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"KITCHENLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KITCHENLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KITCHENLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KITCHENLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KITCHENLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KITCHENLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KITCHENLINE_REDIS_ADDR"`
	Password     string        `envconfig:"KITCHENLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"KITCHENLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KITCHENLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KITCHENLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KITCHENLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KITCHENLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KITCHENLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"KITCHENLINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"KITCHENLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"KITCHENLINE_JWT_EXPIRATION_MINUTES" required:"true"`
	SessionTTLMinutes int    `envconfig:"KITCHENLINE_SESSION_TTL_MINUTES" default:"720"`
}

// SessionTTL returns the server-side session TTL configured in minutes.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.SessionTTLMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"KITCHENLINE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"KITCHENLINE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"KITCHENLINE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type PubSubConfig struct {
	ProjectID                string `envconfig:"KITCHENLINE_GCP_PROJECT_ID" required:"true"`
	DomainTopic              string `envconfig:"KITCHENLINE_PUBSUB_DOMAIN_TOPIC" required:"true"`
	NotificationTopic        string `envconfig:"KITCHENLINE_PUBSUB_NOTIFICATION_TOPIC" required:"true"`
	AnomalySubscription      string `envconfig:"KITCHENLINE_PUBSUB_ANOMALY_SUBSCRIPTION" required:"true"`
	NotificationSubscription string `envconfig:"KITCHENLINE_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	RealtimeSubscription     string `envconfig:"KITCHENLINE_PUBSUB_REALTIME_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"KITCHENLINE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"KITCHENLINE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"KITCHENLINE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// RoutingConfig carries the table-display thresholds and urgency weights.
type RoutingConfig struct {
	OverdueGreen  time.Duration `envconfig:"KITCHENLINE_OVERDUE_GREEN" default:"300s"`
	OverdueYellow time.Duration `envconfig:"KITCHENLINE_OVERDUE_YELLOW" default:"600s"`
	OverdueRed    time.Duration `envconfig:"KITCHENLINE_OVERDUE_RED" default:"900s"`

	UrgencyWaitWeight     float64 `envconfig:"KITCHENLINE_URGENCY_WAIT_WEIGHT" default:"1.0"`
	UrgencyOrderWeight    float64 `envconfig:"KITCHENLINE_URGENCY_ORDER_WEIGHT" default:"5.0"`
	UrgencyPriorityWeight float64 `envconfig:"KITCHENLINE_URGENCY_PRIORITY_WEIGHT" default:"10.0"`
	UrgencyRecallWeight   float64 `envconfig:"KITCHENLINE_URGENCY_RECALL_WEIGHT" default:"15.0"`
}

// RealtimeConfig bounds the subscription manager's timers.
type RealtimeConfig struct {
	SubscribeTimeout  time.Duration `envconfig:"KITCHENLINE_REALTIME_SUBSCRIBE_TIMEOUT" default:"10s"`
	HeartbeatInterval time.Duration `envconfig:"KITCHENLINE_REALTIME_HEARTBEAT_INTERVAL" default:"25s"`
	RetryBase         time.Duration `envconfig:"KITCHENLINE_REALTIME_RETRY_BASE" default:"1s"`
	RetryMaxDelay     time.Duration `envconfig:"KITCHENLINE_REALTIME_RETRY_MAX_DELAY" default:"30s"`
	RetryJitter       time.Duration `envconfig:"KITCHENLINE_REALTIME_RETRY_JITTER" default:"1s"`
	MaxRetries        int           `envconfig:"KITCHENLINE_REALTIME_MAX_RETRIES" default:"5"`
}

// AnomalyConfig parameterizes the detection rules.
type AnomalyConfig struct {
	DuplicateWindow        time.Duration `envconfig:"KITCHENLINE_ANOMALY_DUPLICATE_WINDOW" default:"5m"`
	CapacityMultiplier     int           `envconfig:"KITCHENLINE_ANOMALY_CAPACITY_MULTIPLIER" default:"3"`
	KitchenOverloadPending int           `envconfig:"KITCHENLINE_ANOMALY_OVERLOAD_PENDING" default:"50"`
	PrepTimeFactor         float64       `envconfig:"KITCHENLINE_ANOMALY_PREP_TIME_FACTOR" default:"2.0"`
	PrepTimeLookback       time.Duration `envconfig:"KITCHENLINE_ANOMALY_PREP_TIME_LOOKBACK" default:"168h"`
	NotifySeverity         int           `envconfig:"KITCHENLINE_ANOMALY_NOTIFY_SEVERITY" default:"4"`
}

// CronConfig tunes the background maintenance jobs.
type CronConfig struct {
	Interval                  time.Duration `envconfig:"KITCHENLINE_CRON_INTERVAL" default:"1h"`
	NotificationRetentionDays int           `envconfig:"KITCHENLINE_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
	OutboxRetentionDays       int           `envconfig:"KITCHENLINE_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	StaleAnomalyMaxAgeHours   int           `envconfig:"KITCHENLINE_CRON_STALE_ANOMALY_MAX_AGE_HOURS" default:"72"`
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
