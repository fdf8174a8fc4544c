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
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Security SecurityConfig
	PayMongo PayMongoConfig
	Checkout CheckoutConfig
	Eventing EventingConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Kafka    KafkaConfig
	Outbox   OutboxConfig
	Metrics  MetricsConfig
	Cron     CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Eventing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SOLESPACE_APP_ENV" required:"true"`
	Port         string `envconfig:"SOLESPACE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SOLESPACE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SOLESPACE_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"SOLESPACE_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "prod")
}

type ServiceConfig struct {
	Kind string `envconfig:"SOLESPACE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SOLESPACE_DB_DSN"`
	Driver string `envconfig:"SOLESPACE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SOLESPACE_DB_HOST"`
	LegacyPort     int    `envconfig:"SOLESPACE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SOLESPACE_DB_USER"`
	LegacyPassword string `envconfig:"SOLESPACE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SOLESPACE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SOLESPACE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SOLESPACE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOLESPACE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOLESPACE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOLESPACE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is sqlite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"SOLESPACE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SOLESPACE_REDIS_ADDR"`
	Password     string        `envconfig:"SOLESPACE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SOLESPACE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SOLESPACE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOLESPACE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOLESPACE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOLESPACE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOLESPACE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SOLESPACE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SOLESPACE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SOLESPACE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type SecurityConfig struct {
	CSRFEnabled    bool     `envconfig:"SOLESPACE_CSRF_ENABLED" default:"true"`
	CSRFCookieName string   `envconfig:"SOLESPACE_CSRF_COOKIE" default:"solespace_csrf"`
	CSRFHeaderName string   `envconfig:"SOLESPACE_CSRF_HEADER" default:"X-CSRF-TOKEN"`
	AllowedOrigins []string `envconfig:"SOLESPACE_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:8000"`
}

type PayMongoConfig struct {
	SecretKey     string        `envconfig:"SOLESPACE_PAYMONGO_SECRET_KEY"`
	WebhookSecret string        `envconfig:"SOLESPACE_PAYMONGO_WEBHOOK_SECRET"`
	BaseURL       string        `envconfig:"SOLESPACE_PAYMONGO_BASE_URL" default:"https://api.paymongo.com/v1"`
	Timeout       time.Duration `envconfig:"SOLESPACE_PAYMONGO_TIMEOUT" default:"15s"`
}

// Enabled reports whether a PayMongo secret key is configured.
func (p PayMongoConfig) Enabled() bool {
	return strings.TrimSpace(p.SecretKey) != ""
}

type CheckoutConfig struct {
	OrderNumberPrefix string `envconfig:"SOLESPACE_ORDER_NUMBER_PREFIX" default:"SS"`
	Currency          string `envconfig:"SOLESPACE_CURRENCY" default:"PHP"`
}

type EventingConfig struct {
	Sink           string        `envconfig:"SOLESPACE_EVENTING_SINK" default:"pubsub"`
	IdempotencyTTL time.Duration `envconfig:"SOLESPACE_EVENTING_IDEMPOTENCY_TTL" default:"168h"`
}

func (e EventingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(e.Sink)) {
	case EventSinkPubSub, EventSinkKafka:
		return nil
	}
	return fmt.Errorf("%s must be %q or %q", EnvEventingSink, EventSinkPubSub, EventSinkKafka)
}

// UsesKafka reports whether outbox events are shipped to Kafka.
func (e EventingConfig) UsesKafka() bool {
	return strings.EqualFold(strings.TrimSpace(e.Sink), EventSinkKafka)
}

type GCPConfig struct {
	ProjectID string `envconfig:"SOLESPACE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"SOLESPACE_PUBSUB_ORDERS_TOPIC" default:"solespace-orders"`
}

type KafkaConfig struct {
	Brokers     []string `envconfig:"SOLESPACE_KAFKA_BROKERS" default:"localhost:9092"`
	OrdersTopic string   `envconfig:"SOLESPACE_KAFKA_ORDERS_TOPIC" default:"solespace.orders"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SOLESPACE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SOLESPACE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SOLESPACE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"SOLESPACE_CRON_INTERVAL" default:"15m"`
	LockTTL             time.Duration `envconfig:"SOLESPACE_CRON_LOCK_TTL" default:"10m"`
	UnpaidOrderTTL      time.Duration `envconfig:"SOLESPACE_UNPAID_ORDER_TTL" default:"24h"`
	OutboxRetentionDays int           `envconfig:"SOLESPACE_OUTBOX_RETENTION_DAYS" default:"30"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"SOLESPACE_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"SOLESPACE_METRICS_PATH" default:"/metrics"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
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
