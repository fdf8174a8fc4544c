package config

// EnvPrefix is handed to envconfig; every field carries an explicit name, so
// the prefix only matters for fields added without one.
const EnvPrefix = "SOLESPACE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EventSinkPubSub = "pubsub"
	EventSinkKafka  = "kafka"
)

const (
	EnvAppEnv       = "SOLESPACE_APP_ENV"
	EnvPort         = "SOLESPACE_APP_PORT"
	EnvDBDSN        = "SOLESPACE_DB_DSN"
	EnvDBDriver     = "SOLESPACE_DB_DRIVER"
	EnvDBHost       = "SOLESPACE_DB_HOST"
	EnvDBUser       = "SOLESPACE_DB_USER"
	EnvDBName       = "SOLESPACE_DB_NAME"
	EnvRedisURL     = "SOLESPACE_REDIS_URL"
	EnvJWTSecret    = "SOLESPACE_JWT_SECRET"
	EnvJWTIssuer    = "SOLESPACE_JWT_ISSUER"
	EnvEventingSink = "SOLESPACE_EVENTING_SINK"
	EnvPayMongoKey  = "SOLESPACE_PAYMONGO_SECRET_KEY"
	EnvKafkaBrokers = "SOLESPACE_KAFKA_BROKERS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
