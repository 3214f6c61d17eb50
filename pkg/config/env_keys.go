package config

// EnvPrefix is the envconfig prefix shared by every setting.
const EnvPrefix = "WEBRELAY"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "WEBRELAY_APP_ENV"
	EnvPort     = "WEBRELAY_APP_PORT"
	EnvDBDSN    = "WEBRELAY_DB_DSN"
	EnvDBDriver = "WEBRELAY_DB_DRIVER"
	EnvDBHost   = "WEBRELAY_DB_HOST"
	EnvDBUser   = "WEBRELAY_DB_USER"
	EnvDBName   = "WEBRELAY_DB_NAME"
	EnvRedisURL = "WEBRELAY_REDIS_URL"

	EnvJWTSecret  = "WEBRELAY_JWT_SECRET"
	EnvJWTIssuer  = "WEBRELAY_JWT_ISSUER"
	EnvJWTExpMins = "WEBRELAY_JWT_EXPIRATION_MINUTES"

	EnvRetryInterval    = "WEBRELAY_RETRY_INTERVAL"
	EnvRetryMaxAttempts = "WEBRELAY_RETRY_MAX_ATTEMPTS"
	EnvDeliveryTimeout  = "WEBRELAY_DELIVERY_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
