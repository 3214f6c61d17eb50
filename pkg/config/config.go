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
	Password     PasswordConfig
	CORS         CORSConfig
	Delivery     DeliveryConfig
	Retry        RetryConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"WEBRELAY_APP_ENV" required:"true"`
	Port         string `envconfig:"WEBRELAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WEBRELAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WEBRELAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"WEBRELAY_DB_DSN"`
	Driver string `envconfig:"WEBRELAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WEBRELAY_DB_HOST"`
	LegacyPort     int    `envconfig:"WEBRELAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WEBRELAY_DB_USER"`
	LegacyPassword string `envconfig:"WEBRELAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"WEBRELAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"WEBRELAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WEBRELAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WEBRELAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WEBRELAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WEBRELAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WEBRELAY_REDIS_URL"`
	Address      string        `envconfig:"WEBRELAY_REDIS_ADDR"`
	Password     string        `envconfig:"WEBRELAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"WEBRELAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WEBRELAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WEBRELAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WEBRELAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WEBRELAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WEBRELAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"WEBRELAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"WEBRELAY_JWT_ISSUER" default:"webhook-relay"`
	ExpirationMinutes int    `envconfig:"WEBRELAY_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"WEBRELAY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"WEBRELAY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"WEBRELAY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"WEBRELAY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"WEBRELAY_ARGON_KEY_LEN" default:"32"`
}

type CORSConfig struct {
	Origins []string `envconfig:"WEBRELAY_CORS_ORIGINS"`
}

// DeliveryConfig bounds a single outbound callback attempt. The 10s timeout is
// the documented default for the dispatcher's HTTP client.
type DeliveryConfig struct {
	Timeout time.Duration `envconfig:"WEBRELAY_DELIVERY_TIMEOUT" default:"10s"`
}

// RetryConfig governs the retry worker cadence and the retry ceiling.
type RetryConfig struct {
	Interval    time.Duration `envconfig:"WEBRELAY_RETRY_INTERVAL" default:"1m"`
	MaxAttempts int           `envconfig:"WEBRELAY_RETRY_MAX_ATTEMPTS" default:"3"`
	LockTTL     time.Duration `envconfig:"WEBRELAY_RETRY_LOCK_TTL" default:"5m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"WEBRELAY_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, DriverSQLite) {
		db.DSN = "file::memory:?cache=shared"
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
