package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config aggregates every setting a service binary can need. Each binary
// only reads the sections it wires; unused sections stay zero-valued.
type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Bus           BusConfig
	Gateway       GatewayConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"THREADLINE_APP_ENV" default:"dev"`
	Port         string `envconfig:"THREADLINE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"THREADLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"THREADLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"THREADLINE_DB_DSN"`
	Driver string `envconfig:"THREADLINE_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"THREADLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"THREADLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"THREADLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"THREADLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"THREADLINE_REDIS_URL"`
	Address      string        `envconfig:"THREADLINE_REDIS_ADDR"`
	Password     string        `envconfig:"THREADLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"THREADLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"THREADLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"THREADLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"THREADLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"THREADLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"THREADLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the token settings shared by every service that validates
// access tokens. The secret must be identical across services.
type JWTConfig struct {
	Secret               string `envconfig:"THREADLINE_JWT_SECRET" required:"true"`
	Issuer               string `envconfig:"THREADLINE_JWT_ISSUER" default:"threadline"`
	ExpirationMinutes    int    `envconfig:"THREADLINE_JWT_EXPIRATION_MINUTES" default:"15"`
	RefreshTokenTTLHours int    `envconfig:"THREADLINE_REFRESH_TOKEN_TTL_HOURS" default:"168"`
}

// RefreshTokenTTL returns the refresh token lifetime.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLHours <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLHours) * time.Hour
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"THREADLINE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"THREADLINE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"THREADLINE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"THREADLINE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"THREADLINE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"THREADLINE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"THREADLINE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"THREADLINE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"THREADLINE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"THREADLINE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"THREADLINE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// BusConfig configures the fanout event bus. Queue prefix becomes part of
// every subscription name so each service gets its own durable queue per
// topic (fanout: every bound queue sees every message).
type BusConfig struct {
	ProjectID       string        `envconfig:"THREADLINE_BUS_PROJECT_ID" required:"true"`
	CredentialsJSON string        `envconfig:"THREADLINE_BUS_CREDENTIALS_JSON"`
	QueuePrefix     string        `envconfig:"THREADLINE_BUS_QUEUE_PREFIX"`
	RetryDelay      time.Duration `envconfig:"THREADLINE_BUS_RETRY_DELAY" default:"5s"`
	PublishTimeout  time.Duration `envconfig:"THREADLINE_BUS_PUBLISH_TIMEOUT" default:"10s"`
}

type GatewayConfig struct {
	AuthServiceURL    string `envconfig:"THREADLINE_GATEWAY_AUTH_URL" default:"http://localhost:8081"`
	UserServiceURL    string `envconfig:"THREADLINE_GATEWAY_USER_URL" default:"http://localhost:8082"`
	ProductServiceURL string `envconfig:"THREADLINE_GATEWAY_PRODUCT_URL" default:"http://localhost:8083"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"THREADLINE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"THREADLINE_AUTO_MIGRATE" default:"false"`
}
