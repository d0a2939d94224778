package config

// EnvPrefix is handed to envconfig; every field carries an explicit name so
// the prefix only matters for unnamed fields.
const EnvPrefix = "FOODMARKET"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
	DefaultSQLiteDSN = "file:foodmarketplace.db?_foreign_keys=on"

	CartBackendMemory = "memory"
	CartBackendRedis  = "redis"
	CartBackendDB     = "db"
)

const (
	EnvAppEnv    = "FOODMARKET_APP_ENV"
	EnvPort      = "FOODMARKET_APP_PORT"
	EnvLogLevel  = "FOODMARKET_LOG_LEVEL"
	EnvLogFormat = "FOODMARKET_LOG_FORMAT"

	EnvDBDSN    = "FOODMARKET_DB_DSN"
	EnvDBDriver = "FOODMARKET_DB_DRIVER"
	EnvDBHost   = "FOODMARKET_DB_HOST"
	EnvDBUser   = "FOODMARKET_DB_USER"
	EnvDBName   = "FOODMARKET_DB_NAME"

	EnvRedisURL  = "FOODMARKET_REDIS_URL"
	EnvRedisAddr = "FOODMARKET_REDIS_ADDR"

	EnvCartBackend    = "FOODMARKET_CART_BACKEND"
	EnvCartStorageKey = "FOODMARKET_CART_STORAGE_KEY"
	EnvCartLegacyKeys = "FOODMARKET_CART_LEGACY_KEYS"

	EnvCheckoutTaxRate      = "FOODMARKET_CHECKOUT_TAX_RATE"
	EnvCheckoutPaymentDelay = "FOODMARKET_CHECKOUT_PAYMENT_DELAY"

	EnvAdminJWTSecret = "FOODMARKET_ADMIN_JWT_SECRET"
	EnvAdminJWTIssuer = "FOODMARKET_ADMIN_JWT_ISSUER"
	EnvAdminTokenTTL  = "FOODMARKET_ADMIN_TOKEN_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
