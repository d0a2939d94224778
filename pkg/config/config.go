package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Cart         CartConfig
	Checkout     CheckoutConfig
	Admin        AdminConfig
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
	if err := cfg.Cart.validate(cfg.Redis); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Admin.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FOODMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"FOODMARKET_APP_PORT" default:"3000"`
	LogLevel     string `envconfig:"FOODMARKET_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"FOODMARKET_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"FOODMARKET_LOG_WARN_STACK" default:"false"`
	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `envconfig:"FOODMARKET_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FOODMARKET_DB_DSN"`
	Driver string `envconfig:"FOODMARKET_DB_DRIVER" default:"sqlite"`

	LegacyHost     string `envconfig:"FOODMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"FOODMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FOODMARKET_DB_USER"`
	LegacyPassword string `envconfig:"FOODMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"FOODMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"FOODMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FOODMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FOODMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FOODMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FOODMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"FOODMARKET_REDIS_URL"`
	Address      string        `envconfig:"FOODMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"FOODMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"FOODMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FOODMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FOODMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FOODMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FOODMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FOODMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type CartConfig struct {
	Backend    string        `envconfig:"FOODMARKET_CART_BACKEND" default:"db"`
	StorageKey string        `envconfig:"FOODMARKET_CART_STORAGE_KEY" default:"foodmarketplace_cart"`
	LegacyKeys []string      `envconfig:"FOODMARKET_CART_LEGACY_KEYS" default:"cartItems"`
	KeyTTL     time.Duration `envconfig:"FOODMARKET_CART_KEY_TTL" default:"720h"`
	CookieName string        `envconfig:"FOODMARKET_CART_COOKIE" default:"fm_cart_session"`
	// MemoryQuota caps the in-process backend in bytes, like a browser storage quota.
	MemoryQuota int `envconfig:"FOODMARKET_CART_MEMORY_QUOTA" default:"5242880"`
}

func (c CartConfig) validate(redisCfg RedisConfig) error {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case CartBackendMemory, CartBackendDB:
	case CartBackendRedis:
		if !redisCfg.Enabled() {
			return fmt.Errorf("%s=redis requires %s or %s", EnvCartBackend, EnvRedisURL, EnvRedisAddr)
		}
	default:
		return fmt.Errorf("unsupported cart backend %q", c.Backend)
	}
	if strings.TrimSpace(c.StorageKey) == "" {
		return fmt.Errorf("%s must not be empty", EnvCartStorageKey)
	}
	return nil
}

type CheckoutConfig struct {
	TaxRate      string        `envconfig:"FOODMARKET_CHECKOUT_TAX_RATE" default:"0.04"`
	OrderPrefix  string        `envconfig:"FOODMARKET_CHECKOUT_ORDER_PREFIX" default:"GTS"`
	Merchant     string        `envconfig:"FOODMARKET_CHECKOUT_MERCHANT" default:"GTS"`
	PaymentDelay time.Duration `envconfig:"FOODMARKET_CHECKOUT_PAYMENT_DELAY" default:"2s"`
}

// Tax returns the parsed tax rate. Load has already rejected malformed values.
func (c CheckoutConfig) Tax() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.TaxRate))
	if err != nil {
		return decimal.Zero
	}
	return rate
}

func (c CheckoutConfig) validate() error {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.TaxRate))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvCheckoutTaxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be within [0, 1), got %s", EnvCheckoutTaxRate, rate)
	}
	if c.PaymentDelay < 0 {
		return fmt.Errorf("%s must not be negative", EnvCheckoutPaymentDelay)
	}
	return nil
}

// AdminConfig guards the catalog write routes. They are not mounted while
// JWTSecret is empty.
type AdminConfig struct {
	JWTSecret string        `envconfig:"FOODMARKET_ADMIN_JWT_SECRET"`
	JWTIssuer string        `envconfig:"FOODMARKET_ADMIN_JWT_ISSUER" default:"foodmarketplace"`
	TokenTTL  time.Duration `envconfig:"FOODMARKET_ADMIN_TOKEN_TTL" default:"12h"`
}

func (a AdminConfig) Enabled() bool {
	return strings.TrimSpace(a.JWTSecret) != ""
}

func (a AdminConfig) validate() error {
	if !a.Enabled() {
		return nil
	}
	if len(a.JWTSecret) < 32 {
		return fmt.Errorf("%s must be at least 32 bytes", EnvAdminJWTSecret)
	}
	if strings.TrimSpace(a.JWTIssuer) == "" {
		return fmt.Errorf("%s must not be empty", EnvAdminJWTIssuer)
	}
	if a.TokenTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvAdminTokenTTL)
	}
	return nil
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FOODMARKET_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
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
