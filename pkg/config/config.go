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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Lock         LockConfig
	FeatureFlags FeatureFlagsConfig
	Billing      BillingConfig
	Payments     PaymentsConfig
	Import       ImportConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Billing.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Lock.validate(cfg.Redis); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PROPERTYLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"PROPERTYLEDGER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PROPERTYLEDGER_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"PROPERTYLEDGER_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"PROPERTYLEDGER_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string      `envconfig:"PROPERTYLEDGER_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout    time.Duration `envconfig:"PROPERTYLEDGER_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PROPERTYLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PROPERTYLEDGER_DB_DSN"`
	Driver string `envconfig:"PROPERTYLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PROPERTYLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"PROPERTYLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PROPERTYLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"PROPERTYLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"PROPERTYLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"PROPERTYLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PROPERTYLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PROPERTYLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PROPERTYLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PROPERTYLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PROPERTYLEDGER_REDIS_URL"`
	Address      string        `envconfig:"PROPERTYLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"PROPERTYLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"PROPERTYLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PROPERTYLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PROPERTYLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PROPERTYLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PROPERTYLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PROPERTYLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// LockConfig selects how per-invoice and per-contract exclusion is enforced.
type LockConfig struct {
	Backend      string        `envconfig:"PROPERTYLEDGER_LOCK_BACKEND" default:"memory"`
	TTL          time.Duration `envconfig:"PROPERTYLEDGER_LOCK_TTL" default:"30s"`
	WaitTimeout  time.Duration `envconfig:"PROPERTYLEDGER_LOCK_WAIT_TIMEOUT" default:"10s"`
	PollInterval time.Duration `envconfig:"PROPERTYLEDGER_LOCK_POLL_INTERVAL" default:"25ms"`
}

func (l LockConfig) validate(redis RedisConfig) error {
	switch strings.ToLower(strings.TrimSpace(l.Backend)) {
	case LockBackendMemory:
		return nil
	case LockBackendRedis:
		if !redis.Enabled() {
			return fmt.Errorf("%s=%s requires %s or %s", EnvLockBackend, LockBackendRedis, EnvRedisURL, EnvRedisAddr)
		}
		return nil
	}
	return fmt.Errorf("unsupported lock backend %q", l.Backend)
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PROPERTYLEDGER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PROPERTYLEDGER_AUTO_MIGRATE" default:"false"`
}

// BillingConfig carries the standard tariff and penalty policy.
type BillingConfig struct {
	WaterRate       string `envconfig:"PROPERTYLEDGER_BILLING_WATER_RATE" default:"18"`
	ElectricityRate string `envconfig:"PROPERTYLEDGER_BILLING_ELECTRICITY_RATE" default:"8"`
	PenaltyRate     string `envconfig:"PROPERTYLEDGER_BILLING_PENALTY_RATE" default:"0.10"`
	DueDays         int    `envconfig:"PROPERTYLEDGER_BILLING_DUE_DAYS" default:"5"`
}

// Rates returns the parsed standard tariff.
func (b BillingConfig) Rates() (water, electricity decimal.Decimal, err error) {
	water, err = decimal.NewFromString(strings.TrimSpace(b.WaterRate))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid %s: %w", EnvBillingWaterRate, err)
	}
	electricity, err = decimal.NewFromString(strings.TrimSpace(b.ElectricityRate))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid %s: %w", EnvBillingElectricityRate, err)
	}
	return water, electricity, nil
}

// Penalty returns the parsed overdue surcharge rate.
func (b BillingConfig) Penalty() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(b.PenaltyRate))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", EnvBillingPenaltyRate, err)
	}
	return rate, nil
}

// DueAfter returns how long after the period anchor an invoice becomes payable.
func (b BillingConfig) DueAfter() time.Duration {
	if b.DueDays <= 0 {
		return 0
	}
	return time.Duration(b.DueDays) * 24 * time.Hour
}

func (b BillingConfig) validate() error {
	water, electricity, err := b.Rates()
	if err != nil {
		return err
	}
	if water.IsNegative() || electricity.IsNegative() {
		return fmt.Errorf("standard utility rates must be non-negative")
	}
	penalty, err := b.Penalty()
	if err != nil {
		return err
	}
	if penalty.IsNegative() || penalty.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be between 0 and 1", EnvBillingPenaltyRate)
	}
	return nil
}

type PaymentsConfig struct {
	AutoConfirm bool `envconfig:"PROPERTYLEDGER_PAYMENTS_AUTO_CONFIRM" default:"false"`
}

type ImportConfig struct {
	Concurrency int `envconfig:"PROPERTYLEDGER_IMPORT_CONCURRENCY" default:"1"`
	MaxRows     int `envconfig:"PROPERTYLEDGER_IMPORT_MAX_ROWS" default:"5000"`
}

type CronConfig struct {
	Interval       time.Duration `envconfig:"PROPERTYLEDGER_CRON_INTERVAL" default:"1h"`
	SweepBatchSize int           `envconfig:"PROPERTYLEDGER_CRON_SWEEP_BATCH_SIZE" default:"200"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:propertyledger.db?_foreign_keys=on"
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
