package config

const EnvPrefix = "PROPERTYLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

const (
	EnvAppEnv  = "PROPERTYLEDGER_APP_ENV"
	EnvPort    = "PROPERTYLEDGER_APP_PORT"
	EnvLogLvl  = "PROPERTYLEDGER_LOG_LEVEL"
	EnvLogFmt  = "PROPERTYLEDGER_LOG_FORMAT"
	EnvDBDSN   = "PROPERTYLEDGER_DB_DSN"
	EnvDBHost  = "PROPERTYLEDGER_DB_HOST"
	EnvDBUser  = "PROPERTYLEDGER_DB_USER"
	EnvDBName  = "PROPERTYLEDGER_DB_NAME"
	EnvSQLite  = "PROPERTYLEDGER_USE_SQLITE"
	EnvMigrate = "PROPERTYLEDGER_AUTO_MIGRATE"

	EnvRedisURL  = "PROPERTYLEDGER_REDIS_URL"
	EnvRedisAddr = "PROPERTYLEDGER_REDIS_ADDR"

	EnvLockBackend = "PROPERTYLEDGER_LOCK_BACKEND"

	EnvBillingWaterRate       = "PROPERTYLEDGER_BILLING_WATER_RATE"
	EnvBillingElectricityRate = "PROPERTYLEDGER_BILLING_ELECTRICITY_RATE"
	EnvBillingPenaltyRate     = "PROPERTYLEDGER_BILLING_PENALTY_RATE"
	EnvBillingDueDays         = "PROPERTYLEDGER_BILLING_DUE_DAYS"

	EnvPaymentsAutoConfirm = "PROPERTYLEDGER_PAYMENTS_AUTO_CONFIRM"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
