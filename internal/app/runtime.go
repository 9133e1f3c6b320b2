package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/propertyledger-backend/pkg/config"
	"github.com/angelmondragon/propertyledger-backend/pkg/db"
	"github.com/angelmondragon/propertyledger-backend/pkg/lock"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
	"github.com/angelmondragon/propertyledger-backend/pkg/metrics"
	"github.com/angelmondragon/propertyledger-backend/pkg/migrate"
	"github.com/angelmondragon/propertyledger-backend/pkg/redis"
)

// Runtime is the set of process-wide clients a binary opens at start-up.
type Runtime struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client // nil when no Redis endpoint is configured
	Locks    lock.Mutex
	Registry *prometheus.Registry
	Billing  *metrics.BillingMetrics
	Services *Services
}

// Open connects the database (running dev migrations when enabled), Redis
// when configured, the lock backend and the billing services.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logg, Registry: prometheus.NewRegistry()}
	rt.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.Billing = metrics.NewBillingMetrics(rt.Registry)

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	rt.DB = dbClient

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		rt.Close()
		return nil, fmt.Errorf("dev migrations: %w", err)
	}

	var lockStore redis.LockStore
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		rt.Redis = redisClient
		lockStore = redisClient
	}

	locks, err := lock.New(cfg.Lock, lockStore, logg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("lock backend: %w", err)
	}
	rt.Locks = locks

	services, err := NewServices(Params{
		Config:  cfg,
		DB:      dbClient,
		Locks:   locks,
		Logger:  logg,
		Metrics: rt.Billing,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Services = services
	return rt, nil
}

// Close releases the clients opened by Open.
func (rt *Runtime) Close() {
	ctx := context.Background()
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			rt.Logger.Error(ctx, "error closing redis", err)
		}
	}
	if rt.DB != nil {
		if err := rt.DB.Close(); err != nil {
			rt.Logger.Error(ctx, "error closing database", err)
		}
	}
}
