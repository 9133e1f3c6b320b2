package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
	"github.com/angelmondragon/propertyledger-backend/pkg/redis"
)

const (
	defaultRedisTTL     = 30 * time.Second
	defaultPollInterval = 25 * time.Millisecond
	releaseTimeout      = 2 * time.Second
)

// RedisOptions tune the distributed mutex.
type RedisOptions struct {
	TTL          time.Duration
	WaitTimeout  time.Duration
	PollInterval time.Duration
	Logger       *logger.Logger
}

// Redis implements Mutex with SET NX plus an owner token. Release is an
// atomic compare-and-delete on that token.
type Redis struct {
	store RedisStore
	ttl   time.Duration
	wait  time.Duration
	poll  time.Duration
	logg  *logger.Logger
}

// RedisStore is the subset of pkg/redis used by the mutex.
type RedisStore = redis.LockStore

// NewRedis constructs a Redis-backed mutex.
func NewRedis(store RedisStore, opts RedisOptions) (*Redis, error) {
	if store == nil {
		return nil, errors.New("redis store required for lock")
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultRedisTTL
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &Redis{
		store: store,
		ttl:   opts.TTL,
		wait:  opts.WaitTimeout,
		poll:  opts.PollInterval,
		logg:  opts.Logger,
	}, nil
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	waitCtx, cancel := waitContext(ctx, r.wait)
	defer cancel()

	owner := uuid.NewString()
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		ok, err := r.store.SetNX(waitCtx, r.store.LockKey(key), owner, r.ttl)
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("setnx %s: %w", key, err)
		}
		if ok {
			return r.unlocker(ctx, key, owner), nil
		}
		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, timeoutError(key, nil)
		case <-ticker.C:
		}
	}
}

func (r *Redis) TryLock(ctx context.Context, key string) (Unlock, bool, error) {
	owner := uuid.NewString()
	ok, err := r.store.SetNX(ctx, r.store.LockKey(key), owner, r.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return r.unlocker(ctx, key, owner), true, nil
}

func (r *Redis) unlocker(ctx context.Context, key, owner string) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			if err := r.release(releaseCtx, key, owner); err != nil && r.logg != nil {
				r.logg.Error(r.logg.WithField(ctx, "lock", key), "failed to release lock", err)
			}
		})
	}
}

func (r *Redis) release(ctx context.Context, key, owner string) error {
	// A lapsed TTL may have handed the key to another holder; the
	// compare-and-delete runs server side so that holder is never evicted.
	if _, err := r.store.ReleaseIfOwner(ctx, r.store.LockKey(key), owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
