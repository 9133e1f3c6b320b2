// Package lock provides keyed mutual exclusion for invoice and contract
// mutations. Keys are plain strings such as "invoice:<uuid>".
package lock

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/propertyledger-backend/pkg/config"
	"github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
	"github.com/angelmondragon/propertyledger-backend/pkg/redis"
)

// ErrWaitTimeout is wrapped into a DEPENDENCY_ERROR when a lock could not be
// acquired within the configured wait.
var ErrWaitTimeout = stdErrors.New("lock wait timeout")

// Unlock releases a held lock. Calling it more than once is a no-op.
type Unlock func()

// Mutex serialises work per key.
type Mutex interface {
	// Lock blocks until the key is held, the wait timeout elapses or ctx ends.
	Lock(ctx context.Context, key string) (Unlock, error)
	// TryLock returns ok=false immediately when the key is already held.
	TryLock(ctx context.Context, key string) (Unlock, bool, error)
}

// InvoiceKey names the lock guarding one invoice's ledger and fields.
func InvoiceKey(id uuid.UUID) string {
	return "invoice:" + id.String()
}

// ContractKey names the lock guarding invoice creation for one contract.
func ContractKey(id uuid.UUID) string {
	return "contract:" + id.String()
}

// New returns the backend selected by cfg. store may be nil for the memory backend.
func New(cfg config.LockConfig, store redis.LockStore, logg *logger.Logger) (Mutex, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", config.LockBackendMemory:
		return NewLocal(cfg.WaitTimeout), nil
	case config.LockBackendRedis:
		return NewRedis(store, RedisOptions{
			TTL:          cfg.TTL,
			WaitTimeout:  cfg.WaitTimeout,
			PollInterval: cfg.PollInterval,
			Logger:       logg,
		})
	}
	return nil, fmt.Errorf("unsupported lock backend %q", cfg.Backend)
}

func timeoutError(key string, cause error) error {
	if cause == nil {
		cause = ErrWaitTimeout
	} else if !stdErrors.Is(cause, ErrWaitTimeout) {
		cause = fmt.Errorf("%w: %v", ErrWaitTimeout, cause)
	}
	return errors.Wrap(errors.CodeDependency, cause, "resource is busy, retry later").
		WithDetails(map[string]any{"lock": key})
}

func waitContext(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if wait <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, wait)
}
