package cron

import (
	"context"
	"errors"
	"sync"

	"github.com/angelmondragon/propertyledger-backend/pkg/lock"
)

// WorkerLockKey names the lock that elects the worker running a cycle.
const WorkerLockKey = "cron:worker"

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// MutexLock adapts a lock.Mutex into a non-blocking cycle lock, so workers
// that lose the race skip the cycle instead of queueing behind it.
type MutexLock struct {
	mutex lock.Mutex
	key   string

	mu     sync.Mutex
	unlock lock.Unlock
}

// NewMutexLock builds a cycle lock on key.
func NewMutexLock(mutex lock.Mutex, key string) (*MutexLock, error) {
	if mutex == nil {
		return nil, errors.New("mutex required for cron lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	return &MutexLock{mutex: mutex, key: key}, nil
}

// Acquire tries to own the lock without waiting.
func (l *MutexLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unlock != nil {
		return false, nil
	}
	unlock, ok, err := l.mutex.TryLock(ctx, l.key)
	if err != nil || !ok {
		return false, err
	}
	l.unlock = unlock
	return true, nil
}

// Release frees the lock if this instance holds it.
func (l *MutexLock) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unlock == nil {
		return nil
	}
	l.unlock()
	l.unlock = nil
	return nil
}
