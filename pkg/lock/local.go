package lock

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	slot chan struct{}
	refs int
}

// Local is an in-process Mutex. It is correct for a single API instance.
type Local struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	wait    time.Duration
}

// NewLocal builds an in-process mutex. wait<=0 means wait until ctx ends.
func NewLocal(wait time.Duration) *Local {
	return &Local{entries: make(map[string]*localEntry), wait: wait}
}

func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	entry := l.ref(key)
	waitCtx, cancel := waitContext(ctx, l.wait)
	defer cancel()

	select {
	case entry.slot <- struct{}{}:
		return l.unlocker(key, entry), nil
	case <-waitCtx.Done():
		l.unref(key, entry)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, timeoutError(key, nil)
	}
}

func (l *Local) TryLock(_ context.Context, key string) (Unlock, bool, error) {
	entry := l.ref(key)
	select {
	case entry.slot <- struct{}{}:
		return l.unlocker(key, entry), true, nil
	default:
		l.unref(key, entry)
		return nil, false, nil
	}
}

// held reports how many keys currently have waiters or holders.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Local) unlocker(key string, entry *localEntry) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.slot
			l.unref(key, entry)
		})
	}
}

func (l *Local) ref(key string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &localEntry{slot: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *Local) unref(key string, entry *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}
