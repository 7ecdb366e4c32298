// internal/pkg/lock/local_lock.go
package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is the single-process Locker used when no Redis is configured.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	opts  Options
	clock func() time.Time
}

type localEntry struct {
	token   string
	expires time.Time
}

func NewLocalLocker(opts Options) *LocalLocker {
	return &LocalLocker{
		held:  make(map[string]localEntry),
		opts:  opts.withDefaults(),
		clock: time.Now,
	}
}

func (l *LocalLocker) Acquire(ctx context.Context, keys ...string) (Release, error) {
	return acquireAll(ctx, l.opts, keys, l.try, l.release)
}

func (l *LocalLocker) try(_ context.Context, key, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return false, nil
	}
	l.held[key] = localEntry{token: token, expires: now.Add(l.opts.TTL)}
	return true, nil
}

func (l *LocalLocker) release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.held[key]; ok && e.token == token {
		delete(l.held, key)
	}
	return nil
}
