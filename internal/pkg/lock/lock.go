// internal/pkg/lock/lock.go
package lock

import (
	"context"
	"fmt"
	"sort"
	"time"

	xerrors "dedupe-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/multierr"
)

// Release frees every key taken by one Acquire call.
type Release func(ctx context.Context) error

// Locker hands out short-lived exclusive locks on named keys.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (Release, error)
}

type Options struct {
	TTL           time.Duration // lock expiry, guards against crashed holders
	WaitTimeout   time.Duration // how long Acquire retries a held key
	RetryInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 30 * time.Second
	}
	if o.WaitTimeout < 0 {
		o.WaitTimeout = 0
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 50 * time.Millisecond
	}
	return o
}

// RecordKey names the lock guarding one customer record.
func RecordKey(id int64) string {
	return fmt.Sprintf("record:%d", id)
}

// RecordKeys returns the lock keys for ids in ascending id order, without
// duplicates, so concurrent merges always lock in the same order.
func RecordKeys(ids ...int64) []string {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	keys := make([]string, 0, len(sorted))
	var last int64
	for i, id := range sorted {
		if i > 0 && id == last {
			continue
		}
		last = id
		keys = append(keys, RecordKey(id))
	}
	return keys
}

func newToken() string {
	return ulid.Make().String()
}

type tryFunc func(ctx context.Context, key, token string) (bool, error)
type releaseFunc func(ctx context.Context, key, token string) error

// acquireAll takes keys one by one in the given order and backs out of the
// ones already held when a later key cannot be taken.
func acquireAll(ctx context.Context, opts Options, keys []string, try tryFunc, free releaseFunc) (Release, error) {
	token := newToken()
	held := make([]string, 0, len(keys))

	releaseHeld := func(ctx context.Context) error {
		var errs error
		for i := len(held) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, free(ctx, held[i], token))
		}
		held = held[:0]
		return errs
	}

	for _, key := range keys {
		if err := acquireOne(ctx, opts, key, token, try); err != nil {
			_ = releaseHeld(context.WithoutCancel(ctx))
			return nil, err
		}
		held = append(held, key)
	}

	return releaseHeld, nil
}

func acquireOne(ctx context.Context, opts Options, key, token string, try tryFunc) error {
	deadline := time.Now().Add(opts.WaitTimeout)
	for {
		ok, err := try(ctx, key, token)
		if err != nil {
			return fmt.Errorf("failed to lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s is held by another merge", xerrors.ErrConflict, key)
		}

		timer := time.NewTimer(opts.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
