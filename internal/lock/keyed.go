// Package lock provides per-key shared/exclusive locks with a bounded wait.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/ec-backoffice/internal/apperr"
	"golang.org/x/sync/semaphore"
)

type Mode int

const (
	Shared Mode = iota
	Exclusive
)

func (m Mode) String() string {
	if m == Exclusive {
		return "exclusive"
	}
	return "shared"
}

// capacity bounds concurrent shared holders of one key; an exclusive holder takes all of it.
const capacity = 1 << 20

var ErrLockTimeout = apperr.ConcurrencyConflict("lock wait timed out", nil)

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// KeyedLocker hands out shared and exclusive locks per key. Waiters are served
// in FIFO order, so a pending exclusive request holds back later shared ones.
type KeyedLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
}

// NewKeyedLocker returns a locker whose acquisitions give up after timeout.
// A zero timeout waits until ctx is done.
func NewKeyedLocker(timeout time.Duration) *KeyedLocker {
	return &KeyedLocker{
		entries: make(map[string]*entry),
		timeout: timeout,
	}
}

// Acquire blocks until key is held in mode and returns its release func.
// A timed-out wait returns an error wrapping ErrLockTimeout.
func (l *KeyedLocker) Acquire(ctx context.Context, key string, mode Mode) (func(), error) {
	weight := int64(1)
	if mode == Exclusive {
		weight = capacity
	}

	e := l.ref(key)

	waitCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if err := e.sem.Acquire(waitCtx, weight); err != nil {
		l.unref(key)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.Wrapf(ErrLockTimeout, "timed out after %s waiting for %s lock on %s", l.timeout, mode, key)
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(weight)
			l.unref(key)
		})
	}, nil
}

// Len reports how many keys are currently held or awaited.
func (l *KeyedLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *KeyedLocker) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(capacity)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *KeyedLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}
