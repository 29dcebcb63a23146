// Package lock provides in-process per-key mutual exclusion.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"fraud-risk-engine/internal/domain/fraud"
)

// Local serializes work per user inside one process. Entries are
// reference counted and dropped when no goroutine holds or waits.
type Local struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*entry
	wait  time.Duration
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an empty keyed lock. A caller waits at most wait for a
// held lock; zero waits until ctx ends.
func NewLocal(wait time.Duration) *Local {
	return &Local{locks: make(map[uuid.UUID]*entry), wait: wait}
}

// Lock blocks until the user's lock is held, the wait elapses or ctx ends
func (l *Local) Lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[userID]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	var expired <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case e.ch <- struct{}{}:
	case <-expired:
		l.drop(userID, e)
		return nil, fraud.ErrUserLockUnavailable
	case <-ctx.Done():
		l.drop(userID, e)
		return nil, errors.Join(fraud.ErrUserLockUnavailable, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.drop(userID, e)
		})
	}, nil
}

func (l *Local) drop(userID uuid.UUID, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, userID)
	}
}

// Len reports how many users currently have a held or awaited lock
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
