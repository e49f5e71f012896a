package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calculus-oom/gradebook/internal/domain/gradebook"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// TermLocker is a gradebook.TermLocker shared by every instance using the
// same Redis. The lock value is a random token; release deletes the key only
// while it still holds that token, so an expired lock taken over by another
// instance is never released by the previous owner.
type TermLocker struct {
	cache *Cache
	ttl   time.Duration
}

var _ gradebook.TermLocker = (*TermLocker)(nil)

// NewTermLocker creates a locker whose locks expire after ttl.
func NewTermLocker(cache *Cache, ttl time.Duration) *TermLocker {
	if ttl <= 0 {
		ttl = TTLFinalizeLock
	}
	return &TermLocker{cache: cache, ttl: ttl}
}

// Acquire implements gradebook.TermLocker.
func (l *TermLocker) Acquire(ctx context.Context, term string) (gradebook.ReleaseFunc, error) {
	key := LockKey("term:" + term)
	token := uuid.NewString()

	ok, err := l.cache.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		return nil, shared.StorageFailure("finalize", "Lock", err)
	}
	if !ok {
		return nil, shared.NewDomainError("finalize", "Lock", shared.ErrConflict, "term "+term+" is being finalized")
	}

	var once sync.Once
	return func(ctx context.Context) error {
		var rerr error
		once.Do(func() {
			if _, err := l.cache.DeleteIfEquals(ctx, key, token); err != nil {
				rerr = shared.StorageFailure("finalize", "Unlock", err)
			}
		})
		return rerr
	}, nil
}
