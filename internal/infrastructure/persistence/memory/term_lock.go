package memory

import (
	"context"
	"sync"

	"github.com/calculus-oom/gradebook/internal/domain/gradebook"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// TermLocker is an in-process gradebook.TermLocker for single-instance runs.
type TermLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewTermLocker creates a TermLocker with no locks held.
func NewTermLocker() *TermLocker {
	return &TermLocker{held: make(map[string]struct{})}
}

// Acquire takes the lock for term or fails with shared.ErrConflict.
func (l *TermLocker) Acquire(ctx context.Context, term string) (gradebook.ReleaseFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[term]; ok {
		return nil, shared.NewDomainError("finalize", "Lock", shared.ErrConflict, "term "+term+" is being finalized")
	}
	l.held[term] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, term)
			l.mu.Unlock()
		})
		return nil
	}, nil
}
