// Package gradebook defines the ports through which the application layer
// reaches storage as a whole: the unit of work and the per-term lock.
package gradebook

import (
	"context"

	"github.com/calculus-oom/gradebook/internal/domain/exam"
	"github.com/calculus-oom/gradebook/internal/domain/score"
	"github.com/calculus-oom/gradebook/internal/domain/student"
)

// Repositories bundles the repositories bound to one transaction or connection.
type Repositories struct {
	Students student.Repository
	Exams    exam.Repository
	Scores   score.Repository
}

// TxFunc is the body of a transaction.
type TxFunc func(ctx context.Context, repos Repositories) error

// UnitOfWork runs a function against repositories sharing one transaction.
// If fn returns an error, every write it made is rolled back.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn TxFunc) error

	// Repositories returns repositories outside of any transaction, for reads.
	Repositories() Repositories
}

// ReleaseFunc releases a lock acquired by TermLocker.
type ReleaseFunc func(ctx context.Context) error

// TermLocker serializes operations that rewrite a whole term.
type TermLocker interface {
	// Acquire takes the lock for term. A held lock is reported as shared.ErrConflict.
	Acquire(ctx context.Context, term string) (ReleaseFunc, error)
}
