// Package command contains the write operations of the gradebook.
package command

import (
	"github.com/shopspring/decimal"

	"github.com/calculus-oom/gradebook/internal/domain/asset"
	"github.com/calculus-oom/gradebook/internal/domain/gradebook"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/pkg/logger"
	"github.com/calculus-oom/gradebook/pkg/timeutil"
)

// Policy holds the tunable grading rules.
type Policy struct {
	// WeightTolerance bounds |sum-1| when weights are assigned.
	WeightTolerance decimal.Decimal

	// FinalizeWeightTolerance bounds |sum-1| when a term is finalized.
	// Zero requires exact decimal equality.
	FinalizeWeightTolerance decimal.Decimal
}

// DefaultPolicy returns 0.001 for assignment and exact equality for finalize.
func DefaultPolicy() Policy {
	return Policy{
		WeightTolerance:         decimal.RequireFromString("0.001"),
		FinalizeWeightTolerance: decimal.Zero,
	}
}

// Deps are the collaborators shared by all command handlers.
type Deps struct {
	UnitOfWork gradebook.UnitOfWork
	Locker     gradebook.TermLocker
	Assets     asset.Store
	Files      asset.FileStore
	Events     shared.EventPublisher
	IDs        *shared.IDGenerator
	Clock      timeutil.Clock
	Logger     *logger.Logger
	Policy     Policy
}

func (d Deps) withDefaults() Deps {
	if d.Events == nil {
		d.Events = shared.NopPublisher{}
	}
	if d.IDs == nil {
		d.IDs = shared.NewIDGenerator()
	}
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = logger.Discard()
	}
	return d
}

// publish sends events after commit. A failing handler never fails the command.
func (d Deps) publish(events ...shared.Event) {
	for _, e := range events {
		if err := d.Events.Publish(e); err != nil {
			d.Logger.Warn("event publish failed",
				logger.String("event_type", string(e.EventType())),
				logger.Term(e.Term()),
				logger.Err(err),
			)
		}
	}
}

func precondition(domain, op, message string) error {
	return shared.NewDomainError(domain, op, shared.ErrPrecondition, message)
}
