package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/calculus-oom/gradebook/internal/domain/exam"
	"github.com/calculus-oom/gradebook/internal/domain/gradebook"
	"github.com/calculus-oom/gradebook/internal/domain/grading"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET WEIGHTS COMMAND
// Assigns per-exam weights for a term. Assigning a weight to a prepared exam
// finalizes it.
// ══════════════════════════════════════════════════════════════════════════════

// SetWeightsCommand maps exam names to weights.
type SetWeightsCommand struct {
	Term    string
	Weights map[string]float64
}

// Validate validates the command.
func (c SetWeightsCommand) Validate() error {
	if err := shared.ValidateTerm(c.Term); err != nil {
		return err
	}
	if len(c.Weights) == 0 {
		return shared.NewValidationError("weights", "Validate", "at least one weight is required", "weights")
	}
	var bad []string
	for name, w := range c.Weights {
		if name == "" || math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			bad = append(bad, name)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return shared.NewValidationError("weights", "Validate", "weights must be non-negative numbers", bad...)
	}
	return nil
}

// SetWeightsResult reports which exams received a weight.
type SetWeightsResult struct {
	Term      string            `json:"term"`
	Weights   map[string]string `json:"weights"`
	Updated   []string          `json:"updated"`
	Finalized []string          `json:"finalized"`
	Unmatched []string          `json:"unmatched"`
}

// SetWeightsHandler handles the SetWeightsCommand.
type SetWeightsHandler struct {
	deps Deps
}

// NewSetWeightsHandler creates a new SetWeightsHandler.
func NewSetWeightsHandler(deps Deps) *SetWeightsHandler {
	return &SetWeightsHandler{deps: deps.withDefaults()}
}

// Handle executes the command. Names that match no exam of the term are
// reported in Unmatched and otherwise ignored.
func (h *SetWeightsHandler) Handle(ctx context.Context, cmd SetWeightsCommand) (*SetWeightsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	weights := make(map[string]string, len(cmd.Weights))
	parts := make([]decimal.Decimal, 0, len(cmd.Weights))
	for name, w := range cmd.Weights {
		d := decimal.NewFromFloat(w)
		weights[name] = d.String()
		parts = append(parts, d)
	}
	if err := grading.CheckWeightSum(parts, h.deps.Policy.WeightTolerance); err != nil {
		if errors.Is(err, grading.ErrWeightSum) {
			return nil, shared.WrapError("weights", "Handle", shared.ErrPrecondition, "weights do not sum to 1.0", err)
		}
		return nil, err
	}

	result := &SetWeightsResult{Term: cmd.Term, Weights: weights}
	var events []shared.Event

	err := h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		exams, err := repos.Exams.List(ctx, shared.Filter{exam.FieldTerm: cmd.Term})
		if err != nil {
			return err
		}
		now := h.deps.Clock.Now()
		matched := make(map[string]bool, len(weights))

		for _, e := range exams {
			w, ok := weights[e.Name]
			if !ok {
				continue
			}
			matched[e.Name] = true
			from := e.State
			if e.AssignWeight(w, now) {
				result.Finalized = append(result.Finalized, e.ID)
				events = append(events, shared.NewExamStateChangedEvent(e.ID, e.Term, from.String(), e.State.String(), "weight_assigned"))
			}
			if err := repos.Exams.Update(ctx, e); err != nil {
				return err
			}
			result.Updated = append(result.Updated, e.ID)
		}

		for name := range weights {
			if !matched[name] {
				result.Unmatched = append(result.Unmatched, name)
			}
		}
		sort.Strings(result.Unmatched)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set_weights: %w", err)
	}

	h.deps.Logger.Info("weights assigned",
		logger.Term(cmd.Term),
		logger.Int("updated", len(result.Updated)),
		logger.Int("finalized", len(result.Finalized)),
		logger.Any("unmatched", result.Unmatched),
	)
	events = append(events, shared.NewWeightsAssignedEvent(cmd.Term, weights))
	h.deps.publish(events...)
	return result, nil
}
