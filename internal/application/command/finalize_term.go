package command

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/calculus-oom/gradebook/internal/domain/exam"
	"github.com/calculus-oom/gradebook/internal/domain/gradebook"
	"github.com/calculus-oom/gradebook/internal/domain/grading"
	"github.com/calculus-oom/gradebook/internal/domain/score"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/internal/domain/student"
	"github.com/calculus-oom/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FINALIZE TERM COMMAND
// Computes the weighted total of every eligible student of a term and
// decides pass or fail. The whole pass commits or nothing does.
// ══════════════════════════════════════════════════════════════════════════════

// FinalizeTermCommand contains the term to finalize.
type FinalizeTermCommand struct {
	Term string

	// PassingThreshold is inclusive: a total equal to it passes.
	PassingThreshold float64
}

// Validate validates the command.
func (c FinalizeTermCommand) Validate() error {
	if err := shared.ValidateTerm(c.Term); err != nil {
		return err
	}
	t := c.PassingThreshold
	if math.IsNaN(t) || math.IsInf(t, 0) || t < shared.MinScore || t > shared.MaxScore {
		return shared.NewValidationError("finalize", "Validate",
			"passing threshold must be between 0 and 100", "passing_threshold")
	}
	return nil
}

// FinalizeTermResult reports what a finalize pass did.
type FinalizeTermResult struct {
	Term    string `json:"term"`
	Updated int    `json:"updated"`
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`

	SkippedWithdrawn  int `json:"skipped_withdrawn"`
	SkippedNoScore    int `json:"skipped_no_score"`
	SkippedIncomplete int `json:"skipped_incomplete"`
}

// FinalizeTermHandler handles the FinalizeTermCommand.
type FinalizeTermHandler struct {
	deps Deps
}

// NewFinalizeTermHandler creates a new FinalizeTermHandler.
func NewFinalizeTermHandler(deps Deps) *FinalizeTermHandler {
	return &FinalizeTermHandler{deps: deps.withDefaults()}
}

// Handle executes the finalize pass.
func (h *FinalizeTermHandler) Handle(ctx context.Context, cmd FinalizeTermCommand) (*FinalizeTermResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	release, err := h.deps.Locker.Acquire(ctx, cmd.Term)
	if err != nil {
		return nil, fmt.Errorf("finalize_term: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			h.deps.Logger.Warn("term lock release failed", logger.Term(cmd.Term), logger.Err(err))
		}
	}()

	var result *FinalizeTermResult
	err = h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		var err error
		result, err = h.finalize(ctx, repos, cmd)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("finalize_term: %w", err)
	}

	h.deps.Logger.Info("term finalized",
		logger.Term(cmd.Term),
		logger.Int("updated", result.Updated),
		logger.Int("passed", result.Passed),
		logger.Int("failed", result.Failed),
		logger.Int("skipped_withdrawn", result.SkippedWithdrawn),
		logger.Int("skipped_no_score", result.SkippedNoScore),
		logger.Int("skipped_incomplete", result.SkippedIncomplete),
	)
	h.deps.publish(shared.NewTermFinalizedEvent(cmd.Term, cmd.PassingThreshold, result.Updated))

	return result, nil
}

func (h *FinalizeTermHandler) finalize(ctx context.Context, repos gradebook.Repositories, cmd FinalizeTermCommand) (*FinalizeTermResult, error) {
	exams, err := repos.Exams.List(ctx, shared.Filter{exam.FieldTerm: cmd.Term})
	if err != nil {
		return nil, err
	}
	if len(exams) == 0 {
		return nil, precondition("finalize", "Handle", "term "+cmd.Term+" has no exams")
	}

	weights, err := h.termWeights(exams)
	if err != nil {
		return nil, err
	}

	students, err := repos.Students.List(ctx, shared.Filter{student.FieldTerm: cmd.Term})
	if err != nil {
		return nil, err
	}

	result := &FinalizeTermResult{Term: cmd.Term}
	now := h.deps.Clock.Now()

	for _, st := range students {
		if st.IsWithdrawn() {
			result.SkippedWithdrawn++
			continue
		}

		sc, err := repos.Scores.Get(ctx, score.FieldStudentID, st.ID)
		if shared.IsNotFound(err) {
			result.SkippedNoScore++
			continue
		}
		if err != nil {
			return nil, err
		}

		values, ok := sc.ByExamName()
		if !ok {
			result.SkippedIncomplete++
			continue
		}

		total := grading.WeightedTotal(values, weights)
		passed := grading.IsPassing(total, cmd.PassingThreshold)

		sc.SetTotal(grading.RoundScore(total), now)
		if err := repos.Scores.Update(ctx, sc); err != nil {
			return nil, err
		}
		st.Finalize(passed, now)
		if err := repos.Students.Update(ctx, st); err != nil {
			return nil, err
		}

		result.Updated++
		if passed {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

// termWeights collects the weights of the exams that carry one, keyed by the
// canonical exam name of the slot they grade.
func (h *FinalizeTermHandler) termWeights(exams []exam.Exam) (map[string]float64, error) {
	weights := make(map[string]float64, len(exams))
	var parts []decimal.Decimal

	for _, e := range exams {
		if !e.HasWeight() {
			continue
		}
		w, err := grading.ParseWeight(e.Weight)
		if err != nil {
			return nil, shared.WrapError("finalize", "Handle", shared.ErrPrecondition,
				"exam "+e.ID+" has an unusable weight", err)
		}
		parts = append(parts, w)

		name := e.Name
		if slot, ok := score.SlotForExamName(name); ok {
			name = slot.ExamName()
		}
		f, _ := w.Float64()
		weights[name] += f
	}

	if len(parts) == 0 {
		return nil, precondition("finalize", "Handle", "no exam of the term has a weight")
	}
	if err := grading.CheckWeightSum(parts, h.deps.Policy.FinalizeWeightTolerance); err != nil {
		if errors.Is(err, grading.ErrWeightSum) {
			return nil, shared.WrapError("finalize", "Handle", shared.ErrPrecondition, "weights do not sum to 1.0", err)
		}
		return nil, err
	}
	return weights, nil
}
