package command

import (
	"context"
	"fmt"

	"github.com/calculus-oom/gradebook/internal/domain/exam"
	"github.com/calculus-oom/gradebook/internal/domain/gradebook"
	"github.com/calculus-oom/gradebook/internal/domain/score"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/pkg/logger"
	"github.com/calculus-oom/gradebook/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXAM COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// CreateExamCommand contains the new exam's data. Date is YYYY-MM-DD or empty.
type CreateExamCommand struct {
	Name  string
	Term  string
	Date  string
	Range string
	State string // optional
}

// UpdateExamCommand changes descriptive fields of an exam.
type UpdateExamCommand struct {
	ExamID  string
	Details exam.Details
}

// SetExamStateCommand writes the state directly, bypassing the forward-only
// automatic transitions.
type SetExamStateCommand struct {
	ExamID string
	State  string
}

// DeleteExamCommand removes an exam.
type DeleteExamCommand struct {
	ExamID string
}

// ExamHandler handles the exam commands.
type ExamHandler struct {
	deps Deps
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(deps Deps) *ExamHandler {
	return &ExamHandler{deps: deps.withDefaults()}
}

func validateDate(date *string) error {
	if date == nil || *date == "" {
		return nil
	}
	if _, err := timeutil.ParseDate(*date); err != nil {
		return shared.NewValidationError("exam", "Validate", "date must be YYYY-MM-DD", "date")
	}
	return nil
}

// examSubtype returns the slot code of a known exam name, or "gen".
func examSubtype(name string) string {
	if slot, ok := score.SlotForExamName(name); ok {
		return slot.Code()
	}
	return "gen"
}

// Create handles CreateExamCommand.
func (h *ExamHandler) Create(ctx context.Context, cmd CreateExamCommand) (*exam.Exam, error) {
	var state exam.State
	if cmd.State != "" {
		s, err := exam.ParseState(cmd.State)
		if err != nil {
			return nil, err
		}
		state = s
	}
	if err := validateDate(&cmd.Date); err != nil {
		return nil, err
	}

	e, err := exam.NewExam(exam.NewExamParams{
		ID:    h.deps.IDs.Exam(cmd.Term, examSubtype(cmd.Name)),
		Name:  cmd.Name,
		Term:  cmd.Term,
		Date:  cmd.Date,
		Range: cmd.Range,
		State: state,
		Now:   h.deps.Clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	err = h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		return repos.Exams.Create(ctx, *e)
	})
	if err != nil {
		return nil, fmt.Errorf("create_exam: %w", err)
	}

	h.deps.Logger.Info("exam created", logger.ExamID(e.ID), logger.Term(e.Term))
	return e, nil
}

// Update handles UpdateExamCommand.
func (h *ExamHandler) Update(ctx context.Context, cmd UpdateExamCommand) (*exam.Exam, error) {
	if err := validateDate(cmd.Details.Date); err != nil {
		return nil, err
	}

	var updated exam.Exam
	err := h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		e, err := repos.Exams.Get(ctx, exam.FieldID, cmd.ExamID)
		if err != nil {
			return err
		}
		if err := e.Update(cmd.Details, h.deps.Clock.Now()); err != nil {
			return err
		}
		if err := repos.Exams.Update(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update_exam: %w", err)
	}
	return &updated, nil
}

// SetState handles SetExamStateCommand.
func (h *ExamHandler) SetState(ctx context.Context, cmd SetExamStateCommand) (*exam.Exam, error) {
	state, err := exam.ParseState(cmd.State)
	if err != nil {
		return nil, err
	}

	var updated exam.Exam
	var from exam.State
	err = h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		e, err := repos.Exams.Get(ctx, exam.FieldID, cmd.ExamID)
		if err != nil {
			return err
		}
		from = e.State
		if err := e.SetState(state, h.deps.Clock.Now()); err != nil {
			return err
		}
		if err := repos.Exams.Update(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set_exam_state: %w", err)
	}

	if from != state {
		h.deps.publish(shared.NewExamStateChangedEvent(updated.ID, updated.Term, from.String(), state.String(), "manual"))
	}
	return &updated, nil
}

// Delete handles DeleteExamCommand. The asset bundle, if any, is kept and
// can be removed separately.
func (h *ExamHandler) Delete(ctx context.Context, cmd DeleteExamCommand) error {
	err := h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		return repos.Exams.Delete(ctx, cmd.ExamID)
	})
	if err != nil {
		return fmt.Errorf("delete_exam: %w", err)
	}
	h.deps.Logger.Info("exam deleted", logger.ExamID(cmd.ExamID))
	return nil
}
