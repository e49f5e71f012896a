package command

import (
	"context"
	"fmt"

	"github.com/calculus-oom/gradebook/internal/domain/gradebook"
	"github.com/calculus-oom/gradebook/internal/domain/score"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/internal/domain/student"
	"github.com/calculus-oom/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET STUDENT STATUS COMMAND
// Writes a student's status. Withdrawal clears every score row of the student.
// ══════════════════════════════════════════════════════════════════════════════

// SetStudentStatusCommand contains the new status. Status accepts canonical
// and legacy spellings.
type SetStudentStatusCommand struct {
	StudentID string
	Status    string
}

// Validate validates the command.
func (c SetStudentStatusCommand) Validate() error {
	if c.StudentID == "" {
		return shared.NewValidationError("student", "SetStatus", "student id is required", "student_id")
	}
	_, err := student.ParseStatus(c.Status)
	return err
}

// SetStudentStatusResult contains the updated student.
type SetStudentStatusResult struct {
	Student       student.Student `json:"student"`
	OldStatus     student.Status  `json:"old_status"`
	ClearedScores int             `json:"cleared_scores"`
}

// SetStudentStatusHandler handles the SetStudentStatusCommand.
type SetStudentStatusHandler struct {
	deps Deps
}

// NewSetStudentStatusHandler creates a new SetStudentStatusHandler.
func NewSetStudentStatusHandler(deps Deps) *SetStudentStatusHandler {
	return &SetStudentStatusHandler{deps: deps.withDefaults()}
}

// Handle executes the command in one transaction.
func (h *SetStudentStatusHandler) Handle(ctx context.Context, cmd SetStudentStatusCommand) (*SetStudentStatusResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	status, _ := student.ParseStatus(cmd.Status)

	var result SetStudentStatusResult
	err := h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		st, err := repos.Students.Get(ctx, student.FieldID, cmd.StudentID)
		if err != nil {
			return err
		}
		now := h.deps.Clock.Now()
		result.OldStatus = st.Status

		if status == student.StatusWithdrawn {
			scores, err := repos.Scores.List(ctx, shared.Filter{score.FieldStudentID: st.ID})
			if err != nil {
				return err
			}
			for _, sc := range scores {
				sc.ClearScores(now)
				if err := repos.Scores.Update(ctx, sc); err != nil {
					return err
				}
			}
			result.ClearedScores = len(scores)
		}

		if err := st.SetStatus(status, now); err != nil {
			return err
		}
		if err := repos.Students.Update(ctx, st); err != nil {
			return err
		}
		result.Student = st
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set_student_status: %w", err)
	}

	h.deps.Logger.Info("student status set",
		logger.StudentID(cmd.StudentID),
		logger.String("old_status", result.OldStatus.String()),
		logger.String("new_status", status.String()),
		logger.Int("cleared_scores", result.ClearedScores),
	)
	h.deps.publish(shared.NewStudentStatusChangedEvent(
		result.Student.ID, result.Student.Term, result.OldStatus.String(), status.String(), result.ClearedScores > 0,
	))
	return &result, nil
}
