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
// STUDENT COMMANDS
// A student and its score row are created together and deleted together.
// ══════════════════════════════════════════════════════════════════════════════

// CreateStudentCommand contains the new student's data.
type CreateStudentCommand struct {
	Name   string
	Number string
	Term   string
	Status string // optional
}

// CreateStudentResult contains the created rows.
type CreateStudentResult struct {
	Student student.Student `json:"student"`
	Score   score.Score     `json:"score"`
}

// CreateStudentHandler handles the CreateStudentCommand.
type CreateStudentHandler struct {
	deps Deps
}

// NewCreateStudentHandler creates a new CreateStudentHandler.
func NewCreateStudentHandler(deps Deps) *CreateStudentHandler {
	return &CreateStudentHandler{deps: deps.withDefaults()}
}

// Handle creates the student and an empty score row in one transaction.
func (h *CreateStudentHandler) Handle(ctx context.Context, cmd CreateStudentCommand) (*CreateStudentResult, error) {
	var status student.Status
	if cmd.Status != "" {
		s, err := student.ParseStatus(cmd.Status)
		if err != nil {
			return nil, err
		}
		status = s
	}

	now := h.deps.Clock.Now()
	st, err := student.NewStudent(student.NewStudentParams{
		ID:     h.deps.IDs.Student(cmd.Term),
		Name:   cmd.Name,
		Number: cmd.Number,
		Term:   cmd.Term,
		Status: status,
		Now:    now,
	})
	if err != nil {
		return nil, err
	}
	sc := score.New(h.deps.IDs.Score(cmd.Term), st.ID, now)

	err = h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		if err := repos.Students.Create(ctx, *st); err != nil {
			return err
		}
		return repos.Scores.Create(ctx, *sc)
	})
	if err != nil {
		return nil, fmt.Errorf("create_student: %w", err)
	}

	h.deps.Logger.Info("student created", logger.StudentID(st.ID), logger.Term(st.Term))
	h.deps.publish(shared.NewStudentCreatedEvent(st.ID, sc.ID, st.Term))
	return &CreateStudentResult{Student: *st, Score: *sc}, nil
}

// UpdateStudentCommand changes descriptive fields. Status is changed only
// through SetStudentStatusCommand.
type UpdateStudentCommand struct {
	StudentID string
	Profile   student.Profile
}

// UpdateStudentHandler handles the UpdateStudentCommand.
type UpdateStudentHandler struct {
	deps Deps
}

// NewUpdateStudentHandler creates a new UpdateStudentHandler.
func NewUpdateStudentHandler(deps Deps) *UpdateStudentHandler {
	return &UpdateStudentHandler{deps: deps.withDefaults()}
}

// Handle applies the profile changes.
func (h *UpdateStudentHandler) Handle(ctx context.Context, cmd UpdateStudentCommand) (*student.Student, error) {
	var updated student.Student
	err := h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		st, err := repos.Students.Get(ctx, student.FieldID, cmd.StudentID)
		if err != nil {
			return err
		}
		if err := st.UpdateProfile(cmd.Profile, h.deps.Clock.Now()); err != nil {
			return err
		}
		if err := repos.Students.Update(ctx, st); err != nil {
			return err
		}
		updated = st
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update_student: %w", err)
	}
	return &updated, nil
}

// DeleteStudentCommand identifies the student to remove.
type DeleteStudentCommand struct {
	StudentID string
}

// DeleteStudentResult reports the cascade.
type DeleteStudentResult struct {
	StudentID     string `json:"student_id"`
	DeletedScores int64  `json:"deleted_scores"`
}

// DeleteStudentHandler handles the DeleteStudentCommand.
type DeleteStudentHandler struct {
	deps Deps
}

// NewDeleteStudentHandler creates a new DeleteStudentHandler.
func NewDeleteStudentHandler(deps Deps) *DeleteStudentHandler {
	return &DeleteStudentHandler{deps: deps.withDefaults()}
}

// Handle deletes the student's score rows and then the student.
func (h *DeleteStudentHandler) Handle(ctx context.Context, cmd DeleteStudentCommand) (*DeleteStudentResult, error) {
	result := &DeleteStudentResult{StudentID: cmd.StudentID}
	var term string

	err := h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		st, err := repos.Students.Get(ctx, student.FieldID, cmd.StudentID)
		if err != nil {
			return err
		}
		term = st.Term
		n, err := repos.Scores.DeleteWhere(ctx, shared.Filter{score.FieldStudentID: st.ID})
		if err != nil {
			return err
		}
		result.DeletedScores = n
		return repos.Students.Delete(ctx, st.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("delete_student: %w", err)
	}

	h.deps.Logger.Info("student deleted", logger.StudentID(cmd.StudentID), logger.Int64("deleted_scores", result.DeletedScores))
	h.deps.publish(shared.NewStudentDeletedEvent(cmd.StudentID, term, result.DeletedScores))
	return result, nil
}
