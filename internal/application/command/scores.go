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
// SCORE COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// RecordScoreCommand writes one slot of a student's score row, creating the
// row if the student has none.
type RecordScoreCommand struct {
	StudentID string
	Slot      string
	Value     string
}

// UpdateScoreCommand writes one slot of a score row addressed by id.
type UpdateScoreCommand struct {
	ScoreID string
	Slot    string
	Value   string
}

// DeleteScoreCommand removes a score row.
type DeleteScoreCommand struct {
	ScoreID string
}

// ScoreHandler handles the score commands.
type ScoreHandler struct {
	deps Deps
}

// NewScoreHandler creates a new ScoreHandler.
func NewScoreHandler(deps Deps) *ScoreHandler {
	return &ScoreHandler{deps: deps.withDefaults()}
}

func parseSlotValue(slotName, value string) (score.Slot, error) {
	slot, err := score.ParseSlot(slotName)
	if err != nil {
		return 0, err
	}
	if err := shared.ValidateScoreValue(slot.String(), value); err != nil {
		return 0, err
	}
	return slot, nil
}

// Record handles RecordScoreCommand.
func (h *ScoreHandler) Record(ctx context.Context, cmd RecordScoreCommand) (*score.Score, error) {
	slot, err := parseSlotValue(cmd.Slot, cmd.Value)
	if err != nil {
		return nil, err
	}

	var saved score.Score
	var term string
	err = h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		st, err := repos.Students.Get(ctx, student.FieldID, cmd.StudentID)
		if err != nil {
			return err
		}
		term = st.Term
		now := h.deps.Clock.Now()

		sc, err := repos.Scores.Get(ctx, score.FieldStudentID, st.ID)
		switch {
		case shared.IsNotFound(err):
			fresh := score.New(h.deps.IDs.Score(st.Term), st.ID, now)
			if err := fresh.Set(slot, cmd.Value, now); err != nil {
				return err
			}
			if err := repos.Scores.Create(ctx, *fresh); err != nil {
				return err
			}
			saved = *fresh
			return nil
		case err != nil:
			return err
		}

		if err := sc.Set(slot, cmd.Value, now); err != nil {
			return err
		}
		if err := repos.Scores.Update(ctx, sc); err != nil {
			return err
		}
		saved = sc
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record_score: %w", err)
	}

	h.deps.Logger.Debug("score recorded", logger.ScoreID(saved.ID), logger.StudentID(saved.StudentID), logger.Slot(slot.String()))
	h.deps.publish(shared.NewScoreChangedEvent(saved.ID, saved.StudentID, term, slot.String()))
	return &saved, nil
}

// Update handles UpdateScoreCommand.
func (h *ScoreHandler) Update(ctx context.Context, cmd UpdateScoreCommand) (*score.Score, error) {
	slot, err := parseSlotValue(cmd.Slot, cmd.Value)
	if err != nil {
		return nil, err
	}

	var saved score.Score
	var term string
	err = h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		sc, err := repos.Scores.Get(ctx, score.FieldID, cmd.ScoreID)
		if err != nil {
			return err
		}
		if err := sc.Set(slot, cmd.Value, h.deps.Clock.Now()); err != nil {
			return err
		}
		if err := repos.Scores.Update(ctx, sc); err != nil {
			return err
		}
		saved = sc
		term = termOf(ctx, repos, sc.StudentID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update_score: %w", err)
	}

	h.deps.publish(shared.NewScoreChangedEvent(saved.ID, saved.StudentID, term, slot.String()))
	return &saved, nil
}

// Delete handles DeleteScoreCommand.
func (h *ScoreHandler) Delete(ctx context.Context, cmd DeleteScoreCommand) error {
	var studentID, term string
	err := h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		sc, err := repos.Scores.Get(ctx, score.FieldID, cmd.ScoreID)
		if err != nil {
			return err
		}
		studentID = sc.StudentID
		term = termOf(ctx, repos, sc.StudentID)
		return repos.Scores.Delete(ctx, sc.ID)
	})
	if err != nil {
		return fmt.Errorf("delete_score: %w", err)
	}

	h.deps.publish(shared.NewScoreDeletedEvent(cmd.ScoreID, studentID, term))
	return nil
}

// termOf returns the term of the owning student, or "" for an orphan row.
func termOf(ctx context.Context, repos gradebook.Repositories, studentID string) string {
	st, err := repos.Students.Get(ctx, student.FieldID, studentID)
	if err != nil {
		return ""
	}
	return st.Term
}
