package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calculus-oom/gradebook/internal/domain/score"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/internal/domain/student"
)

func TestSetStudentStatus_WithdrawClearsScores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.addStudent(t, "B01", "80", "90", "70", "85")

	sc := f.scoreOf(t, st.ID)
	sc.SetTotal("81.5", t0)
	require.NoError(t, f.store.Repositories().Scores.Update(ctx, sc))

	res, err := NewSetStudentStatusHandler(f.deps).Handle(ctx, SetStudentStatusCommand{StudentID: st.ID, Status: "二退"})
	require.NoError(t, err)
	assert.Equal(t, student.StatusWithdrawn, res.Student.Status)
	assert.Equal(t, student.StatusInProgress, res.OldStatus)
	assert.Equal(t, 1, res.ClearedScores)

	cleared := f.scoreOf(t, st.ID)
	for _, slot := range score.AllSlots {
		assert.Empty(t, cleared.Get(slot), slot.String())
	}
	assert.Empty(t, cleared.Total)
	assert.Contains(t, f.events.types(), shared.EventStudentStatusChanged)
}

func TestSetStudentStatus_OtherStatusKeepsScores(t *testing.T) {
	f := newFixture(t)
	st := f.addStudent(t, "B01", "80", "90", "70", "85")

	_, err := NewSetStudentStatusHandler(f.deps).Handle(context.Background(), SetStudentStatusCommand{StudentID: st.ID, Status: "failed"})
	require.NoError(t, err)

	assert.Equal(t, "80", f.scoreOf(t, st.ID).Quiz1)
	assert.Equal(t, student.StatusFailed, f.student(t, st.ID).Status)
}

func TestSetStudentStatus_Errors(t *testing.T) {
	f := newFixture(t)
	h := NewSetStudentStatusHandler(f.deps)
	ctx := context.Background()

	_, err := h.Handle(ctx, SetStudentStatusCommand{StudentID: "stu_x", Status: "dropped"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, SetStudentStatusCommand{StudentID: "stu_x", Status: "withdrawn"})
	assert.True(t, shared.IsNotFound(err))
}
