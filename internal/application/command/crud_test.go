package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calculus-oom/gradebook/internal/domain/exam"
	"github.com/calculus-oom/gradebook/internal/domain/score"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/internal/domain/student"
)

func TestCreateStudent_CreatesEmptyScore(t *testing.T) {
	f := newFixture(t)
	res, err := NewCreateStudentHandler(f.deps).Handle(context.Background(), CreateStudentCommand{
		Name: "Lin", Number: "B01", Term: term,
	})
	require.NoError(t, err)

	assert.Equal(t, "stu_1141_00000001", res.Student.ID)
	assert.Equal(t, "scr_1141_00000002", res.Score.ID)
	assert.Equal(t, student.StatusInProgress, res.Student.Status)
	assert.Equal(t, res.Student.ID, f.scoreOf(t, res.Student.ID).StudentID)
	assert.Equal(t, []shared.EventType{shared.EventStudentCreated}, f.events.types())
}

func TestCreateStudent_DuplicateNumberRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := NewCreateStudentHandler(f.deps)

	_, err := h.Handle(ctx, CreateStudentCommand{Name: "a", Number: "B01", Term: term})
	require.NoError(t, err)
	_, err = h.Handle(ctx, CreateStudentCommand{Name: "b", Number: "B01", Term: term})
	assert.True(t, shared.IsConflict(err))

	scores, _ := f.store.Repositories().Scores.List(ctx, nil)
	assert.Len(t, scores, 1)
}

func TestCreateStudent_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := NewCreateStudentHandler(f.deps).Handle(context.Background(), CreateStudentCommand{Term: term})
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, []string{student.FieldName, student.FieldNumber}, shared.FieldsOf(err))

	_, err = NewCreateStudentHandler(f.deps).Handle(context.Background(), CreateStudentCommand{Name: "a", Number: "1", Term: term, Status: "??"})
	assert.True(t, shared.IsValidation(err))
}

func TestUpdateStudent_KeepsStatus(t *testing.T) {
	f := newFixture(t)
	st := f.addStudent(t, "B01")
	name := "Renamed"

	got, err := NewUpdateStudentHandler(f.deps).Handle(context.Background(), UpdateStudentCommand{
		StudentID: st.ID, Profile: student.Profile{Name: &name},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, student.StatusInProgress, got.Status)
}

func TestDeleteStudent_CascadesScores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.addStudent(t, "B01", "10")
	keep := f.addStudent(t, "B02", "20")

	res, err := NewDeleteStudentHandler(f.deps).Handle(ctx, DeleteStudentCommand{StudentID: st.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.DeletedScores)

	_, err = f.store.Repositories().Students.Get(ctx, student.FieldID, st.ID)
	assert.True(t, shared.IsNotFound(err))
	_, err = f.store.Repositories().Scores.Get(ctx, score.FieldStudentID, st.ID)
	assert.True(t, shared.IsNotFound(err))
	assert.Equal(t, "20", f.scoreOf(t, keep.ID).Quiz1)

	_, err = NewDeleteStudentHandler(f.deps).Handle(ctx, DeleteStudentCommand{StudentID: st.ID})
	assert.True(t, shared.IsNotFound(err))
}

func TestScores_RecordUpdateDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := NewScoreHandler(f.deps)
	st := f.addStudent(t, "B01")

	sc, err := h.Record(ctx, RecordScoreCommand{StudentID: st.ID, Slot: "score_midterm", Value: "77"})
	require.NoError(t, err)
	assert.Equal(t, "77", sc.Midterm)

	sc, err = h.Update(ctx, UpdateScoreCommand{ScoreID: sc.ID, Slot: "midterm", Value: "78"})
	require.NoError(t, err)
	assert.Equal(t, "78", sc.Midterm)

	_, err = h.Update(ctx, UpdateScoreCommand{ScoreID: sc.ID, Slot: "midterm", Value: "101"})
	assert.True(t, shared.IsValidation(err))

	require.NoError(t, h.Delete(ctx, DeleteScoreCommand{ScoreID: sc.ID}))

	recreated, err := h.Record(ctx, RecordScoreCommand{StudentID: st.ID, Slot: "final", Value: "50"})
	require.NoError(t, err)
	assert.NotEqual(t, sc.ID, recreated.ID)
	assert.Equal(t, "50", recreated.Final)

	_, err = h.Record(ctx, RecordScoreCommand{StudentID: "stu_missing", Slot: "final", Value: "50"})
	assert.True(t, shared.IsNotFound(err))

	assert.Contains(t, f.events.types(), shared.EventScoreChanged)
}

func TestExams_CRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := NewExamHandler(f.deps)

	e, err := h.Create(ctx, CreateExamCommand{Name: "Midterm", Term: term, Date: "2025-04-15", Range: "ch1-5"})
	require.NoError(t, err)
	assert.Regexp(t, `^tst_1141_mid_[0-9a-f]{8}$`, e.ID)
	assert.Equal(t, exam.StateNotPrepared, e.State)

	gen, err := h.Create(ctx, CreateExamCommand{Name: "Lab", Term: term})
	require.NoError(t, err)
	assert.Contains(t, gen.ID, "_gen_")

	_, err = h.Create(ctx, CreateExamCommand{Name: "Bad", Term: term, Date: "15/04/2025"})
	assert.True(t, shared.IsValidation(err))

	rng := "ch1-6"
	e, err = h.Update(ctx, UpdateExamCommand{ExamID: e.ID, Details: exam.Details{Range: &rng}})
	require.NoError(t, err)
	assert.Equal(t, "ch1-6", e.Range)

	e, err = h.SetState(ctx, SetExamStateCommand{ExamID: e.ID, State: "考卷成績結算"})
	require.NoError(t, err)
	assert.Equal(t, exam.StateFinalized, e.State)

	e, err = h.SetState(ctx, SetExamStateCommand{ExamID: e.ID, State: "not_prepared"})
	require.NoError(t, err)
	assert.Equal(t, exam.StateNotPrepared, e.State)

	require.NoError(t, h.Delete(ctx, DeleteExamCommand{ExamID: e.ID}))
	assert.True(t, shared.IsNotFound(h.Delete(ctx, DeleteExamCommand{ExamID: e.ID})))
}
